package loadtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fitscore/internal/domain/candidates"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/types"
	"github.com/okian/fitscore/pkg/logger"
)

// ErrVerification is returned when a response breaks a result invariant.
var ErrVerification = errors.New("verification failed")

// Run uploads synthetic wardrobes, waits for every viable owner to be
// scored and verifies the returned outfits.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := logger.Get().Named("loadtest")
	stats := &Stats{StartTime: time.Now(), Owners: cfg.Owners}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting fitscore load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("owners", cfg.Owners),
		logger.Int("itemsPerOwner", cfg.ItemsPerOwner),
		logger.Int("workers", cfg.Workers))

	if code, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil || code != http.StatusOK {
		return stats, fmt.Errorf("service health check failed (status %d): %w", code, err)
	}

	wardrobes := generateWardrobes(cfg)
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+1))
	for _, w := range wardrobes {
		if err := writeSwatches(cfg.ImageDir, w, rng); err != nil {
			return stats, err
		}
	}

	if err := postWardrobes(ctx, c, cfg, wardrobes, stats); err != nil {
		return stats, err
	}
	stats.PostDuration = time.Since(stats.StartTime)

	scoreStart := time.Now()
	if err := awaitAndVerify(ctx, c, cfg, wardrobes, stats); err != nil {
		return stats, err
	}
	stats.ScoreDuration = time.Since(scoreStart)
	stats.Duration = time.Since(stats.StartTime)

	log.Info(ctx, "load test completed",
		logger.Int("scored", stats.Scored),
		logger.Int("outfits", stats.Outfits),
		logger.Int("insufficient", stats.Insufficient),
		logger.Int("failed", stats.Failed),
		logger.Duration("post", stats.PostDuration),
		logger.Duration("score", stats.ScoreDuration),
		logger.Duration("slowestWait", stats.SlowestWait))
	return stats, nil
}

func postWardrobes(ctx context.Context, c *client, cfg *Config, wardrobes []Wardrobe, stats *Stats) error {
	var queued, posted, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, w := range wardrobes {
		g.Go(func() error {
			var ack types.TriggerResponse
			code, err := c.do(gctx, http.MethodPost, ownerPath(w.OwnerID, "/items"),
				map[string]any{"items": w.Items}, &ack)
			switch {
			case err != nil:
				return err
			case code == http.StatusAccepted || code == http.StatusOK:
				posted.Add(int64(len(w.Items)))
				if ack.Status == "queued" {
					queued.Add(1)
				}
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	stats.ItemsPosted = int(posted.Load())
	stats.Queued = int(queued.Load())
	stats.Failed += int(failed.Load())
	return err
}

func awaitAndVerify(ctx context.Context, c *client, cfg *Config, wardrobes []Wardrobe, stats *Stats) error {
	deadline := time.Now().Add(cfg.WaitTimeout)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for _, w := range wardrobes {
		if !w.viable() {
			mu.Lock()
			stats.Insufficient++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			start := time.Now()
			resp, err := poll(gctx, c, w.OwnerID, deadline, cfg.PollInterval)
			if err != nil {
				return err
			}
			if err := verify(w, resp); err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			stats.Scored++
			stats.Outfits += len(resp.Results)
			if waited := time.Since(start); waited > stats.SlowestWait {
				stats.SlowestWait = waited
			}
			return nil
		})
	}
	return g.Wait()
}

// poll reads the owner's recommendations until they exist or the deadline passes.
func poll(ctx context.Context, c *client, owner string, deadline time.Time, every time.Duration) (types.RecommendationsResponse, error) {
	for {
		var resp types.RecommendationsResponse
		code, err := c.do(ctx, http.MethodGet, ownerPath(owner, "/recommendations?min_score=0"), nil, &resp)
		if err != nil {
			return resp, err
		}
		if code == http.StatusOK {
			return resp, nil
		}
		if code != http.StatusNotFound {
			return resp, fmt.Errorf("owner %s: unexpected status %d", owner, code)
		}
		if time.Now().After(deadline) {
			return resp, fmt.Errorf("owner %s: not scored before deadline", owner)
		}
		select {
		case <-ctx.Done():
			return resp, ctx.Err()
		case <-time.After(every):
		}
	}
}

// verify checks one owner's response against the result invariants.
func verify(w Wardrobe, resp types.RecommendationsResponse) error {
	owned := make(map[string]bool, len(w.Items))
	for _, it := range w.Items {
		owned[it.ID] = true
	}
	if len(resp.Results) == 0 {
		return fmt.Errorf("owner %s: no outfits: %w", w.OwnerID, ErrVerification)
	}
	for i, r := range resp.Results {
		if i > 0 && resp.Results[i-1].MatchScore < r.MatchScore {
			return fmt.Errorf("owner %s: results not ranked at %d: %w", w.OwnerID, i, ErrVerification)
		}
		if n := len(r.Outfit); n < candidates.MinSize || n > candidates.MaxSize {
			return fmt.Errorf("owner %s: outfit of %d items: %w", w.OwnerID, n, ErrVerification)
		}
		for _, id := range r.Outfit {
			if !owned[id] {
				return fmt.Errorf("owner %s: foreign item %s: %w", w.OwnerID, id, ErrVerification)
			}
		}
		if len(r.Scores) != model.EventCount {
			return fmt.Errorf("owner %s: %d event scores: %w", w.OwnerID, len(r.Scores), ErrVerification)
		}
		best := 0.0
		for _, s := range r.Scores {
			if s < 0 || s > 1 {
				return fmt.Errorf("owner %s: score %f out of range: %w", w.OwnerID, s, ErrVerification)
			}
			best = max(best, s)
		}
		if best != r.BestScore {
			return fmt.Errorf("owner %s: best score %f, max %f: %w", w.OwnerID, r.BestScore, best, ErrVerification)
		}
	}
	return nil
}
