// Package recommend regenerates an owner's scored outfit recommendations.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/fitscore/internal/domain/candidates"
	"github.com/okian/fitscore/internal/domain/embedding"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/ownerlock"
	"github.com/okian/fitscore/internal/domain/scoring"
	"github.com/okian/fitscore/internal/domain/wardrobe"
	"github.com/okian/fitscore/pkg/logger"
	"github.com/okian/fitscore/pkg/metrics"
)

// Store is the persistence the generator needs.
type Store interface {
	ItemsForOwner(ctx context.Context, ownerID string) ([]model.Item, error)
	ReplaceRecommendations(ctx context.Context, ownerID string, recs []model.Recommendation) error
	DeleteRecommendations(ctx context.Context, ownerID string) error
}

// ImageSource reads encoded image bytes by reference.
type ImageSource interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// Outcome summarizes one run.
type Outcome struct {
	OwnerID    string
	Candidates int
	BySize     map[int]int
	Truncated  bool
	Skipped    int // candidates dropped for unreadable images
	Records    int
	Duration   time.Duration
	Err        error // ErrInsufficientWardrobe when no outfit was possible
}

// Generator runs candidate generation, embedding and scoring for one owner
// at a time and replaces the owner's stored records with the result.
type Generator struct {
	store      Store
	images     ImageSource
	embedder   embedding.Embedder
	scorer     scoring.Scorer
	candidates *candidates.Generator
	locks      *ownerlock.Map

	batchSize   int
	concurrency int

	now   func() time.Time
	newID func() string
	log   logger.Logger
}

// New builds a generator. Batch size defaults to 1 so each outfit's
// global attention sees only itself.
func New(store Store, images ImageSource, e embedding.Embedder, s scoring.Scorer, opts ...Option) *Generator {
	g := &Generator{
		store:       store,
		images:      images,
		embedder:    e,
		scorer:      s,
		candidates:  candidates.New(),
		locks:       ownerlock.New(),
		batchSize:   1,
		concurrency: runtime.NumCPU(),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logger.Named("recommend")
	}
	return g
}

// Generate regenerates ownerID's recommendations. Runs for the same owner
// are serialized.
func (g *Generator) Generate(ctx context.Context, ownerID string) error {
	_, err := g.Run(ctx, ownerID)
	return err
}

// Run is Generate with a summary of what happened.
func (g *Generator) Run(ctx context.Context, ownerID string) (out Outcome, err error) {
	out.OwnerID = ownerID
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		metrics.RecordGenerationLatency(float64(out.Duration.Milliseconds()))
	}()

	unlock, err := g.locks.Lock(ctx, ownerID)
	if err != nil {
		return out, err
	}
	defer unlock()

	g.log.Info(ctx, "generation started", logger.String("owner", ownerID))

	items, err := g.store.ItemsForOwner(ctx, ownerID)
	if err != nil {
		metrics.RecordGenerationRun("error")
		return out, fmt.Errorf("load wardrobe: %w", err)
	}
	idx, err := wardrobe.New(ownerID, items)
	if err != nil {
		metrics.RecordGenerationRun("error")
		return out, fmt.Errorf("index wardrobe: %w", err)
	}

	gen := g.candidates.Generate(idx)
	out.Candidates = len(gen.Candidates)
	out.BySize = gen.BySize
	out.Truncated = gen.Truncated
	g.logSizes(ctx, ownerID, gen)
	metrics.RecordCandidatesGenerated(len(gen.Candidates))

	if len(gen.Candidates) == 0 {
		out.Err = ErrInsufficientWardrobe
		g.log.Info(ctx, "no outfit possible", logger.String("owner", ownerID), logger.Int("items", idx.Len()))
		if err := g.store.ReplaceRecommendations(ctx, ownerID, nil); err != nil {
			metrics.RecordGenerationRun("error")
			return out, err
		}
		metrics.RecordGenerationRun("insufficient")
		return out, nil
	}

	recs, skipped, err := g.score(ctx, ownerID, gen.Candidates)
	out.Skipped = skipped
	if errors.Is(err, scoring.ErrShape) {
		metrics.RecordGenerationRun("shape_error")
		metrics.RecordErrorByComponent("recommend", "shape")
		if derr := g.store.DeleteRecommendations(ctx, ownerID); derr != nil {
			err = errors.Join(err, derr)
		}
		g.log.Error(ctx, "generation aborted", logger.String("owner", ownerID), logger.Error(err))
		return out, err
	}
	if err != nil {
		metrics.RecordGenerationRun("error")
		return out, err
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].BestScore > recs[j].BestScore })
	if err := g.store.ReplaceRecommendations(ctx, ownerID, recs); err != nil {
		metrics.RecordGenerationRun("error")
		return out, err
	}
	out.Records = len(recs)
	metrics.RecordRecordsPersisted(len(recs))
	metrics.RecordGenerationRun("ok")
	g.log.Info(ctx, "generation completed",
		logger.String("owner", ownerID),
		logger.Int("records", len(recs)),
		logger.Int("skipped", skipped),
		logger.Duration("elapsed", time.Since(start)))
	return out, nil
}

func (g *Generator) logSizes(ctx context.Context, ownerID string, gen candidates.Result) {
	for r := candidates.MinSize; r <= candidates.MaxSize; r++ {
		if n := gen.BySize[r]; n > 0 {
			g.log.Info(ctx, "candidates generated",
				logger.String("owner", ownerID), logger.Int("size", r), logger.Int("count", n))
		}
	}
	if gen.Truncated {
		g.log.Warn(ctx, "candidate cap reached", logger.String("owner", ownerID),
			logger.Int("kept", len(gen.Candidates)))
	}
}

// score embeds every distinct item once, drops candidates whose images
// failed and scores the rest in batches.
func (g *Generator) score(ctx context.Context, ownerID string, cands []candidates.Candidate) ([]model.Recommendation, int, error) {
	width := g.scorer.Width()
	blank, err := g.embedder.Blank(ctx)
	if err != nil {
		return nil, 0, classify(err)
	}
	if len(blank) != width {
		return nil, 0, fmt.Errorf("blank embedding width %d, scorer wants %d: %w", len(blank), width, scoring.ErrShape)
	}

	vecs, failed, err := g.embedAll(ctx, cands)
	if err != nil {
		return nil, 0, err
	}

	type pending struct {
		outfit []string
		input  scoring.Input
	}
	var queue []pending
	skipped := 0
	for _, c := range cands {
		if bad := firstFailed(c, failed); bad != nil {
			skipped++
			metrics.RecordCandidatesSkipped("image")
			g.log.Warn(ctx, "candidate skipped",
				logger.String("owner", ownerID),
				logger.String("item", bad.item.ID),
				logger.String("ref", bad.item.ImageRef),
				logger.Error(bad.err))
			continue
		}
		slots, err := candidates.Pad(c.Slots())
		if err != nil {
			return nil, skipped, fmt.Errorf("%w: %w", scoring.ErrShape, err)
		}
		in := scoring.Input{Embeddings: make([][]float64, len(slots))}
		for i, s := range slots {
			if s.Blank {
				in.Embeddings[i] = blank
				continue
			}
			v := vecs[s.Item.ID]
			if len(v) != width {
				return nil, skipped, fmt.Errorf("item %s embedding width %d, scorer wants %d: %w",
					s.Item.ID, len(v), width, scoring.ErrShape)
			}
			in.Embeddings[i] = v
		}
		queue = append(queue, pending{outfit: candidates.Strip(slots), input: in})
	}

	recs := make([]model.Recommendation, 0, len(queue))
	for lo := 0; lo < len(queue); lo += g.batchSize {
		hi := min(lo+g.batchSize, len(queue))
		batch := make([]scoring.Input, 0, hi-lo)
		for _, p := range queue[lo:hi] {
			batch = append(batch, p.input)
		}
		t := time.Now()
		results, err := g.scorer.Score(ctx, batch)
		metrics.RecordScoringLatency(float64(time.Since(t).Microseconds()) / 1000)
		if err != nil {
			metrics.RecordScoringError()
			return nil, skipped, err
		}
		if len(results) != len(batch) {
			return nil, skipped, fmt.Errorf("scorer returned %d results for %d outfits: %w",
				len(results), len(batch), scoring.ErrShape)
		}
		at := g.now()
		for i, res := range results {
			if len(res.Probabilities) != model.EventCount {
				return nil, skipped, fmt.Errorf("scorer returned %d labels, want %d: %w",
					len(res.Probabilities), model.EventCount, scoring.ErrShape)
			}
			recs = append(recs, model.NewRecommendation(g.newID(), ownerID, queue[lo+i].outfit, res.Probabilities, at))
		}
	}
	return recs, skipped, nil
}

type itemFailure struct {
	item model.Item
	err  error
}

func firstFailed(c candidates.Candidate, failed map[string]itemFailure) *itemFailure {
	for _, it := range c {
		if f, ok := failed[it.ID]; ok {
			return &f
		}
	}
	return nil
}

// embedAll embeds each distinct item once. Unreadable images are
// returned in failed; anything structural aborts.
func (g *Generator) embedAll(ctx context.Context, cands []candidates.Candidate) (map[string][]float64, map[string]itemFailure, error) {
	seen := make(map[string]bool)
	var unique []model.Item
	for _, c := range cands {
		for _, it := range c {
			if !seen[it.ID] {
				seen[it.ID] = true
				unique = append(unique, it)
			}
		}
	}

	var mu sync.Mutex
	vecs := make(map[string][]float64, len(unique))
	failed := make(map[string]itemFailure)

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.concurrency)
	for _, it := range unique {
		eg.Go(func() error {
			vec, err := g.embedItem(ectx, it)
			if err != nil {
				if ectx.Err() != nil || errors.Is(err, scoring.ErrShape) {
					return err
				}
				mu.Lock()
				failed[it.ID] = itemFailure{item: it, err: err}
				mu.Unlock()
				return nil
			}
			mu.Lock()
			vecs[it.ID] = vec
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return vecs, failed, nil
}

func (g *Generator) embedItem(ctx context.Context, it model.Item) ([]float64, error) {
	data, err := g.images.Read(ctx, it.ImageRef)
	if err != nil {
		return nil, err
	}
	vec, err := g.embedder.Embed(ctx, it.ImageRef, data)
	if err != nil {
		return nil, classify(err)
	}
	return vec, nil
}

// classify maps backbone shape failures onto the scorer's shape error.
func classify(err error) error {
	if errors.Is(err, embedding.ErrShape) && !errors.Is(err, scoring.ErrShape) {
		return fmt.Errorf("%w: %w", scoring.ErrShape, err)
	}
	return err
}
