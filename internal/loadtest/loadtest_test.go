package loadtest

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitscore/internal/adapters/http/api"
	service "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/config"
	"github.com/okian/fitscore/internal/domain/types"
	"github.com/okian/fitscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerateWardrobes(t *testing.T) {
	Convey("Given a seeded configuration", t, func() {
		cfg := &Config{Owners: 6, ItemsPerOwner: 4, Seed: 7}
		ws := generateWardrobes(cfg)

		So(len(ws), ShouldEqual, 6)
		for i, w := range ws {
			So(len(w.Items), ShouldEqual, 4)
			if i%3 == 0 {
				So(w.viable(), ShouldBeTrue)
			}
		}
		So(ws[0].OwnerID, ShouldNotEqual, ws[1].OwnerID)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given an owner wardrobe", t, func() {
		w := Wardrobe{OwnerID: "u", Items: []types.Item{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
		scores := func(v float64) map[string]float64 {
			m := make(map[string]float64)
			for i := 0; i < 13; i++ {
				m[string(rune('A'+i))] = v / 2
			}
			m["A"] = v
			return m
		}
		good := types.OutfitResult{Outfit: []string{"a", "c"}, MatchScore: 0.8, BestScore: 0.8, Scores: scores(0.8)}

		Convey("A consistent response passes", func() {
			So(verify(w, types.RecommendationsResponse{Results: []types.OutfitResult{good}}), ShouldBeNil)
		})

		Convey("Foreign items fail", func() {
			bad := good
			bad.Outfit = []string{"a", "zz"}
			err := verify(w, types.RecommendationsResponse{Results: []types.OutfitResult{bad}})
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
		})

		Convey("Unranked results fail", func() {
			low := good
			low.MatchScore = 0.1
			err := verify(w, types.RecommendationsResponse{Results: []types.OutfitResult{low, good}})
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
		})

		Convey("A best score that is not the maximum fails", func() {
			bad := good
			bad.BestScore = 0.5
			err := verify(w, types.RecommendationsResponse{Results: []types.OutfitResult{bad}})
			So(errors.Is(err, ErrVerification), ShouldBeTrue)
		})
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a fitscore service behind an HTTP server", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := config.New(ctx)
		cfg.ImageRoot = t.TempDir()
		cfg.BackboneWidth = 64
		cfg.ImageResolution = 16
		cfg.HiddenWidth = 32
		cfg.ProjectionWidth = 8
		cfg.BatchSize = 4

		p, err := service.NewPipeline(ctx, cfg, nil)
		So(err, ShouldBeNil)
		svc := service.New(p.Store, p.Generator, service.WithWorkerCount(2))
		So(svc.Start(ctx), ShouldBeNil)
		srv := httptest.NewServer(api.NewServer(svc).Routes())

		Reset(func() {
			srv.Close()
			cancel()
			svc.Stop()
			_ = p.Close()
		})

		Convey("Every viable owner is scored and verified", func() {
			stats, err := Run(ctx, &Config{
				BaseURL:       srv.URL,
				ImageDir:      cfg.ImageRoot,
				Owners:        6,
				ItemsPerOwner: 5,
				Workers:       3,
				Timeout:       5 * time.Second,
				WaitTimeout:   30 * time.Second,
				PollInterval:  20 * time.Millisecond,
				Seed:          99,
			})
			So(err, ShouldBeNil)
			So(stats.ItemsPosted, ShouldEqual, 30)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Scored+stats.Insufficient, ShouldEqual, 6)
			So(stats.Scored, ShouldBeGreaterThanOrEqualTo, 2)
			So(stats.Outfits, ShouldBeGreaterThan, 0)
		})
	})
}
