package service_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	eventqueue "github.com/okian/fitscore/internal/adapters/mq/queue"
	"github.com/okian/fitscore/internal/adapters/repository"
	service "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// gatedGenerator blocks every run until released and reports each start.
type gatedGenerator struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	release chan struct{}
	once    sync.Once
}

func newGatedGenerator() *gatedGenerator {
	return &gatedGenerator{
		calls:   make(map[string]int),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedGenerator) Generate(ctx context.Context, ownerID string) error {
	g.mu.Lock()
	g.calls[ownerID]++
	g.mu.Unlock()
	g.started <- ownerID
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gatedGenerator) open() { g.once.Do(func() { close(g.release) }) }

func (g *gatedGenerator) count(owner string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[owner]
}

func waitStarted(g *gatedGenerator) string {
	select {
	case owner := <-g.started:
		return owner
	case <-time.After(5 * time.Second):
		return ""
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		store := repository.NewMemoryStore()
		gen := newGatedGenerator()
		svc := service.New(store, gen, service.WithWorkerCount(2), service.WithQueueSize(8))

		Convey("Triggers are refused before Start", func() {
			_, err := svc.Trigger(context.Background(), "u1", service.ReasonManual)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When started", func() {
			ctx, cancel := context.WithCancel(context.Background())
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Reset(func() {
				gen.open()
				cancel()
				svc.Stop()
			})

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["workerCount"], ShouldEqual, 2)
			So(stats["queueLength"], ShouldEqual, 0)

			Convey("Stop is idempotent", func() {
				gen.open()
				svc.Stop()
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Trigger(t *testing.T) {
	Convey("Given a started service with one worker", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		gen := newGatedGenerator()
		n := 0
		svc := service.New(repository.NewMemoryStore(), gen,
			service.WithWorkerCount(1),
			service.WithQueueSize(1),
			service.WithJobIDFunc(func() string { n++; return "job-" + strconv.Itoa(n) }),
		)
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			gen.open()
			cancel()
			svc.Stop()
		})

		Convey("An empty owner is rejected", func() {
			_, err := svc.Trigger(ctx, "", service.ReasonManual)
			So(errors.Is(err, service.ErrInvalidOwner), ShouldBeTrue)
			So(service.IsValidationError(err), ShouldBeTrue)
		})

		Convey("Triggers for an owner with a queued job collapse", func() {
			first, err := svc.Trigger(ctx, "u1", service.ReasonUpload)
			So(err, ShouldBeNil)
			So(first.Status, ShouldEqual, service.StatusQueued)
			So(first.JobID, ShouldEqual, "job-1")
			So(waitStarted(gen), ShouldEqual, "u1")

			// The running job no longer counts as pending.
			second, err := svc.Trigger(ctx, "u1", service.ReasonUpload)
			So(err, ShouldBeNil)
			So(second.Status, ShouldEqual, service.StatusQueued)

			third, err := svc.Trigger(ctx, "u1", service.ReasonUpload)
			So(err, ShouldBeNil)
			So(third.Status, ShouldEqual, service.StatusPending)
			So(third.JobID, ShouldBeEmpty)

			gen.open()
			So(waitStarted(gen), ShouldEqual, "u1")
			So(gen.count("u1"), ShouldEqual, 2)
		})

		Convey("A full queue refuses the trigger and forgets it", func() {
			_, err := svc.Trigger(ctx, "a", service.ReasonManual)
			So(err, ShouldBeNil)
			So(waitStarted(gen), ShouldEqual, "a")

			_, err = svc.Trigger(ctx, "b", service.ReasonManual)
			So(err, ShouldBeNil)

			_, err = svc.Trigger(ctx, "c", service.ReasonManual)
			So(errors.Is(err, eventqueue.ErrFull), ShouldBeTrue)
			So(svc.GetStats()["pendingOwners"], ShouldEqual, int64(1))
		})
	})
}

func TestService_TriggerIfMissing(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		store := repository.NewMemoryStore()
		gen := newGatedGenerator()
		svc := service.New(store, gen, service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			gen.open()
			cancel()
			svc.Stop()
		})

		Convey("An owner with stored records is left alone", func() {
			rec := model.NewRecommendation("r1", "u1", []string{"a", "b", "c"}, []float64{0.7}, time.Now())
			So(store.ReplaceRecommendations(ctx, "u1", []model.Recommendation{rec}), ShouldBeNil)

			ticket, err := svc.TriggerIfMissing(ctx, "u1")
			So(err, ShouldBeNil)
			So(ticket.Status, ShouldEqual, service.StatusExists)
			So(gen.count("u1"), ShouldEqual, 0)
		})

		Convey("An owner without records gets a job", func() {
			ticket, err := svc.TriggerIfMissing(ctx, "u2")
			So(err, ShouldBeNil)
			So(ticket.Status, ShouldEqual, service.StatusQueued)
			So(waitStarted(gen), ShouldEqual, "u2")
		})
	})
}

func TestService_AddItems(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		store := repository.NewMemoryStore()
		gen := newGatedGenerator()
		svc := service.New(store, gen, service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)

		Reset(func() {
			gen.open()
			cancel()
			svc.Stop()
		})

		Convey("Items missing a field are rejected before storing", func() {
			_, err := svc.AddItems(ctx, "u1", []model.Item{
				{ID: "t1", ImageRef: "t1.png", Category: model.CategoryTops},
				{ID: "b1", Category: model.CategoryBottoms},
			})
			So(errors.Is(err, service.ErrInvalidItem), ShouldBeTrue)

			items, err := svc.Items(ctx, "u1")
			So(err, ShouldBeNil)
			So(items, ShouldBeEmpty)
		})

		Convey("Valid items are stored under the owner and trigger a run", func() {
			ticket, err := svc.AddItems(ctx, "u1", []model.Item{
				{ID: "t1", ImageRef: "t1.png", Category: model.CategoryTops, OwnerID: "someone-else"},
			})
			So(err, ShouldBeNil)
			So(ticket.Status, ShouldEqual, service.StatusQueued)

			items, err := svc.Items(ctx, "u1")
			So(err, ShouldBeNil)
			So(len(items), ShouldEqual, 1)
			So(items[0].OwnerID, ShouldEqual, "u1")
			So(waitStarted(gen), ShouldEqual, "u1")
		})

		Convey("An item id held by another owner is refused without a run", func() {
			So(store.PutItems(ctx, model.Item{ID: "x", OwnerID: "alice", ImageRef: "a/x.png", Category: model.CategoryShoes}), ShouldBeNil)

			_, err := svc.AddItems(ctx, "mallory", []model.Item{
				{ID: "x", ImageRef: "m/x.png", Category: model.CategoryShoes},
			})
			So(errors.Is(err, repository.ErrConflict), ShouldBeTrue)

			alice, err := svc.Items(ctx, "alice")
			So(err, ShouldBeNil)
			So(len(alice), ShouldEqual, 1)
			So(alice[0].ImageRef, ShouldEqual, "a/x.png")

			mallory, err := svc.Items(ctx, "mallory")
			So(err, ShouldBeNil)
			So(mallory, ShouldBeEmpty)
			So(gen.count("mallory"), ShouldEqual, 0)
		})
	})
}

func TestService_Recommendations(t *testing.T) {
	Convey("Given a service over a store with records", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		svc := service.New(store, newGatedGenerator(), service.WithThreshold(0.5))

		probs := func(beach, wedding float64) []float64 {
			p := make([]float64, model.EventCount)
			p[5], p[12] = beach, wedding
			return p
		}
		recs := []model.Recommendation{
			model.NewRecommendation("r1", "u1", []string{"a", "b", "c"}, probs(0.55, 0.10), time.Now()),
			model.NewRecommendation("r2", "u1", []string{"a", "b", "d"}, probs(0.90, 0.20), time.Now()),
			model.NewRecommendation("r3", "u1", []string{"a", "e", "d"}, probs(0.10, 0.80), time.Now()),
		}
		So(store.ReplaceRecommendations(ctx, "u1", recs), ShouldBeNil)
		So(svc.Threshold(), ShouldEqual, 0.5)

		Convey("An event read ranks by that event", func() {
			got, err := svc.Recommendations(ctx, "u1", "Beach", 0.5)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Recommendation.ID, ShouldEqual, "r2")
			So(got[1].Recommendation.ID, ShouldEqual, "r1")
		})

		Convey("A read without event ranks by best score", func() {
			got, err := svc.Recommendations(ctx, "u1", "", 0.6)
			So(err, ShouldBeNil)
			So(len(got), ShouldEqual, 2)
			So(got[0].Recommendation.ID, ShouldEqual, "r2")
			So(got[1].Recommendation.ID, ShouldEqual, "r3")
		})

		Convey("An unknown event is a validation error", func() {
			_, err := svc.Recommendations(ctx, "u1", "Disco", 0.5)
			So(errors.Is(err, repository.ErrUnknownEvent), ShouldBeTrue)
			So(service.IsValidationError(err), ShouldBeTrue)
		})

		Convey("A threshold outside [0,1] is rejected", func() {
			_, err := svc.Recommendations(ctx, "u1", "Beach", 1.5)
			So(errors.Is(err, service.ErrInvalidThreshold), ShouldBeTrue)
		})

		Convey("An owner with nothing stored is not found", func() {
			_, err := svc.Recommendations(ctx, "nobody", "Beach", 0.5)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			So(service.IsValidationError(err), ShouldBeFalse)
		})
	})
}
