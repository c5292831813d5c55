package api_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitscore/internal/adapters/http/api"
	eventqueue "github.com/okian/fitscore/internal/adapters/mq/queue"
	"github.com/okian/fitscore/internal/adapters/repository"
	service "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/types"
	"github.com/okian/fitscore/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDeps struct {
	ticket     service.Ticket
	triggerErr error
	addErr     error
	reasons    []string
	added      []model.Item
	items      []model.Item
	matches    []repository.Match
	recsErr    error
	gotEvent   string
	gotMin     float64
}

func (m *mockDeps) GetStats() map[string]any {
	return map[string]any{"started": true, "queueLength": 3}
}

func (m *mockDeps) Trigger(_ context.Context, ownerID, reason string) (service.Ticket, error) {
	m.reasons = append(m.reasons, reason)
	if m.triggerErr != nil {
		return service.Ticket{}, m.triggerErr
	}
	t := m.ticket
	t.OwnerID = ownerID
	return t, nil
}

func (m *mockDeps) TriggerIfMissing(ctx context.Context, ownerID string) (service.Ticket, error) {
	return m.Trigger(ctx, ownerID, service.ReasonLogin)
}

func (m *mockDeps) AddItems(ctx context.Context, ownerID string, items []model.Item) (service.Ticket, error) {
	if m.addErr != nil {
		return service.Ticket{}, m.addErr
	}
	m.added = append(m.added, items...)
	return m.Trigger(ctx, ownerID, service.ReasonUpload)
}

func (m *mockDeps) Items(_ context.Context, _ string) ([]model.Item, error) {
	return m.items, nil
}

func (m *mockDeps) Recommendations(_ context.Context, _, event string, minScore float64) ([]repository.Match, error) {
	m.gotEvent, m.gotMin = event, minScore
	return m.matches, m.recsErr
}

func (m *mockDeps) Threshold() float64 { return 0.6 }

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthAndStats(t *testing.T) {
	Convey("Given the API router", t, func() {
		h := api.NewServer(&mockDeps{}).Routes()

		Convey("GET /healthz reports ok", func() {
			w := serve(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
		})

		Convey("GET /metrics exposes the registry", func() {
			serve(h, http.MethodGet, "/healthz", "")
			w := serve(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "fitscore_recommender_http_requests_total")
		})

		Convey("GET /stats returns the provider's map", func() {
			w := serve(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var stats map[string]any
			So(json.Unmarshal(w.Body.Bytes(), &stats), ShouldBeNil)
			So(stats["queueLength"], ShouldEqual, 3.0)
		})

		Convey("GET /events lists labels in model order", func() {
			w := serve(h, http.MethodGet, "/events", "")
			var resp types.EventsResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(len(resp.Events), ShouldEqual, model.EventCount)
			So(resp.Events[0], ShouldEqual, "Job Interviews")
		})

		Convey("Unknown routes return a JSON 404", func() {
			w := serve(h, http.MethodGet, "/nope", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(w.Body.String(), ShouldContainSubstring, `"code":"not_found"`)
		})

		Convey("Wrong methods return 405", func() {
			w := serve(h, http.MethodDelete, "/owners/u1/generate", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestTriggers(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{ticket: service.Ticket{JobID: "job-1", Status: service.StatusQueued}}
		h := api.NewServer(deps).Routes()

		Convey("POST generate queues a job and answers 202", func() {
			w := serve(h, http.MethodPost, "/owners/u1/generate", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			var resp types.TriggerResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp, ShouldResemble, types.TriggerResponse{OwnerID: "u1", JobID: "job-1", Status: "queued"})
			So(deps.reasons, ShouldResemble, []string{service.ReasonManual})
		})

		Convey("A collapsed trigger answers 200", func() {
			deps.ticket = service.Ticket{Status: service.StatusPending}
			w := serve(h, http.MethodPost, "/owners/u1/generate", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"status":"pending"`)
		})

		Convey("A full queue answers 429", func() {
			deps.triggerErr = fmt.Errorf("trigger u1: %w", eventqueue.ErrFull)
			w := serve(h, http.MethodPost, "/owners/u1/generate", "")
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(w.Body.String(), ShouldContainSubstring, `"code":"backpressure"`)
		})

		Convey("A stopped service answers 503", func() {
			deps.triggerErr = service.ErrNotStarted
			w := serve(h, http.MethodPost, "/owners/u1/login", "")
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("POST login uses the login reason", func() {
			w := serve(h, http.MethodPost, "/owners/u1/login", "")
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(deps.reasons, ShouldResemble, []string{service.ReasonLogin})
		})
	})
}

func TestItems(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDeps{ticket: service.Ticket{JobID: "job-9", Status: service.StatusQueued}}
		h := api.NewServer(deps).Routes()

		Convey("Posting items stores them under the path owner", func() {
			body := `{"items":[{"id":"t1","image_ref":"t1.png","category":"Tops"},{"id":"s1","image_ref":"s1.png","category":"Shoes"}]}`
			w := serve(h, http.MethodPost, "/owners/u7/items", body)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(len(deps.added), ShouldEqual, 2)
			So(deps.added[0].OwnerID, ShouldEqual, "u7")
			So(deps.added[1].Category, ShouldEqual, model.CategoryShoes)
			So(deps.reasons, ShouldResemble, []string{service.ReasonUpload})
		})

		Convey("Items missing required fields are rejected", func() {
			w := serve(h, http.MethodPost, "/owners/u7/items", `{"items":[{"id":"t1","category":"Tops"}]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(w.Body.String(), ShouldContainSubstring, "ImageRef")
			So(deps.added, ShouldBeEmpty)
		})

		Convey("An empty item list is rejected", func() {
			w := serve(h, http.MethodPost, "/owners/u7/items", `{"items":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An item id owned by someone else answers 409", func() {
			deps.addErr = fmt.Errorf("store items: %w", repository.ErrConflict)
			w := serve(h, http.MethodPost, "/owners/u7/items", `{"items":[{"id":"x","image_ref":"x.png","category":"Shoes"}]}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(w.Body.String(), ShouldContainSubstring, `"code":"conflict"`)
			So(deps.reasons, ShouldBeEmpty)
		})

		Convey("Malformed JSON is rejected", func() {
			w := serve(h, http.MethodPost, "/owners/u7/items", `{"items":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("GET items returns the wardrobe", func() {
			deps.items = []model.Item{{ID: "t1", ImageRef: "t1.png", Category: model.CategoryTops, OwnerID: "u7"}}
			w := serve(h, http.MethodGet, "/owners/u7/items", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var resp types.ItemsResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.Items, ShouldResemble, []types.Item{{ID: "t1", ImageRef: "t1.png", Category: "Tops"}})
		})
	})
}

func TestRecommendations(t *testing.T) {
	Convey("Given the API router over stored matches", t, func() {
		rec := model.NewRecommendation("r1", "u1", []string{"t1", "b1", "s1"},
			[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.9}, time.Unix(0, 0))
		deps := &mockDeps{matches: []repository.Match{{Recommendation: rec, Score: 0.9}}}
		h := api.NewServer(deps).Routes()

		Convey("The default threshold applies when min_score is absent", func() {
			w := serve(h, http.MethodGet, "/owners/u1/recommendations?event=Beach", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotEvent, ShouldEqual, "Beach")
			So(deps.gotMin, ShouldEqual, 0.6)

			var resp types.RecommendationsResponse
			So(json.Unmarshal(w.Body.Bytes(), &resp), ShouldBeNil)
			So(resp.OwnerID, ShouldEqual, "u1")
			So(resp.Threshold, ShouldEqual, 0.6)
			So(len(resp.Results), ShouldEqual, 1)
			So(resp.Results[0].MatchScore, ShouldEqual, 0.9)
			So(resp.Results[0].BestScore, ShouldEqual, 0.9)
			So(resp.Results[0].Scores["Beach"], ShouldEqual, 0.9)
			So(resp.Results[0].Outfit, ShouldResemble, []string{"t1", "b1", "s1"})
		})

		Convey("min_score is passed through", func() {
			w := serve(h, http.MethodGet, "/owners/u1/recommendations?min_score=0.25", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotMin, ShouldEqual, 0.25)
			So(deps.gotEvent, ShouldBeEmpty)
		})

		Convey("An out of range or malformed min_score is rejected", func() {
			So(serve(h, http.MethodGet, "/owners/u1/recommendations?min_score=2", "").Code, ShouldEqual, http.StatusBadRequest)
			So(serve(h, http.MethodGet, "/owners/u1/recommendations?min_score=abc", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An unknown event answers 400", func() {
			deps.recsErr = fmt.Errorf("%q: %w", "Disco", repository.ErrUnknownEvent)
			w := serve(h, http.MethodGet, "/owners/u1/recommendations?event=Disco", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An owner without records answers 404", func() {
			deps.recsErr = fmt.Errorf("recommendations: %w", repository.ErrNotFound)
			w := serve(h, http.MethodGet, "/owners/u1/recommendations", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A storage failure answers 500", func() {
			deps.recsErr = errors.Join(repository.ErrPersistence, errors.New("disk I/O error at /var/lib/fitscore.db"))
			w := serve(h, http.MethodGet, "/owners/u1/recommendations", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(w.Body.String(), ShouldContainSubstring, `"message":"Internal Server Error"`)
			So(w.Body.String(), ShouldNotContainSubstring, "disk")
			So(w.Body.String(), ShouldNotContainSubstring, "persistence")
		})
	})
}
