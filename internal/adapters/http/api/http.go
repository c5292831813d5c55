// Package api exposes the recommendation service over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/okian/fitscore/internal/adapters/http/swagger"
	"github.com/okian/fitscore/internal/adapters/repository"
	service "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	Trigger(ctx context.Context, ownerID, reason string) (service.Ticket, error)
	TriggerIfMissing(ctx context.Context, ownerID string) (service.Ticket, error)
	AddItems(ctx context.Context, ownerID string, items []model.Item) (service.Ticket, error)
	Items(ctx context.Context, ownerID string) ([]model.Item, error)
	Recommendations(ctx context.Context, ownerID, event string, minScore float64) ([]repository.Match, error)
	Threshold() float64
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	ownersHandler *OwnersHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
		ownersHandler: NewOwnersHandler(deps),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Get("/events", HandleEvents)
	swagger.Register(r)

	r.Route("/owners/{ownerID}", func(r chi.Router) {
		r.Post("/generate", s.ownersHandler.HandleGenerate)
		r.Post("/login", s.ownersHandler.HandleLogin)
		r.Get("/items", s.ownersHandler.HandleGetItems)
		r.Post("/items", s.ownersHandler.HandlePostItems)
		r.Get("/recommendations", s.ownersHandler.HandleGetRecommendations)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err to the client. Server-side failures only carry the
// status text; their detail stays in the log.
func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeUpstreamError translates a service error into a response.
func writeUpstreamError(ctx context.Context, l logger.Logger, w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		l.Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}
