package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	service "github.com/okian/fitscore/internal/app"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/internal/domain/types"
	"github.com/okian/fitscore/pkg/logger"
)

const maxBodyBytes = 1 << 20

// OwnersHandler serves the per-owner routes.
type OwnersHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewOwnersHandler creates a new owners handler.
func NewOwnersHandler(deps Dependencies) *OwnersHandler {
	return &OwnersHandler{deps: deps, logger: logger.Get().Named("api.owners")}
}

func ownerID(r *http.Request) (string, error) {
	p := ownerParam{OwnerID: chi.URLParam(r, "ownerID")}
	if err := validateRequest(&p); err != nil {
		return "", err
	}
	return p.OwnerID, nil
}

// writeTicket maps a ticket to 202 for a new job and 200 otherwise.
func writeTicket(w http.ResponseWriter, t service.Ticket) {
	status := http.StatusOK
	if t.Status == service.StatusQueued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, types.TriggerResponse{OwnerID: t.OwnerID, JobID: t.JobID, Status: string(t.Status)})
}

// HandleGenerate handles POST /owners/{ownerID}/generate.
func (h *OwnersHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	t, err := h.deps.Trigger(r.Context(), owner, service.ReasonManual)
	if err != nil {
		writeUpstreamError(r.Context(), h.logger, w, err)
		return
	}
	writeTicket(w, t)
}

// HandleLogin handles POST /owners/{ownerID}/login. A job is queued only
// when the owner has no stored recommendations.
func (h *OwnersHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	t, err := h.deps.TriggerIfMissing(r.Context(), owner)
	if err != nil {
		writeUpstreamError(r.Context(), h.logger, w, err)
		return
	}
	writeTicket(w, t)
}

// HandleGetItems handles GET /owners/{ownerID}/items.
func (h *OwnersHandler) HandleGetItems(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	items, err := h.deps.Items(r.Context(), owner)
	if err != nil {
		writeUpstreamError(r.Context(), h.logger, w, err)
		return
	}
	resp := types.ItemsResponse{OwnerID: owner, Items: make([]types.Item, len(items))}
	for i, it := range items {
		resp.Items[i] = types.Item{ID: it.ID, ImageRef: it.ImageRef, Category: string(it.Category)}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandlePostItems handles POST /owners/{ownerID}/items. Stored items
// trigger a regeneration.
func (h *OwnersHandler) HandlePostItems(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	var req itemsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := validateRequest(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	items := make([]model.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = model.Item{ID: it.ID, ImageRef: it.ImageRef, Category: model.Category(it.Category), OwnerID: owner}
	}
	t, err := h.deps.AddItems(r.Context(), owner, items)
	if err != nil {
		writeUpstreamError(r.Context(), h.logger, w, err)
		return
	}
	writeTicket(w, t)
}

// HandleGetRecommendations handles GET /owners/{ownerID}/recommendations.
// Query: event (optional label) and min_score (defaults to the service
// threshold).
func (h *OwnersHandler) HandleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	q := recommendationsQuery{Event: r.URL.Query().Get("event"), MinScore: h.deps.Threshold()}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		q.MinScore = v
	}
	if err := validateRequest(&q); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	matches, err := h.deps.Recommendations(r.Context(), owner, q.Event, q.MinScore)
	if err != nil {
		writeUpstreamError(r.Context(), h.logger, w, err)
		return
	}
	resp := types.RecommendationsResponse{
		OwnerID:   owner,
		Event:     q.Event,
		Threshold: q.MinScore,
		Results:   make([]types.OutfitResult, len(matches)),
	}
	for i, m := range matches {
		scores := make(map[string]float64, len(m.Recommendation.Scores))
		for label, s := range m.Recommendation.Scores {
			scores[string(label)] = s
		}
		resp.Results[i] = types.OutfitResult{
			ID:         m.Recommendation.ID,
			MatchScore: m.Score,
			BestScore:  m.Recommendation.BestScore,
			Outfit:     m.Recommendation.Outfit,
			Scores:     scores,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleEvents handles GET /events.
func HandleEvents(w http.ResponseWriter, _ *http.Request) {
	events := make([]string, len(model.EventLabels))
	for i, l := range model.EventLabels {
		events[i] = string(l)
	}
	writeJSON(w, http.StatusOK, types.EventsResponse{Events: events})
}
