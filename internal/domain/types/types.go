// Package types contains common types used across the application
package types

// OutfitResult is one recommendation as returned by the HTTP layer.
type OutfitResult struct {
	ID         string             `json:"id"`
	MatchScore float64            `json:"match_score"`
	BestScore  float64            `json:"best_score"`
	Outfit     []string           `json:"outfit"`
	Scores     map[string]float64 `json:"scores"`
}

// RecommendationsResponse is the body of GET /owners/{id}/recommendations.
type RecommendationsResponse struct {
	OwnerID   string         `json:"owner_id"`
	Event     string         `json:"event,omitempty"`
	Threshold float64        `json:"threshold"`
	Results   []OutfitResult `json:"results"`
}

// TriggerResponse acknowledges a generation trigger.
type TriggerResponse struct {
	OwnerID string `json:"owner_id"`
	JobID   string `json:"job_id,omitempty"`
	Status  string `json:"status"`
}

// Item is one wardrobe piece as exchanged over HTTP.
type Item struct {
	ID       string `json:"id"`
	ImageRef string `json:"image_ref"`
	Category string `json:"category"`
}

// ItemsResponse is the body of GET /owners/{id}/items.
type ItemsResponse struct {
	OwnerID string `json:"owner_id"`
	Items   []Item `json:"items"`
}

// EventsResponse lists the events outfits are scored for, in model order.
type EventsResponse struct {
	Events []string `json:"events"`
}
