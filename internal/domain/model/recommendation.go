package model

import "time"

// Recommendation is one scored outfit for an owner. A generation run
// replaces the owner's full set; records are never updated in place.
type Recommendation struct {
	ID        string
	OwnerID   string
	Scores    map[EventLabel]float64 // per-event probability in [0,1]
	Outfit    []string               // item ids in slot order, blanks stripped
	BestScore float64                // max over Scores
	CreatedAt time.Time
}

// NewRecommendation builds a record from positional probabilities (one per
// entry of EventLabels) and derives BestScore.
func NewRecommendation(id, ownerID string, outfit []string, probs []float64, at time.Time) Recommendation {
	scores := make(map[EventLabel]float64, len(EventLabels))
	best := 0.0
	for i, label := range EventLabels {
		if i >= len(probs) {
			break
		}
		scores[label] = probs[i]
		if i == 0 || probs[i] > best {
			best = probs[i]
		}
	}
	out := make([]string, len(outfit))
	copy(out, outfit)
	return Recommendation{
		ID:        id,
		OwnerID:   ownerID,
		Scores:    scores,
		Outfit:    out,
		BestScore: best,
		CreatedAt: at,
	}
}

// Score returns the probability recorded for label.
func (r *Recommendation) Score(label EventLabel) (float64, bool) {
	s, ok := r.Scores[label]
	return s, ok
}
