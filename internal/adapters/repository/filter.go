package repository

import (
	"fmt"
	"sort"

	"github.com/okian/fitscore/internal/domain/model"
)

// DefaultThreshold is the minimum event score a read returns by default.
const DefaultThreshold = 0.60

// Match is a record selected for one event.
type Match struct {
	Recommendation model.Recommendation
	Score          float64
}

// FilterByEvent keeps records scoring at least threshold for event,
// ordered by that score descending. Ties keep stored order.
func FilterByEvent(recs []model.Recommendation, event string, threshold float64) ([]Match, error) {
	label, ok := model.ParseEventLabel(event)
	if !ok {
		return nil, fmt.Errorf("%q: %w", event, ErrUnknownEvent)
	}
	var out []Match
	for i := range recs {
		if s, ok := recs[i].Score(label); ok && s >= threshold {
			out = append(out, Match{Recommendation: recs[i], Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// FilterByBest keeps records whose best event score is at least
// threshold, ordered by BestScore descending.
func FilterByBest(recs []model.Recommendation, threshold float64) []Match {
	var out []Match
	for i := range recs {
		if recs[i].BestScore >= threshold {
			out = append(out, Match{Recommendation: recs[i], Score: recs[i].BestScore})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
