package model

// EventLabel names an occasion the scorer predicts suitability for.
type EventLabel string

// EventLabels is the ordered label list. Position i matches output i of
// the classifier, so the order must never change.
var EventLabels = []EventLabel{ //nolint:gochecknoglobals // positional contract with the model
	"Job Interviews",
	"Birthday",
	"Graduations",
	"MET Gala",
	"Business Meeting",
	"Beach",
	"Picnic",
	"Summer",
	"Funeral",
	"Romantic Dinner",
	"Cold",
	"Casual",
	"Wedding",
}

// EventCount is the width of the classifier output.
const EventCount = 13

// ParseEventLabel returns the label matching s exactly.
func ParseEventLabel(s string) (EventLabel, bool) {
	for _, l := range EventLabels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}
