package model

import "time"

// Job asks the background workers to regenerate one owner's recommendations.
type Job struct {
	JobID   string    // unique id, for log correlation
	OwnerID string    // owner whose recommendations are rebuilt
	Reason  string    // trigger source, e.g. "login", "upload"
	TS      time.Time // enqueue time
}
