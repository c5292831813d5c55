// Package loadtest drives a running fitscore service with synthetic
// wardrobes and checks the recommendations it produces.
package loadtest

import "time"

// Config holds configuration for a load test run.
type Config struct {
	BaseURL       string        // base URL of the service
	ImageDir      string        // the service's image_root; swatches are written here
	Owners        int           // number of synthetic owners
	ItemsPerOwner int           // wardrobe size per owner
	Workers       int           // concurrent HTTP callers
	Timeout       time.Duration // per request timeout
	WaitTimeout   time.Duration // how long to wait for all owners to be scored
	PollInterval  time.Duration // delay between recommendation polls
	Seed          uint64        // wardrobe generator seed
}

// Stats holds run statistics.
type Stats struct {
	Owners        int
	ItemsPosted   int
	Queued        int
	Scored        int
	Outfits       int
	Insufficient  int
	Failed        int
	StartTime     time.Time
	Duration      time.Duration
	SlowestWait   time.Duration
	PostDuration  time.Duration
	ScoreDuration time.Duration
}
