package candidates

import "errors"

// Sentinel kinds for candidate errors.
var (
	ErrTooManySlots = errors.New("outfit exceeds slot count")
)
