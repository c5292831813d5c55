package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	// ErrShape reports a tensor whose dimensions break a model invariant:
	// wrong slot count, wrong embedding width or malformed parameters.
	ErrShape = errors.New("shape mismatch")
)
