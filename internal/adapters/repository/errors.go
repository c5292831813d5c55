package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("recommendations not found")
	ErrPersistence  = errors.New("persistence failure")
	ErrUnknownEvent = errors.New("unknown event label")
	ErrClosed       = errors.New("store closed")
	ErrConflict     = errors.New("item owned by another user")
)
