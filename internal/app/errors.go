package service

import "errors"

var (
	// ErrNotStarted is returned when a trigger arrives before Start or after Stop.
	ErrNotStarted = errors.New("service not started")

	// ErrInvalidOwner is returned for an empty owner id.
	ErrInvalidOwner = errors.New("invalid owner id")

	// ErrInvalidItem is returned when an uploaded item misses an id, image or category.
	ErrInvalidItem = errors.New("invalid item")

	// ErrInvalidThreshold is returned for a minimum score outside [0,1].
	ErrInvalidThreshold = errors.New("threshold must be within [0,1]")
)
