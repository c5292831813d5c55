// Package repository stores wardrobe items and generated recommendations.
package repository

import (
	"context"

	"github.com/okian/fitscore/internal/domain/model"
)

// Store provides read/write access to items and recommendations.
type Store interface {
	// ItemsForOwner returns every item owned by ownerID, in insertion order.
	ItemsForOwner(ctx context.Context, ownerID string) ([]model.Item, error)

	// PutItems inserts items or replaces them by ID. An ID already held by
	// another owner fails the whole call with ErrConflict.
	PutItems(ctx context.Context, items ...model.Item) error

	// ReplaceRecommendations atomically swaps the owner's full set. Readers
	// see either the old set or the new one.
	ReplaceRecommendations(ctx context.Context, ownerID string, recs []model.Recommendation) error

	// DeleteRecommendations removes every record for ownerID.
	DeleteRecommendations(ctx context.Context, ownerID string) error

	// Recommendations returns the owner's records in stored order. An owner
	// with nothing stored gets an empty slice.
	Recommendations(ctx context.Context, ownerID string) ([]model.Recommendation, error)

	Close() error
}
