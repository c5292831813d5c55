package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/metrics"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string][]model.Item // owner -> items in insertion order
	owners map[string]string       // item id -> owner
	recs   map[string][]model.Recommendation
	closed bool
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:  make(map[string][]model.Item),
		owners: make(map[string]string),
		recs:   make(map[string][]model.Recommendation),
	}
}

func (s *MemoryStore) ItemsForOwner(_ context.Context, ownerID string) ([]model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("items for %q: %w", ownerID, ErrClosed)
	}
	return append([]model.Item(nil), s.items[ownerID]...), nil
}

func (s *MemoryStore) PutItems(_ context.Context, items ...model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("put items: %w", ErrClosed)
	}
	batch := make(map[string]string, len(items))
	for _, it := range items {
		owner, ok := s.owners[it.ID]
		if !ok {
			owner, ok = batch[it.ID]
		}
		if ok && owner != it.OwnerID {
			return fmt.Errorf("put item %q for %q: %w", it.ID, it.OwnerID, ErrConflict)
		}
		batch[it.ID] = it.OwnerID
	}
	for _, it := range items {
		if _, ok := s.owners[it.ID]; ok {
			replaceItem(s.items[it.OwnerID], it)
			continue
		}
		s.owners[it.ID] = it.OwnerID
		s.items[it.OwnerID] = append(s.items[it.OwnerID], it)
	}
	return nil
}

func replaceItem(items []model.Item, it model.Item) {
	for i := range items {
		if items[i].ID == it.ID {
			items[i] = it
			return
		}
	}
}

func (s *MemoryStore) ReplaceRecommendations(_ context.Context, ownerID string, recs []model.Recommendation) error {
	cp := make([]model.Recommendation, len(recs))
	for i := range recs {
		cp[i] = cloneRecommendation(recs[i])
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("replace recommendations for %q: %w", ownerID, ErrClosed)
	}
	s.recs[ownerID] = cp
	metrics.UpdateStoredRecommendations(s.countLocked())
	return nil
}

func (s *MemoryStore) DeleteRecommendations(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("delete recommendations for %q: %w", ownerID, ErrClosed)
	}
	delete(s.recs, ownerID)
	metrics.UpdateStoredRecommendations(s.countLocked())
	return nil
}

func (s *MemoryStore) Recommendations(_ context.Context, ownerID string) ([]model.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("recommendations for %q: %w", ownerID, ErrClosed)
	}
	src := s.recs[ownerID]
	out := make([]model.Recommendation, len(src))
	for i := range src {
		out[i] = cloneRecommendation(src[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) countLocked() int {
	n := 0
	for _, r := range s.recs {
		n += len(r)
	}
	return n
}

func cloneRecommendation(r model.Recommendation) model.Recommendation {
	scores := make(map[model.EventLabel]float64, len(r.Scores))
	for k, v := range r.Scores {
		scores[k] = v
	}
	r.Scores = scores
	r.Outfit = append([]string(nil), r.Outfit...)
	return r
}
