// Package ownerlock serializes work per key.
package ownerlock

import (
	"context"
	"fmt"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Map hands out one lock per key. Idle keys are released.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns an empty lock map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx ends. The returned func
// releases the lock and must be called exactly once.
func (m *Map) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	m.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		m.release(key, e)
		return nil, fmt.Errorf("lock %q: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}, nil
}

func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Len returns the number of keys currently held or awaited.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
