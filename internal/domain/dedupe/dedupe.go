// Package dedupe tracks owners that already have a generation pending,
// so repeated triggers collapse into one run.
package dedupe

import (
	"container/list"
	"context"
	"sync"
)

// Deduper records pending keys.
type Deduper interface {
	// SeenAndRecord reports whether id is already pending and marks it
	// pending if not. The check and the mark are atomic.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord clears id, letting the next trigger through.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps pending ids in insertion order. In bounded
// mode the oldest id is dropped when full, which at worst lets one
// duplicate run through.
type inMemoryDeduper struct {
	mu      sync.Mutex
	order   *list.List
	pending map[string]*list.Element
	maxSize int // <= 0 means unbounded
}

// NewInMemoryDeduper creates a deduper. The default bound is 50000 ids.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: 50000}
	for _, opt := range opts {
		opt(d)
	}
	d.order = list.New()
	d.pending = make(map[string]*list.Element)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.pending[id]; ok {
		return true
	}
	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.pending, oldest.Value.(string))
	}
	d.pending[id] = d.order.PushBack(id)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.pending[id]; ok {
		d.order.Remove(el)
		delete(d.pending, id)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.order.Len())
}
