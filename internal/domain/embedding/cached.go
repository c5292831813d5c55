package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/okian/fitscore/pkg/logger"
	"github.com/okian/fitscore/pkg/metrics"
)

// Store persists embeddings by content key.
type Store interface {
	Get(ctx context.Context, key string) ([]float64, bool, error)
	Put(ctx context.Context, key string, vec []float64) error
}

// Cached memoizes an Embedder in a Store, keyed by weights version and
// image content hash. Store failures degrade to recomputation.
type Cached struct {
	inner   Embedder
	store   Store
	version string
	log     logger.Logger
}

// CacheOption configures a Cached embedder.
type CacheOption func(*Cached)

// WithCacheLogger sets the logger for store failures.
func WithCacheLogger(l logger.Logger) CacheOption {
	return func(c *Cached) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCached wraps inner. version must change whenever weights change.
func NewCached(inner Embedder, store Store, version string, opts ...CacheOption) *Cached {
	c := &Cached{inner: inner, store: store, version: version}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the store key for image bytes.
func (c *Cached) Key(data []byte) string {
	sum := sha256.Sum256(data)
	return c.version + ":" + hex.EncodeToString(sum[:])
}

// Width returns the inner embedder's width.
func (c *Cached) Width() int { return c.inner.Width() }

// Blank delegates to the inner embedder.
func (c *Cached) Blank(ctx context.Context) ([]float64, error) { return c.inner.Blank(ctx) }

// Embed returns a stored vector when present, otherwise computes and stores it.
func (c *Cached) Embed(ctx context.Context, ref string, data []byte) ([]float64, error) {
	key := c.Key(data)
	vec, ok, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		c.warn(ctx, "embedding cache read failed", ref, err)
	case ok && len(vec) == c.inner.Width():
		metrics.RecordEmbeddingCacheHit()
		return vec, nil
	}
	metrics.RecordEmbeddingCacheMiss()

	vec, err = c.inner.Embed(ctx, ref, data)
	if err != nil {
		return nil, err
	}
	if err := c.store.Put(ctx, key, vec); err != nil {
		c.warn(ctx, "embedding cache write failed", ref, err)
	}
	return vec, nil
}

func (c *Cached) warn(ctx context.Context, msg, ref string, err error) {
	if c.log == nil {
		return
	}
	c.log.Warn(ctx, msg, logger.String("ref", ref), logger.Error(err))
}
