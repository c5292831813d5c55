package recommend

import (
	"time"

	"github.com/okian/fitscore/internal/domain/candidates"
	"github.com/okian/fitscore/internal/domain/ownerlock"
	"github.com/okian/fitscore/pkg/logger"
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithBatchSize sets how many outfits share one scorer call, and so
// one global attention context.
func WithBatchSize(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.batchSize = n
		}
	}
}

// WithEmbedConcurrency bounds parallel image embedding per run.
func WithEmbedConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithCandidateGenerator replaces the default candidate generator.
func WithCandidateGenerator(c *candidates.Generator) Option {
	return func(g *Generator) {
		if c != nil {
			g.candidates = c
		}
	}
}

// WithLocks shares a per-owner lock map with other components.
func WithLocks(l *ownerlock.Map) Option {
	return func(g *Generator) {
		if l != nil {
			g.locks = l
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDFunc overrides record id generation.
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) {
		if fn != nil {
			g.newID = fn
		}
	}
}
