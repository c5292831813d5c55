package worker

import (
	"context"
	"time"

	"github.com/okian/fitscore/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRunTimeout bounds each generation run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(w *InMemoryWorker) {
		if d >= 0 {
			w.runTimeout = d
		}
	}
}

// WithOnDequeue calls fn as soon as a job is taken, before it runs.
func WithOnDequeue(fn func(ctx context.Context, j Job)) Option {
	return func(w *InMemoryWorker) {
		w.onDequeue = fn
	}
}

func withDone(fn func(j Job, err error)) Option {
	return func(w *InMemoryWorker) {
		w.onDone = fn
	}
}
