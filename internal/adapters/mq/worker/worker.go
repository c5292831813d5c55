// Package worker runs recommendation generation off the request path.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
	"github.com/okian/fitscore/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = model.Job

// Generator regenerates one owner's recommendations.
type Generator interface {
	Generate(ctx context.Context, ownerID string) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker takes jobs from a Queue and runs the Generator.
type InMemoryWorker struct {
	queue     Queue
	generator Generator
	name      string

	runTimeout time.Duration
	onDequeue  func(ctx context.Context, j Job)
	onDone     func(j Job, err error)

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(queue Queue, generator Generator, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		generator: generator,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if w.onDequeue != nil {
				w.onDequeue(ctx, j)
			}
			err := w.process(ctx, j)
			if w.onDone != nil {
				w.onDone(j, err)
			}
		}
	}
}

// Shutdown signals the worker and waits for its loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j Job) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if w.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.runTimeout)
		defer cancel()
	}

	if err := w.generator.Generate(ctx, j.OwnerID); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "generate")
		w.logger.Error(ctx, "generation failed",
			logger.String("job", j.JobID),
			logger.String("owner", j.OwnerID),
			logger.String("reason", j.Reason),
			logger.Error(err))
		return fmt.Errorf("generate %s: %w", j.OwnerID, err)
	}
	w.logger.Debug(ctx, "job done",
		logger.String("job", j.JobID),
		logger.String("owner", j.OwnerID),
		logger.Duration("queued", start.Sub(j.TS)))
	return nil
}

// Pool manages a fixed set of workers on one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	shutdown chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
	window    atomic.Int64
	lastTick  time.Time

	logger logger.Logger
}

// NewPool creates workerCount workers sharing queue and generator. A
// count below one defaults to the CPU count.
func NewPool(workerCount int, queue Queue, generator Generator, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		shutdown: make(chan struct{}),
		lastTick: time.Now(),
		logger:   logger.Get().Named("worker-pool"),
	}

	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("worker-"+strconv.Itoa(i)), withDone(p.record))
		p.workers[i] = NewInMemoryWorker(queue, generator, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(workerCount)
	metrics.UpdateWorkerMessagesPerSecond(0)
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.metricsLoop(ctx)
}

// Processed returns the number of jobs finished without error.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of jobs whose generation failed.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

func (p *Pool) record(_ Job, err error) {
	if err != nil {
		p.failed.Add(1)
	} else {
		p.processed.Add(1)
	}
	p.window.Add(1)
}

func (p *Pool) metricsLoop(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.shutdown:
			return
		case now := <-ticker.C:
			if secs := now.Sub(p.lastTick).Seconds(); secs > 0 {
				metrics.UpdateWorkerMessagesPerSecond(float64(p.window.Swap(0)) / secs)
			}
			p.lastTick = now
		}
	}
}

// Shutdown closes the queue, stops every worker and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	close(p.shutdown)

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	return nil
}
