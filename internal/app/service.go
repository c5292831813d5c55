// Package service wires the background generation pipeline and exposes
// the operations the HTTP API depends on.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/fitscore/internal/adapters/mq/queue"
	workerpool "github.com/okian/fitscore/internal/adapters/mq/worker"
	"github.com/okian/fitscore/internal/adapters/repository"
	"github.com/okian/fitscore/internal/domain/dedupe"
	"github.com/okian/fitscore/internal/domain/model"
	"github.com/okian/fitscore/pkg/logger"
	"github.com/okian/fitscore/pkg/metrics"
)

// Trigger reasons.
const (
	ReasonLogin  = "login"
	ReasonUpload = "upload"
	ReasonManual = "manual"
)

// TriggerStatus reports what a trigger did.
type TriggerStatus string

const (
	// StatusQueued means a new job was enqueued.
	StatusQueued TriggerStatus = "queued"
	// StatusPending means a job for the owner was already waiting.
	StatusPending TriggerStatus = "pending"
	// StatusExists means the owner already had recommendations.
	StatusExists TriggerStatus = "exists"
)

// Ticket describes the outcome of a trigger.
type Ticket struct {
	OwnerID string
	JobID   string // empty unless Status is StatusQueued
	Status  TriggerStatus
}

// Service owns the queue, the pending trigger tracker and the worker pool.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	generator workerpool.Generator

	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool

	workerCount int
	queueSize   int
	dedupeSize  int
	threshold   float64
	runTimeout  time.Duration
	newID       func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service around store and generator. Nothing runs
// until Start.
func New(store repository.Store, generator workerpool.Generator, opts ...Option) *Service {
	s := &Service{
		store:       store,
		generator:   generator,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  50000,
		threshold:   repository.DefaultThreshold,
		runTimeout:  10 * time.Minute,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates the queue and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	deduper, queue := s.deduper, s.queue
	s.pool = workerpool.NewPool(s.workerCount, queue, s.generator,
		workerpool.WithRunTimeout(s.runTimeout),
		workerpool.WithOnDequeue(func(ctx context.Context, j workerpool.Job) {
			deduper.Unrecord(ctx, j.OwnerID)
			queue.MarkDequeued()
		}),
	)
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "recommendation service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop shuts the workers down. A running job finishes first; jobs still
// queued are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping recommendation service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}
	s.started = false
	s.logger.Info(ctx, "recommendation service stopped")
}

// Trigger schedules a regeneration for ownerID. A trigger for an owner
// that already has a job waiting is collapsed into it.
func (s *Service) Trigger(ctx context.Context, ownerID, reason string) (Ticket, error) {
	if ownerID == "" {
		return Ticket{}, ErrInvalidOwner
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return Ticket{}, ErrNotStarted
	}

	if s.deduper.SeenAndRecord(ctx, ownerID) {
		metrics.RecordTriggerDuplicate()
		s.logger.Debug(ctx, "generation already pending", logger.String("owner", ownerID))
		return Ticket{OwnerID: ownerID, Status: StatusPending}, nil
	}

	job := model.Job{JobID: s.newID(), OwnerID: ownerID, Reason: reason, TS: time.Now()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, ownerID)
		s.logger.Warn(ctx, "enqueue failed",
			logger.String("owner", ownerID),
			logger.String("reason", reason),
			logger.Error(err))
		return Ticket{}, fmt.Errorf("trigger %s: %w", ownerID, err)
	}

	metrics.RecordTrigger(reason)
	s.logger.Debug(ctx, "generation queued",
		logger.String("owner", ownerID),
		logger.String("job", job.JobID),
		logger.String("reason", reason))
	return Ticket{OwnerID: ownerID, JobID: job.JobID, Status: StatusQueued}, nil
}

// TriggerIfMissing schedules a regeneration only when the owner has no
// stored recommendations. Used on login.
func (s *Service) TriggerIfMissing(ctx context.Context, ownerID string) (Ticket, error) {
	if ownerID == "" {
		return Ticket{}, ErrInvalidOwner
	}
	recs, err := s.store.Recommendations(ctx, ownerID)
	if err != nil {
		return Ticket{}, fmt.Errorf("check recommendations: %w", err)
	}
	if len(recs) > 0 {
		return Ticket{OwnerID: ownerID, Status: StatusExists}, nil
	}
	return s.Trigger(ctx, ownerID, ReasonLogin)
}

// AddItems stores items for ownerID and schedules a regeneration.
func (s *Service) AddItems(ctx context.Context, ownerID string, items []model.Item) (Ticket, error) {
	if ownerID == "" {
		return Ticket{}, ErrInvalidOwner
	}
	owned := make([]model.Item, len(items))
	for i, it := range items {
		if it.ID == "" || it.ImageRef == "" || it.Category == "" {
			return Ticket{}, fmt.Errorf("item %d: %w", i, ErrInvalidItem)
		}
		it.OwnerID = ownerID
		owned[i] = it
	}
	if err := s.store.PutItems(ctx, owned...); err != nil {
		return Ticket{}, fmt.Errorf("store items: %w", err)
	}
	return s.Trigger(ctx, ownerID, ReasonUpload)
}

// Items returns the owner's wardrobe.
func (s *Service) Items(ctx context.Context, ownerID string) ([]model.Item, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	return s.store.ItemsForOwner(ctx, ownerID)
}

// Threshold returns the default minimum score for reads.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Recommendations returns the owner's records scoring at least minScore.
// With an event, records are ranked by that event's score; without one,
// by their best score. An owner with nothing stored gets ErrNotFound.
func (s *Service) Recommendations(ctx context.Context, ownerID, event string, minScore float64) ([]repository.Match, error) {
	if ownerID == "" {
		return nil, ErrInvalidOwner
	}
	if minScore < 0 || minScore > 1 {
		return nil, ErrInvalidThreshold
	}
	recs, err := s.store.Recommendations(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("recommendations for %q: %w", ownerID, repository.ErrNotFound)
	}
	if event == "" {
		return repository.FilterByBest(recs, minScore), nil
	}
	return repository.FilterByEvent(recs, event, minScore)
}

// IsValidationError reports whether err came from bad caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrInvalidItem) ||
		errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, repository.ErrUnknownEvent)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"threshold":   s.threshold,
	}
	if s.started {
		queueLen := s.queue.Len(context.Background())
		stats["queueLength"] = queueLen
		stats["pendingOwners"] = s.deduper.Size()
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
