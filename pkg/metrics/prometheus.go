// Package metrics provides Prometheus metrics for the fitscore service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Generation pipeline
	generationRuns      *prometheus.CounterVec
	generationLatency   prometheus.Histogram
	candidatesGenerated prometheus.Counter
	candidatesSkipped   *prometheus.CounterVec
	recordsPersisted    prometheus.Counter
	scoringLatency      prometheus.Histogram
	scoringErrors       prometheus.Counter
	embedCacheHits      prometheus.Counter
	embedCacheMisses    prometheus.Counter

	// Triggers
	triggers          *prometheus.CounterVec
	triggerDuplicates prometheus.Counter

	// Repository
	storedRecommendations   prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPause        prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "fitscore",
		subsystem:        "recommender",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	latency := m.histogramBuckets
	runBuckets := prometheus.ExponentialBuckets(10, 2, 14) // 10ms .. ~80s

	m.generationRuns = m.counterVec("generation_runs_total",
		"Generation runs by outcome (ok, insufficient, shape_error, error)", "outcome")
	m.generationLatency = m.histogram("generation_latency_milliseconds",
		"Wall time of one generation run in milliseconds", runBuckets)
	m.candidatesGenerated = m.counter("candidates_generated_total",
		"Outfit candidates produced by the candidate generator")
	m.candidatesSkipped = m.counterVec("candidates_skipped_total",
		"Candidates dropped before scoring, by reason", "reason")
	m.recordsPersisted = m.counter("records_persisted_total",
		"Recommendation records written")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds",
		"Latency of one scorer batch in milliseconds", latency)
	m.scoringErrors = m.counter("scoring_errors_total",
		"Scorer batches that failed")
	m.embedCacheHits = m.counter("embedding_cache_hits_total",
		"Image embeddings served from the persistent cache")
	m.embedCacheMisses = m.counter("embedding_cache_misses_total",
		"Image embeddings computed by the backbone")

	m.triggers = m.counterVec("triggers_total",
		"Generation triggers accepted, by reason", "reason")
	m.triggerDuplicates = m.counter("trigger_duplicates_total",
		"Triggers collapsed into an already pending job")

	m.storedRecommendations = m.gauge("stored_recommendations",
		"Recommendation records currently stored in memory")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds",
		"Latency of repository writes in milliseconds", latency)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds",
		"Latency of repository reads in milliseconds", latency)

	m.queueSize = m.gauge("queue_size", "Jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued jobs")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Jobs taken by workers")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Jobs rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Configured generation workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Running generation workers")
	m.workerMessagesPerSecond = m.gauge("worker_jobs_per_second", "Jobs finished per second")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Time a worker spends on one job in milliseconds", runBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Jobs whose generation failed")

	m.httpRequests = m.counterVec("http_requests_total",
		"HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: latency,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Live goroutines")
	m.systemGCPause = m.histogram("system_gc_pause_milliseconds",
		"Average GC pause in milliseconds", prometheus.ExponentialBuckets(0.01, 4, 8))
}

// Generation pipeline.

// RecordGenerationRun counts one finished run by outcome.
func RecordGenerationRun(outcome string) {
	globalManager.generationRuns.WithLabelValues(outcome).Inc()
}

// RecordGenerationLatency observes one run's duration.
func RecordGenerationLatency(latencyMs float64) {
	globalManager.generationLatency.Observe(latencyMs)
}

// RecordCandidatesGenerated adds n generated candidates.
func RecordCandidatesGenerated(n int) {
	globalManager.candidatesGenerated.Add(float64(n))
}

// RecordCandidatesSkipped counts one dropped candidate.
func RecordCandidatesSkipped(reason string) {
	globalManager.candidatesSkipped.WithLabelValues(reason).Inc()
}

// RecordRecordsPersisted adds n written records.
func RecordRecordsPersisted(n int) {
	globalManager.recordsPersisted.Add(float64(n))
}

// RecordScoringLatency observes one scorer batch.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError counts one failed scorer batch.
func RecordScoringError() {
	globalManager.scoringErrors.Inc()
}

// RecordEmbeddingCacheHit counts one cached embedding.
func RecordEmbeddingCacheHit() {
	globalManager.embedCacheHits.Inc()
}

// RecordEmbeddingCacheMiss counts one computed embedding.
func RecordEmbeddingCacheMiss() {
	globalManager.embedCacheMisses.Inc()
}

// Triggers.

// RecordTrigger counts one accepted trigger.
func RecordTrigger(reason string) {
	globalManager.triggers.WithLabelValues(reason).Inc()
}

// RecordTriggerDuplicate counts one collapsed trigger.
func RecordTriggerDuplicate() {
	globalManager.triggerDuplicates.Inc()
}

// Repository.

// UpdateStoredRecommendations sets the stored record gauge.
func UpdateStoredRecommendations(n int) {
	globalManager.storedRecommendations.Set(float64(n))
}

// RecordRepositoryUpdateLatency observes one write.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency observes one read.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue.

func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(ratio float64) { globalManager.queueUtilization.Set(ratio) }
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }
func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordWorkerProcessingLatency observes one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// HTTP.

// RecordHTTPRequest counts one request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes one request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent counts one error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime observes the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPause.Observe(pauseMs)
}

// GetRegistry returns the registry holding the global collectors.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
