// Package metrics provides Prometheus metrics for the topic performance service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	latencyBuckets []float64
	rollupBuckets  []float64
	countOutcomes  bool
	constLabels    map[string]string
	metricPrefix   string
	registry       prometheus.Registerer

	// Aggregate store
	outcomesRecorded *prometheus.CounterVec
	recordRetries    prometheus.Counter
	recordFailures   *prometheus.CounterVec
	reconciles       prometheus.Counter
	storeLatency     *prometheus.HistogramVec

	// Classification
	classifications *prometheus.CounterVec

	// Ingestion
	ingestDuplicates  prometheus.Counter
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueBackpressure prometheus.Counter
	workerCount       prometheus.Gauge
	workerLatency     prometheus.Histogram
	workerErrors      prometheus.Counter

	// Rollups
	rollupRuns         *prometheus.CounterVec
	rollupDateFailures prometheus.Counter
	rollupDuration     *prometheus.HistogramVec
	lockFailures       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "topicperf",
		subsystem:      "core",
		latencyBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		rollupBuckets:  []float64{10, 50, 100, 500, 1000, 5000, 15000, 60000, 300000},
		countOutcomes:  true,
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.outcomesRecorded = auto.NewCounterVec(
		m.counterOpts("outcomes_recorded_total", "Outcomes applied to performance records"),
		[]string{"result"},
	)
	m.recordRetries = auto.NewCounter(
		m.counterOpts("record_retries_total", "Full-cycle retries of recordOutcome after transient store errors"),
	)
	m.recordFailures = auto.NewCounterVec(
		m.counterOpts("record_failures_total", "recordOutcome calls that failed after retries"),
		[]string{"class"},
	)
	m.reconciles = auto.NewCounter(
		m.counterOpts("reconciles_total", "Absolute counter overwrites applied by reconciliation"),
	)
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Aggregate store operation latency", m.latencyBuckets),
		[]string{"backend", "op"},
	)

	m.classifications = auto.NewCounterVec(
		m.counterOpts("classifications_total", "Titles classified by resulting topic and match kind"),
		[]string{"topic", "match"},
	)

	m.ingestDuplicates = auto.NewCounter(
		m.counterOpts("ingest_duplicates_total", "Outcome events dropped as already seen"),
	)
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Outcome events waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum outcome queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Outcome events enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeued_total", "Outcome events dequeued"))
	m.queueBackpressure = auto.NewCounter(
		m.counterOpts("queue_backpressure_total", "Outcome events rejected because the queue was full"),
	)
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running ingestion workers"))
	m.workerLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to classify and record one outcome", m.latencyBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Outcome events the workers failed to record"))

	m.rollupRuns = auto.NewCounterVec(
		m.counterOpts("rollup_runs_total", "Rollup invocations by kind"),
		[]string{"kind"},
	)
	m.rollupDateFailures = auto.NewCounter(
		m.counterOpts("rollup_date_failures_total", "Timeline dates left stale after a failed rebuild"),
	)
	m.rollupDuration = auto.NewHistogramVec(
		m.histogramOpts("rollup_duration_milliseconds", "Rollup duration", m.rollupBuckets),
		[]string{"kind"},
	)
	m.lockFailures = auto.NewCounterVec(
		m.counterOpts("lock_failures_total", "Failed rollup lock acquisitions"),
		[]string{"backend"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordOutcome counts one applied outcome.
func RecordOutcome(correct bool) {
	if !globalManager.countOutcomes {
		return
	}
	result := "incorrect"
	if correct {
		result = "correct"
	}
	globalManager.outcomesRecorded.WithLabelValues(result).Inc()
}

// RecordRetry counts one full-cycle retry of recordOutcome.
func RecordRetry() {
	globalManager.recordRetries.Inc()
}

// RecordFailure counts a recordOutcome call that gave up. class is transient, integrity or other.
func RecordFailure(class string) {
	globalManager.recordFailures.WithLabelValues(class).Inc()
}

// RecordReconcile counts a bulk reconcile.
func RecordReconcile() {
	globalManager.reconciles.Inc()
}

// RecordStoreLatency records the latency of a store operation in milliseconds.
func RecordStoreLatency(backend, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordClassification counts one classification. match is exact, fuzzy or fallback.
func RecordClassification(topic, match string) {
	globalManager.classifications.WithLabelValues(topic, match).Inc()
}

// RecordIngestDuplicate counts an outcome dropped by the deduper.
func RecordIngestDuplicate() {
	globalManager.ingestDuplicates.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueBackpressure increments the rejected-enqueue counter.
func RecordQueueBackpressure() {
	globalManager.queueBackpressure.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordRollup counts a rollup run and its duration. kind is timeline, ranking or stats.
func RecordRollup(kind string, latencyMs float64) {
	globalManager.rollupRuns.WithLabelValues(kind).Inc()
	globalManager.rollupDuration.WithLabelValues(kind).Observe(latencyMs)
}

// RecordRollupDateFailure counts a timeline date whose rebuild failed.
func RecordRollupDateFailure() {
	globalManager.rollupDateFailures.Inc()
}

// RecordLockFailure counts a failed lock acquisition for the given backend.
func RecordLockFailure(backend string) {
	globalManager.lockFailures.WithLabelValues(backend).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the heap memory in use in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
