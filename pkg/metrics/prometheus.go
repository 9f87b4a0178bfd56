// Package metrics provides Prometheus metrics for the clickrace service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the clickrace service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Click decisions
	clicksTotal       *prometheus.CounterVec
	disqualifications *prometheus.CounterVec
	registeredUsers   prometheus.Gauge

	// Event window
	eventActive prometheus.Gauge

	// Durable store
	storeWriteLatency *prometheus.HistogramVec
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// Write pipeline
	writeQueueSize     prometheus.Gauge
	writeQueueCapacity prometheus.Gauge
	writeQueueRejected prometheus.Counter
	writesInline       prometheus.Counter

	// Click ingress
	tcpConnections      prometheus.Gauge
	tcpConnectionsTotal prometheus.Counter
	ingressErrors       *prometheus.CounterVec

	// Fleet supervision
	heartbeatsTotal   *prometheus.CounterVec
	workerRestarts    *prometheus.CounterVec
	workersLive       prometheus.Gauge
	workerClicks      *prometheus.GaugeVec
	workerConnections *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "clickrace",
		subsystem:        "",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.clicksTotal = m.counterVec("clicks_total",
		"Click decisions by outcome (accepted or the rejection reason)", "outcome")
	m.disqualifications = m.counterVec("disqualifications_total",
		"Users disqualified by this process, by reason", "reason")
	m.registeredUsers = m.gauge("registered_users",
		"Participants registered in this process")
	m.eventActive = m.gauge("event_active",
		"1 while a competition round is accepting clicks")

	m.storeWriteLatency = m.histogramVec("store_write_latency_milliseconds",
		"Aggregation store write latency in milliseconds", "op")
	m.storeQueryLatency = m.histogramVec("store_query_latency_milliseconds",
		"Aggregation store query latency in milliseconds", "op")
	m.storeErrors = m.counterVec("store_errors_total",
		"Aggregation store failures by operation", "op")

	m.writeQueueSize = m.gauge("write_queue_size",
		"Durable writes waiting in the in-memory queue")
	m.writeQueueCapacity = m.gauge("write_queue_capacity",
		"Capacity of the durable write queue")
	m.writeQueueRejected = m.counter("write_queue_rejected_total",
		"Durable writes rejected by a full or closed queue")
	m.writesInline = m.counter("writes_inline_total",
		"Durable writes performed inline because the queue was unavailable")

	m.tcpConnections = m.gauge("tcp_connections",
		"Open click ingress connections")
	m.tcpConnectionsTotal = m.counter("tcp_connections_total",
		"Accepted click ingress connections")
	m.ingressErrors = m.counterVec("ingress_errors_total",
		"Malformed click ingress payloads by error code", "code")

	m.heartbeatsTotal = m.counterVec("heartbeats_total",
		"Heartbeats received from workers", "worker_id")
	m.workerRestarts = m.counterVec("worker_restarts_total",
		"Worker process respawns", "worker_id")
	m.workersLive = m.gauge("workers_live",
		"Worker processes currently running under the supervisor")
	m.workerClicks = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_clicks",
		Help:        "Click decisions reported by each worker in its last heartbeat",
		ConstLabels: m.constLabels,
	}, []string{"worker_id", "outcome"})
	m.workerConnections = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_connections",
		Help:        "Open click connections reported by each worker in its last heartbeat",
		ConstLabels: m.constLabels,
	}, []string{"worker_id"})

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
}

// RecordClick counts a click decision; outcome is "accepted" or a rejection reason.
func RecordClick(outcome string) {
	globalManager.clicksTotal.WithLabelValues(outcome).Inc()
}

// RecordDisqualification counts a disqualifying transition.
func RecordDisqualification(reason string) {
	globalManager.disqualifications.WithLabelValues(reason).Inc()
}

// UpdateRegisteredUsers sets the registered participant count.
func UpdateRegisteredUsers(count int) {
	globalManager.registeredUsers.Set(float64(count))
}

// UpdateEventActive flags whether a round is running.
func UpdateEventActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	globalManager.eventActive.Set(v)
}

// RecordStoreWrite records the latency of a store write operation.
func RecordStoreWrite(op string, latency time.Duration) {
	globalManager.storeWriteLatency.WithLabelValues(op).Observe(float64(latency.Microseconds()) / 1000)
}

// RecordStoreQuery records the latency of a store read operation.
func RecordStoreQuery(op string, latency time.Duration) {
	globalManager.storeQueryLatency.WithLabelValues(op).Observe(float64(latency.Microseconds()) / 1000)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateWriteQueueSize sets the current write queue depth.
func UpdateWriteQueueSize(size int) {
	globalManager.writeQueueSize.Set(float64(size))
}

// UpdateWriteQueueCapacity sets the write queue capacity.
func UpdateWriteQueueCapacity(capacity int) {
	globalManager.writeQueueCapacity.Set(float64(capacity))
}

// RecordWriteQueueRejected counts an enqueue refused by the write queue.
func RecordWriteQueueRejected() {
	globalManager.writeQueueRejected.Inc()
}

// RecordInlineWrite counts a write that bypassed the queue.
func RecordInlineWrite() {
	globalManager.writesInline.Inc()
}

// ConnectionOpened tracks a new click ingress connection.
func ConnectionOpened() {
	globalManager.tcpConnections.Inc()
	globalManager.tcpConnectionsTotal.Inc()
}

// ConnectionClosed tracks a closed click ingress connection.
func ConnectionClosed() {
	globalManager.tcpConnections.Dec()
}

// RecordIngressError counts a malformed ingress payload.
func RecordIngressError(code string) {
	globalManager.ingressErrors.WithLabelValues(code).Inc()
}

// RecordHeartbeat counts a heartbeat from a worker.
func RecordHeartbeat(workerID int) {
	globalManager.heartbeatsTotal.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

// RecordWorkerRestart counts a respawn of a worker slot.
func RecordWorkerRestart(workerID int) {
	globalManager.workerRestarts.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

// UpdateWorkersLive sets the number of running worker processes.
func UpdateWorkersLive(count int) {
	globalManager.workersLive.Set(float64(count))
}

// UpdateWorkerStats mirrors the counters a worker reported in its heartbeat.
func UpdateWorkerStats(workerID int, accepted, rejected int64, connections int) {
	id := strconv.Itoa(workerID)
	globalManager.workerClicks.WithLabelValues(id, "accepted").Set(float64(accepted))
	globalManager.workerClicks.WithLabelValues(id, "rejected").Set(float64(rejected))
	globalManager.workerConnections.WithLabelValues(id).Set(float64(connections))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the exposition of the custom registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
