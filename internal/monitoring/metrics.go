package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics registers every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec
	errorCount      *prometheus.CounterVec

	// Domain metrics
	accessDecisions *prometheus.CounterVec
	accessRequests  *prometheus.CounterVec
	acknowledgments prometheus.Counter
	storageDuration *prometheus.HistogramVec
	storageErrors   *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	wsClients       prometheus.Gauge
	wsDropped       prometheus.Gauge

	// System metrics
	memoryUsage    *prometheus.GaugeVec
	goroutineCount prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"handler", "method", "status"},
		),
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		errorCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "error_count_total",
				Help:      "Total number of errors returned to callers",
			},
			[]string{"type", "code"},
		),

		accessDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_decisions_total",
				Help:      "Client access checks by deciding rule",
			},
			[]string{"rule", "allowed"},
		),
		accessRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_requests_total",
				Help:      "Access request transitions by resulting status",
			},
			[]string{"status"},
		),
		acknowledgments: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendation_acknowledgments_total",
				Help:      "First-time client acknowledgments of recommendations",
			},
		),
		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_operation_duration_seconds",
				Help:      "Duration of storage backend calls",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"collection", "operation"},
		),
		storageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Failed storage backend calls",
			},
			[]string{"collection", "operation"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Sessions currently logged in",
			},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected notification websocket clients",
			},
		),
		wsDropped: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "notifications_dropped",
				Help:      "Notifications dropped because a queue was full",
			},
		),

		memoryUsage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),
		goroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutine_count",
				Help:      "Number of goroutines",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records HTTP request metrics
func (m *Metrics) ObserveRequest(handler, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(handler, method, code).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(handler, method, code).Inc()
}

// ObserveError records error metrics
func (m *Metrics) ObserveError(errorType, errorCode string) {
	m.errorCount.WithLabelValues(errorType, errorCode).Inc()
}

func (m *Metrics) ObserveAccessDecision(rule string, allowed bool) {
	m.accessDecisions.WithLabelValues(rule, strconv.FormatBool(allowed)).Inc()
}

func (m *Metrics) ObserveAccessRequest(status string) {
	m.accessRequests.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveAcknowledgment() {
	m.acknowledgments.Inc()
}

func (m *Metrics) ObserveStorage(collection, operation string, duration time.Duration, err error) {
	m.storageDuration.WithLabelValues(collection, operation).Observe(duration.Seconds())
	if err != nil {
		m.storageErrors.WithLabelValues(collection, operation).Inc()
	}
}

// Gauges are sampled by StartMetricsCollection.
type Gauges struct {
	Sessions  func() int
	WSClients func() int
	Dropped   func() int64
}

// UpdateSystemMetrics updates system-level metrics
func (m *Metrics) UpdateSystemMetrics(g Gauges) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	m.memoryUsage.WithLabelValues("heap_alloc").Set(float64(mem.HeapAlloc))
	m.memoryUsage.WithLabelValues("heap_inuse").Set(float64(mem.HeapInuse))
	m.memoryUsage.WithLabelValues("heap_idle").Set(float64(mem.HeapIdle))
	m.memoryUsage.WithLabelValues("heap_released").Set(float64(mem.HeapReleased))
	m.goroutineCount.Set(float64(runtime.NumGoroutine()))

	if g.Sessions != nil {
		m.sessionsActive.Set(float64(g.Sessions()))
	}
	if g.WSClients != nil {
		m.wsClients.Set(float64(g.WSClients()))
	}
	if g.Dropped != nil {
		m.wsDropped.Set(float64(g.Dropped()))
	}
}

// StartMetricsCollection samples gauges every interval until ctx is done.
func (m *Metrics) StartMetricsCollection(ctx context.Context, interval time.Duration, g Gauges) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		m.UpdateSystemMetrics(g)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.UpdateSystemMetrics(g)
			}
		}
	}()
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
