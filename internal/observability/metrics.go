package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets     = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	upstreamDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
)

// Metrics holds all Prometheus metric instruments for the gateway.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream inventory metrics
	UpstreamRequestsTotal     *prometheus.CounterVec
	UpstreamRequestDuration   *prometheus.HistogramVec
	UpstreamRetriesTotal      prometheus.Counter
	UpstreamRejectionsTotal   prometheus.Counter
	UpstreamDegradedServes    prometheus.Counter
	CircuitBreakerState       prometheus.Gauge
	CircuitBreakerTransitions *prometheus.CounterVec

	// Fresh cache metrics
	CacheHitsTotal          prometheus.Counter
	CacheMissesTotal        prometheus.Counter
	CacheEvictionsTotal     prometheus.Counter
	CacheInvalidationsTotal prometheus.Counter

	// Order pipeline metrics
	OrdersTotal           *prometheus.CounterVec
	OrderTransitionsTotal *prometheus.CounterVec
	OrderPipelineDuration *prometheus.HistogramVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netgate_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netgate_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),

		// Upstream
		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netgate_upstream_requests_total",
			Help: "Total number of inventory service requests.",
		}, []string{"resource", "operation", "outcome"}),
		UpstreamRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netgate_upstream_request_duration_seconds",
			Help:    "Inventory service request duration in seconds.",
			Buckets: upstreamDurationBuckets,
		}, []string{"resource"}),
		UpstreamRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_upstream_retries_total",
			Help: "Total number of inventory request retries.",
		}),
		UpstreamRejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_upstream_rejections_total",
			Help: "Total number of requests rejected by the open circuit breaker.",
		}),
		UpstreamDegradedServes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_upstream_degraded_serves_total",
			Help: "Total number of reads served stale from the degradation cache.",
		}),
		CircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netgate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		CircuitBreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netgate_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions.",
		}, []string{"to"}),

		// Fresh cache
		CacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_cache_hits_total",
			Help: "Total fresh cache hits.",
		}),
		CacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_cache_misses_total",
			Help: "Total fresh cache misses.",
		}),
		CacheEvictionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_cache_evictions_total",
			Help: "Total fresh cache size evictions.",
		}),
		CacheInvalidationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netgate_cache_invalidations_total",
			Help: "Total fresh cache invalidations after writes.",
		}),

		// Orders
		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netgate_orders_total",
			Help: "Total number of processed orders by final state.",
		}, []string{"order_type", "state"}),
		OrderTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netgate_order_transitions_total",
			Help: "Total number of order workflow transitions.",
		}, []string{"from", "to"}),
		OrderPipelineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "netgate_order_pipeline_duration_seconds",
			Help:    "End-to-end order pipeline duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"order_type"}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		// Upstream
		m.UpstreamRequestsTotal,
		m.UpstreamRequestDuration,
		m.UpstreamRetriesTotal,
		m.UpstreamRejectionsTotal,
		m.UpstreamDegradedServes,
		m.CircuitBreakerState,
		m.CircuitBreakerTransitions,
		// Fresh cache
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEvictionsTotal,
		m.CacheInvalidationsTotal,
		// Orders
		m.OrdersTotal,
		m.OrderTransitionsTotal,
		m.OrderPipelineDuration,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
}

// RecordUpstreamRequest records an inventory request outcome.
func (m *Metrics) RecordUpstreamRequest(resource, operation string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	m.UpstreamRequestsTotal.WithLabelValues(resource, operation, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(resource).Observe(duration.Seconds())
}

// RecordUpstreamRetry records a retried inventory request attempt.
func (m *Metrics) RecordUpstreamRetry() {
	m.UpstreamRetriesTotal.Inc()
}

// RecordUpstreamRejection records a request rejected by the open breaker.
func (m *Metrics) RecordUpstreamRejection() {
	m.UpstreamRejectionsTotal.Inc()
}

// RecordDegradedServe records a read served from the degradation cache.
func (m *Metrics) RecordDegradedServe() {
	m.UpstreamDegradedServes.Inc()
}

// SetCircuitBreakerState sets the breaker state gauge.
// 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	m.CircuitBreakerState.Set(state)
}

// RecordBreakerTransition records a breaker state change.
func (m *Metrics) RecordBreakerTransition(to string) {
	m.CircuitBreakerTransitions.WithLabelValues(to).Inc()
}

// RecordCacheHit records a fresh cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a fresh cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction records a fresh cache size eviction.
func (m *Metrics) RecordCacheEvictions(n int) {
	if n > 0 {
		m.CacheEvictionsTotal.Add(float64(n))
	}
}

// RecordCacheInvalidation records a fresh cache invalidation.
func (m *Metrics) RecordCacheInvalidations(n int) {
	if n > 0 {
		m.CacheInvalidationsTotal.Add(float64(n))
	}
}

// RecordOrder records a processed order and its final state.
func (m *Metrics) RecordOrder(orderType, state string, duration time.Duration) {
	m.OrdersTotal.WithLabelValues(orderType, state).Inc()
	m.OrderPipelineDuration.WithLabelValues(orderType).Observe(duration.Seconds())
}

// RecordOrderTransition records an order workflow transition.
func (m *Metrics) RecordOrderTransition(from, to string) {
	m.OrderTransitionsTotal.WithLabelValues(from, to).Inc()
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the raw URL path) to keep label cardinality bounded.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start))
	})
}

// Handler returns the Prometheus HTTP handler for the exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is available.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns carry a trailing /*, strip it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}
