package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics provides Prometheus-compatible metrics for the URL
// classification pipeline. It implements the observer interfaces of the
// sources, session, and graph packages so those stay free of a prometheus
// dependency.
type PrometheusMetrics struct {
	// Parse outcome metrics
	parseTotal *prometheus.CounterVec

	// Fetch metrics
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Graph walk metrics
	walkTotal    prometheus.Counter
	walkNodes    prometheus.Histogram
	walkDuration prometheus.Histogram

	// Circuit breaker metrics
	circuitBreakerState *prometheus.GaugeVec

	// HTTP API metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Registry for all metrics
	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	metrics := &PrometheusMetrics{
		registry: registry,

		parseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musubi_parse_total",
				Help: "Total parse calls by site and outcome",
			},
			[]string{"site", "outcome"},
		),

		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musubi_fetch_total",
				Help: "Total upstream fetches by domain, status code, and cache hit",
			},
			[]string{"domain", "status_code", "cache"},
		),

		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "musubi_fetch_duration_seconds",
				Help:    "Duration of upstream fetches in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"domain"},
		),

		walkTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "musubi_graph_walks_total",
				Help: "Total related-graph walks completed",
			},
		),

		walkNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "musubi_graph_walk_nodes",
				Help:    "Settled node count per related-graph walk",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),

		walkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "musubi_graph_walk_duration_seconds",
				Help:    "Duration of related-graph walks in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),

		circuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "musubi_circuit_breaker_state",
				Help: "Current state of circuit breaker (0=closed, 1=open, 2=half_open)",
			},
			[]string{"domain"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "musubi_http_requests_total",
				Help: "Total number of HTTP API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "musubi_http_request_duration_seconds",
				Help:    "Duration of HTTP API requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}

	registry.MustRegister(
		metrics.parseTotal,
		metrics.fetchTotal,
		metrics.fetchDuration,
		metrics.walkTotal,
		metrics.walkNodes,
		metrics.walkDuration,
		metrics.circuitBreakerState,
		metrics.httpRequestsTotal,
		metrics.httpRequestDuration,
	)

	return metrics
}

// ObserveParse records one parse call. Outcomes mirror the resolver's
// classification: ok, unknown_domain, unsupported_shape, unhandled_shape,
// malformed, parser_error.
func (pm *PrometheusMetrics) ObserveParse(site, outcome string) {
	pm.parseTotal.WithLabelValues(site, outcome).Inc()
}

// ObserveFetch records one upstream fetch.
func (pm *PrometheusMetrics) ObserveFetch(domain string, status int, fromCache bool) {
	cache := "miss"
	if fromCache {
		cache = "hit"
	}
	pm.fetchTotal.WithLabelValues(domain, strconv.Itoa(status), cache).Inc()
}

// ObserveFetchDuration records the wall time of one upstream fetch.
func (pm *PrometheusMetrics) ObserveFetchDuration(domain string, d time.Duration) {
	pm.fetchDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// ObserveWalk records one completed related-graph walk.
func (pm *PrometheusMetrics) ObserveWalk(nodes int, d time.Duration) {
	pm.walkTotal.Inc()
	pm.walkNodes.Observe(float64(nodes))
	pm.walkDuration.Observe(d.Seconds())
}

// UpdateCircuitBreakerState updates the circuit breaker state gauge
func (pm *PrometheusMetrics) UpdateCircuitBreakerState(domain string, state int) {
	pm.circuitBreakerState.WithLabelValues(domain).Set(float64(state))
}

// RecordHTTPRequest records an API request
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	pm.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	pm.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// GetRegistry returns the Prometheus registry
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}
