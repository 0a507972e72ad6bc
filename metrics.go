package sessgate

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the call lifecycle:
// round trips, token coordination, and session refreshes. It is safe for
// concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	tokenFetchesTotal       prometheus.Counter
	tokenSharesTotal        prometheus.Counter
	tokenFetchFailuresTotal prometheus.Counter

	refreshesTotal *prometheus.CounterVec
	replaysTotal   *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessgate_requests_total",
				Help: "Total number of HTTP round trips made",
			},
			[]string{"method", "status_code", "path"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sessgate_request_duration_seconds",
				Help:    "Duration of HTTP round trips in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "path"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sessgate_requests_in_flight",
				Help: "Number of HTTP round trips currently in flight",
			},
			[]string{"method", "path"},
		),
		tokenFetchesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sessgate_token_fetches_total",
				Help: "Total number of anti-forgery token fetches dispatched",
			},
		),
		tokenSharesTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sessgate_token_shares_total",
				Help: "Calls served from a cached or in-flight token fetch",
			},
		),
		tokenFetchFailuresTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sessgate_token_fetch_failures_total",
				Help: "Mutating calls dispatched without a token after a failed fetch",
			},
		),
		refreshesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessgate_refreshes_total",
				Help: "Total number of session refresh attempts",
			},
			[]string{"outcome"},
		),
		replaysTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessgate_replays_total",
				Help: "Calls replayed after a successful session refresh",
			},
			[]string{"method", "path"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessgate_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type", "method", "path"},
		),
	}
}

// RecordRequest records a completed round trip.
func (mc *MetricsCollector) RecordRequest(method, path string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, code, path).Inc()
	mc.requestDuration.WithLabelValues(method, code, path).Observe(duration.Seconds())
}

// RecordRequestStart marks a round trip as in flight.
func (mc *MetricsCollector) RecordRequestStart(method, path string) {
	mc.requestsInFlight.WithLabelValues(method, path).Inc()
}

// RecordRequestEnd marks a round trip as finished.
func (mc *MetricsCollector) RecordRequestEnd(method, path string) {
	mc.requestsInFlight.WithLabelValues(method, path).Dec()
}

// RecordTokenFetch counts a token fetch hitting the network.
func (mc *MetricsCollector) RecordTokenFetch() {
	mc.tokenFetchesTotal.Inc()
}

// RecordTokenShared counts a caller served without a fetch of its own.
func (mc *MetricsCollector) RecordTokenShared() {
	mc.tokenSharesTotal.Inc()
}

// RecordTokenFetchFailure counts a mutating call that proceeded bare.
func (mc *MetricsCollector) RecordTokenFetchFailure() {
	mc.tokenFetchFailuresTotal.Inc()
}

// RecordRefresh counts a refresh attempt by outcome ("success"/"failure").
func (mc *MetricsCollector) RecordRefresh(outcome string) {
	mc.refreshesTotal.WithLabelValues(outcome).Inc()
}

// RecordReplay counts a replay of the original call.
func (mc *MetricsCollector) RecordReplay(method, path string) {
	mc.replaysTotal.WithLabelValues(method, path).Inc()
}

// RecordError counts an error by type.
func (mc *MetricsCollector) RecordError(errorType, method, path string) {
	mc.errorsTotal.WithLabelValues(errorType, method, path).Inc()
}
