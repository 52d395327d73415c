package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/paddock-weather/internal/overload"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (dashboard down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream calls by endpoint (current, forecast, alerts) and status. Watch for: error vs success ratio.
	UpstreamCallsTotal *prometheus.CounterVec

	// Upstream latency. Watch for: p95 approaching the per-call timeout.
	UpstreamDuration *prometheus.HistogramVec

	// Retry attempts per endpoint. Watch for: high retries = unstable upstream.
	UpstreamRetriesTotal *prometheus.CounterVec

	// Refresh cycles by outcome (success, or the error category that aborted the cycle).
	RefreshCyclesTotal *prometheus.CounterVec

	// Wall time of a full refresh cycle (all three retrievals).
	RefreshDuration prometheus.Histogram

	// Callers that joined a cycle already in flight instead of starting one.
	RefreshCoalescedTotal prometheus.Counter

	// Unix time of the last successful cycle. Watch for: staleness beyond two refresh periods.
	LastRefreshSuccess prometheus.Gauge

	// Latest severity score shown on the map.
	SeverityScore prometheus.Gauge

	// Snapshot cache failures by operation (get, set).
	SnapshotCacheErrorsTotal *prometheus.CounterVec

	// Offline worker responses by policy (cache_first, stale_while_revalidate) and result.
	OfflineResponsesTotal *prometheus.CounterVec

	// Background revalidations by result.
	OfflineRevalidationsTotal *prometheus.CounterVec

	// Rate limit denials on the manual refresh endpoint.
	RateLimitDeniedTotal prometheus.Counter

	// Circuit breaker state per component: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState *prometheus.GaugeVec

	// Circuit breaker transitions per component.
	CircuitBreakerTransitionsTotal *prometheus.CounterVec

	rateLimitGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	UpstreamCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamCallsTotal",
			Help: "Total number of calls to weather and alerts upstreams",
		},
		[]string{"endpoint", "status"},
	)
	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstreamDurationSeconds",
			Help:    "Upstream latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"endpoint", "status"},
	)
	UpstreamRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstreamRetriesTotal",
			Help: "Total number of retry attempts for upstream calls",
		},
		[]string{"endpoint"},
	)
	RefreshCyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshCyclesTotal",
			Help: "Refresh cycles by outcome",
		},
		[]string{"outcome"},
	)
	RefreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "refreshDurationSeconds",
			Help:    "Refresh cycle duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30},
		},
	)
	RefreshCoalescedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refreshCoalescedTotal",
			Help: "Refresh requests that joined an in-flight cycle",
		},
	)
	LastRefreshSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "lastRefreshSuccessTimestampSeconds",
			Help: "Unix time of the last successful refresh cycle",
		},
	)
	SeverityScore = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "severityScore",
			Help: "Latest field severity score",
		},
	)
	SnapshotCacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotCacheErrorsTotal",
			Help: "Snapshot cache errors by operation",
		},
		[]string{"operation"},
	)
	OfflineResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlineResponsesTotal",
			Help: "Responses produced by the offline cache worker by policy and result",
		},
		[]string{"policy", "result"},
	)
	OfflineRevalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offlineRevalidationsTotal",
			Help: "Background stale-while-revalidate refreshes by result",
		},
		[]string{"result"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		UpstreamCallsTotal, UpstreamDuration, UpstreamRetriesTotal,
		RefreshCyclesTotal, RefreshDuration, RefreshCoalescedTotal, LastRefreshSuccess,
		SeverityScore, SnapshotCacheErrorsTotal,
		OfflineResponsesTotal, OfflineRevalidationsTotal,
		RateLimitDeniedTotal,
		CircuitBreakerState, CircuitBreakerTransitionsTotal,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window",
				},
				func() float64 { return float64(overload.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window",
				},
				func() float64 { return float64(overload.DenialCount(window)) },
			),
		)
	})
}

// RecordCircuitBreakerTransition counts a state change for component.
func RecordCircuitBreakerTransition(component, from, to string) {
	CircuitBreakerTransitionsTotal.WithLabelValues(component, from, to).Inc()
}

// SetCircuitBreakerStateGauge publishes the current state value for component.
func SetCircuitBreakerStateGauge(component string, state int) {
	CircuitBreakerState.WithLabelValues(component).Set(float64(state))
}

// RecordRefresh records the outcome of one refresh cycle. outcome is
// "success" or an error category.
func RecordRefresh(outcome string, duration time.Duration) {
	RefreshCyclesTotal.WithLabelValues(outcome).Inc()
	RefreshDuration.Observe(duration.Seconds())
	if outcome == "success" {
		LastRefreshSuccess.SetToCurrentTime()
	}
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
