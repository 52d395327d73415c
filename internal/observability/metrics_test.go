package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestMetrics_Usable verifies that all Prometheus metrics can be used without
// panic, ensuring label dimensions match usage across client, http, service and offline packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/api/dashboard", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/api/dashboard").Observe(0.01)
	UpstreamCallsTotal.WithLabelValues("current", "success").Inc()
	UpstreamCallsTotal.WithLabelValues("alerts", "error").Inc()
	UpstreamDuration.WithLabelValues("forecast", "success").Observe(0.1)
	UpstreamRetriesTotal.WithLabelValues("current").Inc()
	SnapshotCacheErrorsTotal.WithLabelValues("set").Inc()
	OfflineResponsesTotal.WithLabelValues("cache_first", "hit").Inc()
	OfflineRevalidationsTotal.WithLabelValues("success").Inc()
	SeverityScore.Set(1.5)
	RecordCircuitBreakerTransition("weather_api", "closed", "open")
	SetCircuitBreakerStateGauge("weather_api", 1)
	RecordRefresh("success", 800*time.Millisecond)
	RecordRefresh("timeout", 15*time.Second)
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format with correct HTTP status and metric output.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()
	RecordRefresh("success", time.Second)

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"httpRequestsTotal", "refreshCyclesTotal", "lastRefreshSuccessTimestampSeconds"} {
		if !strings.Contains(body, name) {
			t.Errorf("MetricsHandler response missing %s", name)
		}
	}
}
