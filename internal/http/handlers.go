package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/paddock-weather/internal/client"
	"github.com/kjstillabower/paddock-weather/internal/degraded"
	"github.com/kjstillabower/paddock-weather/internal/lifecycle"
	"github.com/kjstillabower/paddock-weather/internal/models"
	"github.com/kjstillabower/paddock-weather/internal/observability"
	"github.com/kjstillabower/paddock-weather/internal/overload"
	"github.com/kjstillabower/paddock-weather/internal/render"
)

// Dashboard is the refresh surface the handlers drive.
type Dashboard interface {
	Refresh(ctx context.Context) (models.Snapshot, error)
	Status() (lastSuccess time.Time, lastErr error)
	Refreshing() bool
}

// HealthConfig holds lifecycle thresholds for the health handler.
type HealthConfig struct {
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	RateLimitRPS         int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	// StaleAfter marks the dashboard degraded when the last good refresh is older.
	StaleAfter time.Duration
	StartTime  time.Time
	// CachePing, when set, checks snapshot cache reachability (memcached backend).
	CachePing func() error
	// OfflinePing, when set, checks the offline store and the installed shell cache.
	OfflinePing func(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	dashboard        Dashboard
	session          *render.Session
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler.
func NewHandler(dashboard Dashboard, session *render.Session, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	return &Handler{
		dashboard:    dashboard,
		session:      session,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

// GetDashboardPage handles GET /dashboard with a server-rendered page.
func (h *Handler) GetDashboardPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.WriteHTML(w, h.session.Capture(true)); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Error("render page", zap.Error(err))
	}
}

// GetDashboard handles GET /api/dashboard. Pending failure notices are handed
// to the caller and cleared.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := render.WriteJSON(w, h.session.Capture(true)); err != nil {
		observability.LoggerFromContext(r.Context(), h.logger).Warn("dashboard json write failed", zap.Error(err))
	}
}

// PostRefresh handles POST /api/refresh. Overlapping requests join the cycle
// already running.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.dashboard.Refresh(r.Context())
	if err != nil {
		writeServiceError(w, r, err, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refreshed": true,
		"fetchedAt": snap.FetchedAt.UTC().Format(time.RFC3339),
		"severity":  snap.Severity.Band,
		"rug":       snap.Rug.Advice,
	})
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	lastSuccess, lastErr := h.dashboard.Status()
	checks := make(map[string]string)
	if lastErr != nil {
		checks["weatherApi"] = "unhealthy"
	} else {
		checks["weatherApi"] = "healthy"
	}
	if h.healthConfig != nil && h.healthConfig.CachePing != nil {
		checks["cache"] = pingStatus(h.healthConfig.CachePing())
	}
	if h.healthConfig != nil && h.healthConfig.OfflinePing != nil {
		checks["offlineStore"] = pingStatus(h.healthConfig.OfflinePing(r.Context()))
	}

	resp := map[string]interface{}{
		"status":     result.status,
		"service":    "paddock-weather",
		"version":    "dev",
		"checks":     checks,
		"refreshing": h.dashboard.Refreshing(),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if since := lifecycle.ShuttingDownSince(); !since.IsZero() {
		resp["drainingSince"] = since.UTC().Format(time.RFC3339)
	}
	if !lastSuccess.IsZero() {
		resp["lastRefresh"] = lastSuccess.UTC().Format(time.RFC3339)
	}
	writeJSON(w, result.statusCode, resp)
}

func pingStatus(err error) string {
	if err != nil {
		return "unhealthy"
	}
	return "healthy"
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > overloaded > degraded (error rate) > degraded (stale) > healthy.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	cfg := h.healthConfig
	if overload.Exceeded(cfg.OverloadWindow, cfg.RateLimitRPS, cfg.OverloadThresholdPct) {
		return healthResult{"overloaded", http.StatusServiceUnavailable, "overload_threshold"}
	}
	if degraded.Breached(cfg.DegradedWindow, cfg.DegradedErrorPct) {
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
	}
	if cfg.StaleAfter > 0 && time.Since(cfg.StartTime) >= cfg.StaleAfter {
		lastSuccess, _ := h.dashboard.Status()
		if lastSuccess.IsZero() || time.Since(lastSuccess) > cfg.StaleAfter {
			return healthResult{"degraded", http.StatusServiceUnavailable, "stale_data"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code, message,
// and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

// writeServiceError writes a 503 for a failed refresh cycle. The category is
// included so the page can tell a bad key from a network outage.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	category := client.CategorizeError(err)
	observability.LoggerFromContext(r.Context(), logger).Debug("refresh error",
		zap.String("error_category", string(category)), zap.Error(err))
	writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to refresh weather data ("+string(category)+")")
}
