package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/paddock-weather/internal/observability"
)

// RouterConfig collects what NewRouter needs beyond the handler.
type RouterConfig struct {
	// Shell serves the installable page and its assets.
	Shell http.Handler
	// ShellMiddleware wraps Shell; the offline worker's cache-first policy in production.
	ShellMiddleware func(http.Handler) http.Handler
	// Limiter guards POST /api/refresh; nil disables rate limiting.
	Limiter *rate.Limiter
	// RefreshTimeout bounds a manual refresh request.
	RefreshTimeout time.Duration
}

// NewRouter builds the page host: app shell, rendered dashboard, JSON API,
// health and metrics.
func NewRouter(h *Handler, cfg RouterConfig, logger *zap.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	router.HandleFunc("/dashboard", h.GetDashboardPage).Methods(http.MethodGet)
	router.HandleFunc("/api/dashboard", h.GetDashboard).Methods(http.MethodGet)

	var refresh http.Handler = http.HandlerFunc(h.PostRefresh)
	if cfg.RefreshTimeout > 0 {
		refresh = TimeoutMiddleware(cfg.RefreshTimeout)(refresh)
	}
	refresh = RateLimitMiddleware(cfg.Limiter)(refresh)
	router.Handle("/api/refresh", refresh).Methods(http.MethodPost)

	if cfg.Shell != nil {
		shell := cfg.Shell
		if cfg.ShellMiddleware != nil {
			shell = cfg.ShellMiddleware(shell)
		}
		router.PathPrefix("/").Handler(shell)
	}
	return router
}
