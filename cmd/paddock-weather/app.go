package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kjstillabower/paddock-weather/internal/cache"
	"github.com/kjstillabower/paddock-weather/internal/circuitbreaker"
	"github.com/kjstillabower/paddock-weather/internal/client"
	"github.com/kjstillabower/paddock-weather/internal/config"
	"github.com/kjstillabower/paddock-weather/internal/observability"
	"github.com/kjstillabower/paddock-weather/internal/render"
	"github.com/kjstillabower/paddock-weather/internal/service"
)

// app holds the components shared by every command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	weather   *client.OpenWeatherClient
	feed      *client.FeedClient
	memcached *cache.MemcachedCache
	session   *render.Session
	dashboard *service.Dashboard
}

// loadApp reads config from the working directory and builds the app.
func loadApp(transport http.RoundTripper) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return newApp(cfg, logger, transport)
}

// newApp wires clients, the snapshot cache, the session and the dashboard.
// transport, when set, carries every outbound call.
func newApp(cfg *config.Config, logger *zap.Logger, transport http.RoundTripper) (*app, error) {
	loc := client.Location{Lat: cfg.Lat, Lon: cfg.Lon}
	weather, err := client.NewOpenWeatherClientWithRetry(
		cfg.WeatherAPIKey,
		client.Endpoints{CurrentURL: cfg.CurrentURL, ForecastURL: cfg.ForecastURL},
		loc,
		cfg.WeatherAPITimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	feed := client.NewFeedClient(cfg.AlertsFeedURL, cfg.AlertsTimeout)
	if transport != nil {
		weather.SetTransport(transport)
		feed.SetTransport(transport)
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerFailureThreshold,
			SuccessThreshold: cfg.CircuitBreakerSuccessThreshold,
			Timeout:          cfg.CircuitBreakerTimeout,
			Component:        "weather_api",
			OnStateChange: func(from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition("weather_api", from.String(), to.String())
				observability.SetCircuitBreakerStateGauge("weather_api", int(to))
				logger.Warn("circuit breaker state change",
					zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
		weather.SetCircuitBreaker(cb)
		observability.SetCircuitBreakerStateGauge("weather_api", 0)
	}

	a := &app{cfg: cfg, logger: logger, weather: weather, feed: feed}

	var snapshots cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("memcached cache: %w", err)
		}
		a.memcached = mc
		snapshots = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		snapshots = cache.NewInMemoryCache()
		logger.Info("cache backend: in_memory")
	}

	a.session = render.NewSession(cfg.Lat, cfg.Lon, cfg.Location)
	a.session.SetLocationName(cfg.FieldName)
	a.dashboard = service.NewDashboard(weather, feed, snapshots, a.session, a.session, service.Config{
		Lat:          cfg.Lat,
		Lon:          cfg.Lon,
		Thresholds:   cfg.Thresholds,
		SnapshotTTL:  cfg.SnapshotTTL,
		CycleTimeout: cfg.CycleTimeout,
	}, logger)
	return a, nil
}

// renderOnce runs a single cycle and writes the page to path. A failed cycle
// still writes the page, showing the failure notice and any restored snapshot.
func (a *app) renderOnce(ctx context.Context, path string) error {
	a.dashboard.Restore(ctx)
	_, refreshErr := a.dashboard.Refresh(ctx)
	a.dashboard.Wait()
	if err := render.WriteFile(path, a.session.Capture(true)); err != nil {
		return err
	}
	if refreshErr != nil {
		return fmt.Errorf("refresh: %w", refreshErr)
	}
	return nil
}

func (a *app) printAlerts(ctx context.Context, w io.Writer) error {
	items, err := a.feed.Alerts(ctx)
	if err != nil {
		return fmt.Errorf("alerts: %w", err)
	}
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, render.NoAlertsPlaceholder)
		return err
	}
	for _, it := range items {
		if _, err := fmt.Fprintf(w, "%s\n  %s\n", it.Title, it.Description); err != nil {
			return err
		}
		if it.Link != "" {
			if _, err := fmt.Fprintf(w, "  %s\n", it.Link); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *app) close() {
	a.dashboard.Wait()
	if a.memcached != nil {
		if err := a.memcached.Close(); err != nil {
			a.logger.Error("memcached close", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
