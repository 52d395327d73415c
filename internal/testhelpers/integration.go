//go:build integration
// +build integration

// Package testhelpers builds a live dashboard stack for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/paddock-weather/internal/cache"
	"github.com/kjstillabower/paddock-weather/internal/client"
	"github.com/kjstillabower/paddock-weather/internal/render"
	"github.com/kjstillabower/paddock-weather/internal/service"
)

const (
	defaultCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	defaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	defaultFeedURL     = "https://www.metoffice.gov.uk/public/data/PWSCache/WarningsRSS/Region/UK"
)

// LiveConfig holds live endpoints and backends for integration tests.
type LiveConfig struct {
	APIKey        string
	CurrentURL    string
	ForecastURL   string
	FeedURL       string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetLiveConfig loads integration settings from the environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetLiveConfig(t *testing.T) LiveConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return LiveConfig{
		APIKey:        apiKey,
		CurrentURL:    envOr("WEATHER_CURRENT_URL", defaultCurrentURL),
		ForecastURL:   envOr("WEATHER_FORECAST_URL", defaultForecastURL),
		FeedURL:       envOr("ALERTS_FEED_URL", defaultFeedURL),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: envOr("MEMCACHED_ADDRS", "localhost:11211"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// SetupLiveDashboard wires a Dashboard against the live APIs, painting into a
// fresh Session. Cleanup is registered on t.
func SetupLiveDashboard(t *testing.T, cfg LiveConfig, logger *zap.Logger) (*service.Dashboard, *render.Session) {
	t.Helper()
	loc := client.Location{Lat: 52.24, Lon: -2.18}
	weather, err := client.NewOpenWeatherClient(cfg.APIKey, client.Endpoints{
		CurrentURL:  cfg.CurrentURL,
		ForecastURL: cfg.ForecastURL,
	}, loc, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	alerts := client.NewFeedClient(cfg.FeedURL, 10*time.Second)

	var snapshots cache.Cache = cache.NewInMemoryCache()
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err != nil {
			t.Fatalf("NewMemcachedCache() error = %v", err)
		}
		t.Cleanup(func() { _ = mc.Close() })
		snapshots = mc
		t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
	}

	session := render.NewSession(loc.Lat, loc.Lon, time.UTC)
	dash := service.NewDashboard(weather, alerts, snapshots, session, session, service.Config{
		Lat:          loc.Lat,
		Lon:          loc.Lon,
		CycleTimeout: 30 * time.Second,
	}, logger)
	t.Cleanup(dash.Wait)
	return dash, session
}
