package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjstillabower/paddock-weather/internal/interpret"
)

const minimalEnvYAML = `
server:
  port: "9090"
weather_api:
  timeout: "5s"
`

// clearEnv unsets every override Load reads so the host environment cannot
// leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ENV_NAME", "WEATHER_API_KEY", "ALERTS_FEED_URL", "CACHE_BACKEND", "MEMCACHED_ADDRS",
		"OFFLINE_BACKEND", "REDIS_ADDR", "REDIS_DB", "LOG_FILE",
	} {
		t.Setenv(k, "")
	}
}

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644))
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "secrets.yaml"), []byte(content), 0644))
}

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	dir := t.TempDir()
	writeEnvFile(t, dir, content)
	return LoadDir(dir)
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	clearEnv(t)
	cfg, err := loadYAML(t, minimalEnvYAML)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "WEATHER_API_KEY")
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "key-from-secrets-file", cfg.WeatherAPIKey)
}

func TestLoad_EnvKeyOverridesSecretsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "key-from-env")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")

	cfg, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.WeatherAPIKey)
}

// TestLoad_Defaults verifies a near-empty file yields the foal field and the
// public OpenWeather and Met Office endpoints.
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "k")
	cfg, err := loadYAML(t, minimalEnvYAML)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, DefaultLat, cfg.Lat)
	assert.Equal(t, DefaultLon, cfg.Lon)
	assert.Equal(t, DefaultFieldName, cfg.FieldName)
	assert.Equal(t, DefaultTimezone, cfg.Location.String())
	assert.Equal(t, DefaultCurrentURL, cfg.CurrentURL)
	assert.Equal(t, DefaultForecastURL, cfg.ForecastURL)
	assert.Equal(t, DefaultAPIOrigin, cfg.APIOrigin)
	assert.Equal(t, DefaultFeedURL, cfg.AlertsFeedURL)
	assert.Equal(t, DefaultCacheTag, cfg.OfflineVersion)
	assert.Equal(t, "in_memory", cfg.CacheBackend)
	assert.Equal(t, "memory", cfg.OfflineBackend)
	assert.Equal(t, time.Duration(0), cfg.OfflineMaxAge)
	assert.Equal(t, 1, cfg.RetryAttempts)
	assert.True(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, interpret.DefaultThresholds, cfg.Thresholds)
	assert.Equal(t, 5*time.Second, cfg.WeatherAPITimeout)
	assert.Greater(t, cfg.CycleTimeout, cfg.WeatherAPITimeout)
	assert.Greater(t, cfg.RefreshTimeout, cfg.CycleTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "k")
	t.Setenv("CACHE_BACKEND", "MEMCACHED")
	t.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	t.Setenv("OFFLINE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_FILE", "/var/log/paddock.log")
	t.Setenv("ALERTS_FEED_URL", "https://feeds.example.test/warnings")

	cfg, err := loadYAML(t, minimalEnvYAML)
	require.NoError(t, err)
	assert.Equal(t, "memcached", cfg.CacheBackend)
	assert.Equal(t, "mc1:11211,mc2:11211", cfg.MemcachedAddrs)
	assert.Equal(t, "redis", cfg.OfflineBackend)
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "/var/log/paddock.log", cfg.LogFile)
	assert.Equal(t, "https://feeds.example.test/warnings", cfg.AlertsFeedURL)
}

func TestLoad_FileValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "k")
	cfg, err := loadYAML(t, `
field:
  name: "Top paddock"
  lat: 51.5
  lon: 0
  timezone: "UTC"
weather_api:
  timeout: "4s"
refresh:
  cycle_timeout: "20s"
  request_timeout: "25s"
offline:
  version: "v3"
  max_age: "168h"
  revalidate_timeout: "8s"
reliability:
  retry_max_attempts: 3
  rate_limit_rps: 2
  rate_limit_burst: 4
  circuit_breaker:
    enabled: false
advisory:
  thresholds:
    mild: 10
    cool: 5
    cold: 0
lifecycle:
  degraded_window: "1h"
  degraded_error_pct: 75
  stale_after: "40m"
`)
	require.NoError(t, err)
	assert.Equal(t, "Top paddock", cfg.FieldName)
	assert.Equal(t, 51.5, cfg.Lat)
	assert.Equal(t, 0.0, cfg.Lon, "explicit zero longitude is kept")
	assert.Equal(t, "UTC", cfg.Location.String())
	assert.Equal(t, 20*time.Second, cfg.CycleTimeout)
	assert.Equal(t, 25*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, "v3", cfg.OfflineVersion)
	assert.Equal(t, 168*time.Hour, cfg.OfflineMaxAge)
	assert.Equal(t, 8*time.Second, cfg.RevalidateTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, 2, cfg.RateLimitRPS)
	assert.Equal(t, 4, cfg.RateLimitBurst)
	assert.False(t, cfg.CircuitBreakerEnabled)
	assert.Equal(t, interpret.Thresholds{Mild: 10, Cool: 5, Cold: 0}, cfg.Thresholds)
	assert.Equal(t, time.Hour, cfg.DegradedWindow)
	assert.Equal(t, 75, cfg.DegradedErrorPct)
	assert.Equal(t, 40*time.Minute, cfg.StaleAfter)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "k")
	cfg, err := loadYAML(t, minimalEnvYAML+`
cache:
  snapshot_ttl: "invalid"
`)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.SnapshotTTL)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero api timeout", "weather_api:\n  timeout: \"0s\"\n", "WEATHER_API_TIMEOUT"},
		{"latitude", "field:\n  lat: 95\n", "latitude"},
		{"field name", "field:\n  name: \"<script>\"\n", "field.name"},
		{"thresholds order", "advisory:\n  thresholds:\n    mild: 4\n    cool: 8\n    cold: -2\n", "mild > cool > cold"},
		{"cache backend", "cache:\n  backend: redis\n", "cache.backend"},
		{"offline backend", "offline:\n  backend: memcached\n", "offline.backend"},
		{"timezone", "field:\n  timezone: Mars/Olympus\n", "field.timezone"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WEATHER_API_KEY", "k")
			cfg, err := loadYAML(t, tc.yaml)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV_NAME", "nonexistent")
	cfg, err := LoadDir(t.TempDir())
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "k")
	_, err := loadYAML(t, "not: valid: yaml: [[[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")

	t.Setenv("WEATHER_API_KEY", "")
	dir := t.TempDir()
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "not valid: yaml: [[[")
	_, err = LoadDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse secrets file")
}

// TestLoad_RepoDevConfig loads the checked-in config/dev.yaml.
func TestLoad_RepoDevConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("WEATHER_API_KEY", "test-key-1234567890")
	cfg, err := LoadDir(findProjectRoot(t))
	require.NoError(t, err)
	assert.Equal(t, "test-key-1234567890", cfg.WeatherAPIKey)
	assert.NotEmpty(t, cfg.ServerPort)
	assert.NotEmpty(t, cfg.CurrentURL)
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
