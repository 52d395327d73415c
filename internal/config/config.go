package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/paddock-weather/internal/interpret"
	"github.com/kjstillabower/paddock-weather/internal/validation"
)

// Defaults for the foal field.
const (
	DefaultLat         = 52.24
	DefaultLon         = -2.18
	DefaultFieldName   = "Foal field (WR3–WR9 area)"
	DefaultTimezone    = "Europe/London"
	DefaultCurrentURL  = "https://api.openweathermap.org/data/2.5/weather"
	DefaultForecastURL = "https://api.openweathermap.org/data/2.5/forecast"
	DefaultAPIOrigin   = "https://api.openweathermap.org"
	DefaultFeedURL     = "https://www.metoffice.gov.uk/public/data/PWSCache/WarningsRSS/Region/UK"
	DefaultCacheTag    = "wr3-weather-flattened-v2-map-alerts"

	maxFieldNameLen = 80
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	FieldName string
	Lat       float64
	Lon       float64
	Location  *time.Location

	WeatherAPIKey     string
	CurrentURL        string
	ForecastURL       string
	APIOrigin         string
	WeatherAPITimeout time.Duration

	AlertsFeedURL string
	AlertsTimeout time.Duration

	CycleTimeout   time.Duration
	RefreshTimeout time.Duration

	CacheBackend          string // "in_memory" or "memcached"
	SnapshotTTL           time.Duration
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	OfflineVersion    string
	OfflineBackend    string // "memory" or "redis"
	OfflineMaxAge     time.Duration
	RevalidateTimeout time.Duration
	RedisAddr         string
	RedisDB           int
	RedisPrefix       string

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled          bool
	CircuitBreakerFailureThreshold int
	CircuitBreakerSuccessThreshold int
	CircuitBreakerTimeout          time.Duration

	Thresholds interpret.Thresholds

	LogFile         string
	ShutdownTimeout time.Duration

	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int
	StaleAfter           time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Field struct {
		Name     string   `yaml:"name"`
		Lat      *float64 `yaml:"lat"`
		Lon      *float64 `yaml:"lon"`
		Timezone string   `yaml:"timezone"`
	} `yaml:"field"`

	WeatherAPI struct {
		CurrentURL  string `yaml:"current_url"`
		ForecastURL string `yaml:"forecast_url"`
		Origin      string `yaml:"origin"`
		Timeout     string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Alerts struct {
		FeedURL string `yaml:"feed_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"alerts"`

	Refresh struct {
		CycleTimeout   string `yaml:"cycle_timeout"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"refresh"`

	Cache struct {
		Backend     string `yaml:"backend"`
		SnapshotTTL string `yaml:"snapshot_ttl"`
		Memcached   struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Offline struct {
		Version           string `yaml:"version"`
		Backend           string `yaml:"backend"`
		MaxAge            string `yaml:"max_age"`
		RevalidateTimeout string `yaml:"revalidate_timeout"`
		Redis             struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"offline"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			SuccessThreshold int    `yaml:"success_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Advisory struct {
		Thresholds *interpret.Thresholds `yaml:"thresholds"`
	} `yaml:"advisory"`

	Logging struct {
		File string `yaml:"file"`
	} `yaml:"logging"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Lifecycle struct {
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
		StaleAfter           string `yaml:"stale_after"`
	} `yaml:"lifecycle"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// under the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadDir(cwd)
}

// LoadDir is Load rooted at dir instead of the working directory.
// API key comes from WEATHER_API_KEY env or the secrets file.
func LoadDir(dir string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.FieldName = fc.Field.Name
	if strings.TrimSpace(cfg.FieldName) == "" {
		cfg.FieldName = DefaultFieldName
	}
	cfg.Lat, cfg.Lon = DefaultLat, DefaultLon
	if fc.Field.Lat != nil {
		cfg.Lat = *fc.Field.Lat
	}
	if fc.Field.Lon != nil {
		cfg.Lon = *fc.Field.Lon
	}
	tz := strings.TrimSpace(fc.Field.Timezone)
	if tz == "" {
		tz = DefaultTimezone
	}
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("field.timezone: %w", err)
	}

	cfg.WeatherAPIKey, err = loadAPIKey(dir)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.CurrentURL = firstNonEmpty(fc.WeatherAPI.CurrentURL, DefaultCurrentURL)
	cfg.ForecastURL = firstNonEmpty(fc.WeatherAPI.ForecastURL, DefaultForecastURL)
	cfg.APIOrigin = firstNonEmpty(fc.WeatherAPI.Origin, DefaultAPIOrigin)
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)

	cfg.AlertsFeedURL = firstNonEmpty(os.Getenv("ALERTS_FEED_URL"), fc.Alerts.FeedURL, DefaultFeedURL)
	cfg.AlertsTimeout = parseDuration(fc.Alerts.Timeout, 10*time.Second)

	cfg.CycleTimeout = parseDuration(fc.Refresh.CycleTimeout, 30*time.Second)
	cfg.RefreshTimeout = parseDuration(fc.Refresh.RequestTimeout, 35*time.Second)

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory")))
	cfg.SnapshotTTL = parseDuration(fc.Cache.SnapshotTTL, 24*time.Hour)
	cfg.MemcachedAddrs = strings.TrimSpace(firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211"))
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.OfflineVersion = firstNonEmpty(fc.Offline.Version, DefaultCacheTag)
	cfg.OfflineBackend = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("OFFLINE_BACKEND"), fc.Offline.Backend, "memory")))
	cfg.OfflineMaxAge = parseDurationOrZero(fc.Offline.MaxAge, 0)
	cfg.RevalidateTimeout = parseDuration(fc.Offline.RevalidateTimeout, 15*time.Second)
	cfg.RedisAddr = strings.TrimSpace(firstNonEmpty(os.Getenv("REDIS_ADDR"), fc.Offline.Redis.Addr, "localhost:6379"))
	cfg.RedisDB = fc.Offline.Redis.DB
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	cfg.RedisPrefix = fc.Offline.Redis.Prefix

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 200*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 1
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 5
	}

	cb := fc.Reliability.CircuitBreaker
	cfg.CircuitBreakerEnabled = cb.Enabled == nil || *cb.Enabled
	cfg.CircuitBreakerFailureThreshold = cb.FailureThreshold
	if cfg.CircuitBreakerFailureThreshold <= 0 {
		cfg.CircuitBreakerFailureThreshold = 5
	}
	cfg.CircuitBreakerSuccessThreshold = cb.SuccessThreshold
	if cfg.CircuitBreakerSuccessThreshold <= 0 {
		cfg.CircuitBreakerSuccessThreshold = 1
	}
	cfg.CircuitBreakerTimeout = parseDuration(cb.Timeout, time.Minute)

	cfg.Thresholds = interpret.DefaultThresholds
	if fc.Advisory.Thresholds != nil {
		cfg.Thresholds = *fc.Advisory.Thresholds
	}

	cfg.LogFile = strings.TrimSpace(firstNonEmpty(os.Getenv("LOG_FILE"), fc.Logging.File))
	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Lifecycle.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 30*time.Minute)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.StaleAfter = parseDuration(fc.Lifecycle.StaleAfter, 25*time.Minute)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadAPIKey(dir string) (string, error) {
	if key := os.Getenv("WEATHER_API_KEY"); key != "" {
		return key, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return sec.WeatherAPIKey, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The cycle timeout is raised above
// the per-call timeout when needed, and the request timeout above the cycle.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.CycleTimeout <= cfg.WeatherAPITimeout {
		cfg.CycleTimeout = cfg.WeatherAPITimeout + 5*time.Second
	}
	if cfg.RefreshTimeout <= cfg.CycleTimeout {
		cfg.RefreshTimeout = cfg.CycleTimeout + 5*time.Second
	}
	if err := validation.ValidateCoordinates(cfg.Lat, cfg.Lon); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	name, err := validation.ValidateFieldName(cfg.FieldName, maxFieldNameLen)
	if err != nil {
		return fmt.Errorf("field.name: %w", err)
	}
	cfg.FieldName = name
	t := cfg.Thresholds
	if !(t.Mild > t.Cool && t.Cool > t.Cold) {
		return fmt.Errorf("advisory.thresholds must satisfy mild > cool > cold, got %v/%v/%v", t.Mild, t.Cool, t.Cold)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.OfflineBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("offline.backend must be memory or redis, got %q", cfg.OfflineBackend)
	}
	return nil
}
