package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kjstillabower/paddock-weather/internal/circuitbreaker"
	"github.com/kjstillabower/paddock-weather/internal/models"
	"github.com/kjstillabower/paddock-weather/internal/observability"
)

// WeatherClient fetches current conditions and the forecast for one fixed location.
type WeatherClient interface {
	CurrentConditions(ctx context.Context) (models.CurrentConditions, error)
	Forecast(ctx context.Context) ([]models.ForecastEntry, error)
}

var (
	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrNotFound          = errors.New("resource not found")
	ErrUpstreamFailure   = errors.New("upstream failure")
	ErrRateLimited       = errors.New("rate limited")
	ErrMalformedResponse = errors.New("malformed response")
)

// Location is a fixed point given to the provider as lat/lon.
type Location struct {
	Lat float64
	Lon float64
}

// Endpoints are the two OpenWeather URLs queried each cycle.
type Endpoints struct {
	CurrentURL  string
	ForecastURL string
}

type OpenWeatherClient struct {
	apiKey         string
	endpoints      Endpoints
	location       Location
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewOpenWeatherClient returns a client that makes a single attempt per call.
func NewOpenWeatherClient(apiKey string, endpoints Endpoints, loc Location, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithRetry(apiKey, endpoints, loc, timeout, 1, 100*time.Millisecond, 2*time.Second)
}

func NewOpenWeatherClientWithRetry(apiKey string, endpoints Endpoints, loc Location, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*OpenWeatherClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < 10 {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &OpenWeatherClient{
		apiKey:         apiKey,
		endpoints:      endpoints,
		location:       loc,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetTransport routes outbound calls through rt, e.g. the offline cache worker.
func (c *OpenWeatherClient) SetTransport(rt http.RoundTripper) {
	c.client.Transport = rt
}

// SetCircuitBreaker wraps every upstream attempt in cb.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type weatherEntry struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type precipitation struct {
	OneHour float64 `json:"1h"`
}

type currentResponse struct {
	Dt   int64 `json:"dt"`
	Main *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
	} `json:"main"`
	Weather []weatherEntry `json:"weather"`
	Wind    struct {
		Speed float64  `json:"speed"`
		Gust  *float64 `json:"gust"`
	} `json:"wind"`
	Rain *precipitation `json:"rain"`
	Snow *precipitation `json:"snow"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []weatherEntry `json:"weather"`
	} `json:"list"`
}

// CurrentConditions fetches and normalizes the current-conditions reading.
func (c *OpenWeatherClient) CurrentConditions(ctx context.Context) (models.CurrentConditions, error) {
	var resp currentResponse
	if err := c.getWithRetry(ctx, "current", c.endpoints.CurrentURL, &resp); err != nil {
		return models.CurrentConditions{}, err
	}
	return mapCurrent(resp)
}

// Forecast fetches the 3-hourly forecast in provider order.
func (c *OpenWeatherClient) Forecast(ctx context.Context) ([]models.ForecastEntry, error) {
	var resp forecastResponse
	if err := c.getWithRetry(ctx, "forecast", c.endpoints.ForecastURL, &resp); err != nil {
		return nil, err
	}
	return mapForecast(resp)
}

func (c *OpenWeatherClient) getWithRetry(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.UpstreamRetriesTotal.WithLabelValues(endpoint).Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		var err error
		if c.breaker != nil {
			err = c.breaker.Call(ctx, func() error { return c.callAPI(ctx, endpoint, rawURL, out) })
		} else {
			err = c.callAPI(ctx, endpoint, rawURL, out)
		}
		if err == nil {
			return nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return err
		}
	}

	if c.retryAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, endpoint, rawURL string, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, rawURL)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		observability.UpstreamDuration.WithLabelValues(endpoint, "error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s request timeout: %w", endpoint, err)
		}
		return fmt.Errorf("%s http request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.UpstreamCallsTotal.WithLabelValues(endpoint, status).Inc()
	observability.UpstreamDuration.WithLabelValues(endpoint, status).Observe(duration)

	if err := handleErrorResponse(resp); err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s read response body: %w", endpoint, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s parse response: %w: %v", endpoint, ErrMalformedResponse, err)
	}
	return nil
}

func (c *OpenWeatherClient) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") {
		return true
	}

	return false
}

func (c *OpenWeatherClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	baseURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := baseURL.Query()
	params.Set("lat", strconv.FormatFloat(c.location.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(c.location.Lon, 'f', -1, 64))
	params.Set("units", "metric")
	params.Set("appid", c.apiKey)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: API key rejected", ErrInvalidAPIKey)
	case http.StatusNotFound:
		return fmt.Errorf("%w", ErrNotFound)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}

	return nil
}

// mapCurrent validates the decoded payload. main and weather[0] are required;
// gust, rain and snow default to zero.
func mapCurrent(resp currentResponse) (models.CurrentConditions, error) {
	if resp.Main == nil {
		return models.CurrentConditions{}, fmt.Errorf("current: %w: missing main", ErrMalformedResponse)
	}
	if len(resp.Weather) == 0 {
		return models.CurrentConditions{}, fmt.Errorf("current: %w: missing weather", ErrMalformedResponse)
	}

	w := resp.Weather[0]
	cur := models.CurrentConditions{
		Temp:          resp.Main.Temp,
		FeelsLike:     resp.Main.FeelsLike,
		WindSpeed:     resp.Wind.Speed,
		ConditionCode: w.ID,
		Description:   w.Description,
		IconCode:      w.Icon,
	}
	if resp.Wind.Gust != nil {
		cur.WindGust = *resp.Wind.Gust
	}
	if resp.Rain != nil {
		cur.Rain1h = resp.Rain.OneHour
	}
	if resp.Snow != nil {
		cur.Snow1h = resp.Snow.OneHour
	}
	if resp.Dt > 0 {
		cur.ObservedAt = time.Unix(resp.Dt, 0).UTC()
	}
	return cur, nil
}

func mapForecast(resp forecastResponse) ([]models.ForecastEntry, error) {
	if resp.List == nil {
		return nil, fmt.Errorf("forecast: %w: missing list", ErrMalformedResponse)
	}
	out := make([]models.ForecastEntry, 0, len(resp.List))
	for i, item := range resp.List {
		if len(item.Weather) == 0 {
			return nil, fmt.Errorf("forecast: %w: entry %d missing weather", ErrMalformedResponse, i)
		}
		out = append(out, models.ForecastEntry{
			Time:          time.Unix(item.Dt, 0).UTC(),
			Temp:          item.Main.Temp,
			ConditionCode: item.Weather[0].ID,
		})
	}
	return out, nil
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
