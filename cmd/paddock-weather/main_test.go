package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/paddock-weather/internal/config"
	"github.com/kjstillabower/paddock-weather/internal/interpret"
	"github.com/kjstillabower/paddock-weather/internal/render"
)

const (
	testCurrentURL  = "https://api.test/data/2.5/weather"
	testForecastURL = "https://api.test/data/2.5/forecast"
	testFeedURL     = "https://feeds.test/warnings/uk"
)

const currentJSON = `{
  "dt": 1704877200,
  "main": {"temp": 6.4, "feels_like": 3.1},
  "weather": [{"id": 500, "description": "light rain", "icon": "10n"}],
  "wind": {"speed": 4.6, "gust": 9.3},
  "rain": {"1h": 0.42}
}`

const forecastJSON = `{
  "list": [
    {"dt": 1704880800, "main": {"temp": 6.0}, "weather": [{"id": 500}]},
    {"dt": 1704891600, "main": {"temp": 5.2}, "weather": [{"id": 803}]},
    {"dt": 1704902400, "main": {"temp": 4.4}, "weather": [{"id": 800}]},
    {"dt": 1704913200, "main": {"temp": 3.9}, "weather": [{"id": 800}]}
  ]
}`

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Warnings</title>
  <item>
    <title>Yellow warning of wind</title>
    <description>Strong winds across the West Midlands</description>
    <link>https://feeds.test/warnings/1</link>
  </item>
</channel></rss>`

func testConfig() *config.Config {
	return &config.Config{
		FieldName:         "Top paddock",
		Lat:               config.DefaultLat,
		Lon:               config.DefaultLon,
		Location:          time.UTC,
		WeatherAPIKey:     "valid-api-key-12345",
		CurrentURL:        testCurrentURL,
		ForecastURL:       testForecastURL,
		WeatherAPITimeout: 2 * time.Second,
		AlertsFeedURL:     testFeedURL,
		AlertsTimeout:     2 * time.Second,
		CycleTimeout:      5 * time.Second,
		CacheBackend:      "in_memory",
		SnapshotTTL:       time.Hour,
		RetryAttempts:     1,
		Thresholds:        interpret.DefaultThresholds,
	}
}

func mockUpstreams(feed string) *httpmock.MockTransport {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", `=~^https://api\.test/data/2\.5/weather`, httpmock.NewStringResponder(200, currentJSON))
	mt.RegisterResponder("GET", `=~^https://api\.test/data/2\.5/forecast`, httpmock.NewStringResponder(200, forecastJSON))
	mt.RegisterResponder("GET", testFeedURL, httpmock.NewStringResponder(200, feed))
	return mt
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "render", "alerts"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	renderCmd, _, err := root.Find([]string{"render"})
	require.NoError(t, err)
	out := renderCmd.Flags().Lookup("output")
	require.NotNil(t, out)
	assert.Equal(t, "o", out.Shorthand)
	assert.Equal(t, "dashboard.html", out.DefValue)
	assert.NotNil(t, root.RunE, "serve is the default command")
}

func TestApp_RenderOnce(t *testing.T) {
	mt := mockUpstreams(feedXML)
	a, err := newApp(testConfig(), zap.NewNop(), mt)
	require.NoError(t, err)
	defer a.close()

	path := filepath.Join(t.TempDir(), "dashboard.html")
	require.NoError(t, a.renderOnce(context.Background(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(raw)
	assert.Contains(t, html, "Top paddock")
	assert.Contains(t, html, "Yellow warning of wind")
	assert.Contains(t, html, "light rain")
	assert.Equal(t, 3, mt.GetTotalCallCount())
}

// TestApp_RenderOnce_FailureStillWritesPage verifies that a failed cycle
// writes the page with the failure notice and returns the error.
func TestApp_RenderOnce_FailureStillWritesPage(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder("GET", `=~^https://api\.test/data/2\.5/weather`, httpmock.NewStringResponder(401, `{"cod":401}`))
	mt.RegisterResponder("GET", `=~^https://api\.test/data/2\.5/forecast`, httpmock.NewStringResponder(200, forecastJSON))
	mt.RegisterResponder("GET", testFeedURL, httpmock.NewStringResponder(200, feedXML))

	a, err := newApp(testConfig(), zap.NewNop(), mt)
	require.NoError(t, err)
	defer a.close()

	path := filepath.Join(t.TempDir(), "dashboard.html")
	err = a.renderOnce(context.Background(), path)
	require.Error(t, err)

	raw, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(raw), "Could not load weather")
}

func TestApp_PrintAlerts(t *testing.T) {
	a, err := newApp(testConfig(), zap.NewNop(), mockUpstreams(feedXML))
	require.NoError(t, err)
	defer a.close()

	var buf bytes.Buffer
	require.NoError(t, a.printAlerts(context.Background(), &buf))
	assert.Equal(t, "Yellow warning of wind\n  Strong winds across the West Midlands\n  https://feeds.test/warnings/1\n", buf.String())
}

func TestApp_PrintAlerts_EmptyFeed(t *testing.T) {
	empty := `<?xml version="1.0"?><rss version="2.0"><channel><title>Warnings</title></channel></rss>`
	a, err := newApp(testConfig(), zap.NewNop(), mockUpstreams(empty))
	require.NoError(t, err)
	defer a.close()

	var buf bytes.Buffer
	require.NoError(t, a.printAlerts(context.Background(), &buf))
	assert.Equal(t, render.NoAlertsPlaceholder+"\n", buf.String())
}
