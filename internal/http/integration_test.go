//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/paddock-weather/internal/render"
	"github.com/kjstillabower/paddock-weather/internal/testhelpers"
)

func liveRouter(t *testing.T, limiter *rate.Limiter) (http.Handler, *render.Session) {
	t.Helper()
	logger := zap.NewNop()
	dash, session := testhelpers.SetupLiveDashboard(t, testhelpers.GetLiveConfig(t), logger)
	h := NewHandler(dash, session, &HealthConfig{StartTime: time.Now()}, logger)
	return NewRouter(h, RouterConfig{
		Shell:          render.ShellHandler(),
		Limiter:        limiter,
		RefreshTimeout: 30 * time.Second,
	}, logger), session
}

func TestIntegration_RefreshThenDashboard(t *testing.T) {
	router, _ := liveRouter(t, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var page render.Page
	require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
	require.NotNil(t, page.View)
	assert.NotEmpty(t, page.View.Temp)
	assert.NotEmpty(t, page.View.RugAdvice)
	assert.NotEmpty(t, page.View.Alerts, "placeholder or live alerts")
	assert.NotEqual(t, render.InitialCircleColor, page.Map.Color)
}

// TestIntegration_ConcurrentRefreshesCoalesce verifies that a burst of manual
// refreshes all succeed while sharing upstream cycles.
func TestIntegration_ConcurrentRefreshesCoalesce(t *testing.T) {
	router, _ := liveRouter(t, nil)

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
			codes[i] = w.Code
		}(i)
	}
	wg.Wait()
	for i, code := range codes {
		assert.Equal(t, http.StatusOK, code, "request %d", i)
	}
}

func TestIntegration_RateLimitEnforced(t *testing.T) {
	router, _ := liveRouter(t, rate.NewLimiter(rate.Every(time.Hour), 1))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
