package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/paddock-weather/internal/observability"
)

const (
	DefaultVersion           = "wr3-weather-flattened-v2-map-alerts"
	DefaultAPICacheName      = "openweather-api"
	DefaultAPIOrigin         = "https://api.openweathermap.org"
	DefaultRevalidateTimeout = 15 * time.Second

	indexPath = "/index.html"
)

// DefaultAppShell lists the same-origin assets seeded on install.
var DefaultAppShell = []string{"/", indexPath, "/manifest.webmanifest", "/pwa-192.png", "/pwa-512.png"}

// Config controls cache names and the origin served stale-while-revalidate.
type Config struct {
	Version           string
	APICacheName      string
	APIOrigin         string
	AppShell          []string
	RevalidateTimeout time.Duration
}

// Worker intercepts app-shell requests (Middleware) and outbound weather API
// calls (RoundTrip). It does nothing until Activate has run.
type Worker struct {
	cfg         Config
	origin      *url.URL
	storage     *CacheStorage
	network     http.RoundTripper
	logger      *zap.Logger
	controlling atomic.Bool
	group       singleflight.Group
	wg          sync.WaitGroup
}

// NewWorker builds a Worker. network performs real outbound calls; nil uses
// http.DefaultTransport.
func NewWorker(cfg Config, storage *CacheStorage, network http.RoundTripper, logger *zap.Logger) (*Worker, error) {
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.APICacheName == "" {
		cfg.APICacheName = DefaultAPICacheName
	}
	if cfg.APIOrigin == "" {
		cfg.APIOrigin = DefaultAPIOrigin
	}
	if len(cfg.AppShell) == 0 {
		cfg.AppShell = DefaultAppShell
	}
	if cfg.RevalidateTimeout <= 0 {
		cfg.RevalidateTimeout = DefaultRevalidateTimeout
	}
	if cfg.Version == cfg.APICacheName {
		return nil, fmt.Errorf("offline: version %q collides with api cache name", cfg.Version)
	}
	origin, err := url.Parse(cfg.APIOrigin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return nil, fmt.Errorf("offline: invalid api origin %q", cfg.APIOrigin)
	}
	if network == nil {
		network = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		cfg:     cfg,
		origin:  origin,
		storage: storage,
		network: network,
		logger:  logger,
	}, nil
}

// Version returns the current shell cache name.
func (wk *Worker) Version() string { return wk.cfg.Version }

// Controlling reports whether Activate has completed.
func (wk *Worker) Controlling() bool { return wk.controlling.Load() }

// Install fetches every app-shell asset from shell and stores them in the
// version cache. A single failed asset fails the install and stores nothing.
func (wk *Worker) Install(ctx context.Context, shell http.Handler) error {
	c, err := wk.storage.Open(ctx, wk.cfg.Version)
	if err != nil {
		return fmt.Errorf("open shell cache: %w", err)
	}
	if err := c.AddAll(ctx, HandlerTransport{Handler: shell}, wk.cfg.AppShell); err != nil {
		return fmt.Errorf("install %s: %w", wk.cfg.Version, err)
	}
	wk.logger.Info("offline cache installed",
		zap.String("version", wk.cfg.Version),
		zap.Int("assets", len(wk.cfg.AppShell)),
	)
	return nil
}

// Activate deletes every cache other than the current version, the API cache
// included, then starts intercepting. API entries are cached again on demand.
func (wk *Worker) Activate(ctx context.Context) error {
	names, err := wk.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("list caches: %w", err)
	}
	for _, name := range names {
		if name == wk.cfg.Version {
			continue
		}
		if _, err := wk.storage.Delete(ctx, name); err != nil {
			return fmt.Errorf("delete cache %s: %w", name, err)
		}
		wk.logger.Info("offline cache removed", zap.String("cache", name))
	}
	wk.controlling.Store(true)
	return nil
}

// Check reports whether the store is reachable and, once activated, whether
// the version cache still exists. A flushed store loses the shell.
func (wk *Worker) Check(ctx context.Context) error {
	if err := wk.storage.Ping(ctx); err != nil {
		return err
	}
	if !wk.controlling.Load() {
		return nil
	}
	ok, err := wk.storage.Has(ctx, wk.cfg.Version)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, wk.cfg.Version)
	}
	return nil
}

// Middleware serves GET requests cache-first from the version cache. When
// next fails (5xx) a navigation falls back to the cached index page.
func (wk *Worker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !wk.controlling.Load() || r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		logger := observability.LoggerFromContext(ctx, wk.logger)

		shell, err := wk.storage.Open(ctx, wk.cfg.Version)
		if err != nil {
			logger.Warn("offline cache unavailable", zap.Error(err))
		}
		if shell != nil {
			e, ok, err := shell.Match(ctx, r)
			if err != nil {
				logger.Warn("offline cache match failed", zap.String("path", r.URL.Path), zap.Error(err))
			} else if ok {
				observability.OfflineResponsesTotal.WithLabelValues("cache_first", "hit").Inc()
				e.Serve(w)
				return
			}
		}

		rec := newRecorder()
		next.ServeHTTP(rec, r)
		e := rec.entry()
		if e.Status < http.StatusInternalServerError {
			if shell != nil && cacheable(e.Status) {
				e.StoredAt = time.Now().UTC()
				if err := shell.Put(ctx, r, e); err != nil {
					logger.Warn("offline cache put failed", zap.String("path", r.URL.Path), zap.Error(err))
				}
			}
			observability.OfflineResponsesTotal.WithLabelValues("cache_first", "miss").Inc()
			e.Serve(w)
			return
		}

		if shell != nil && isNavigation(r) {
			idx, _ := http.NewRequestWithContext(ctx, http.MethodGet, indexPath, nil)
			if fallback, ok, err := shell.Match(ctx, idx); err == nil && ok {
				observability.OfflineResponsesTotal.WithLabelValues("cache_first", "fallback").Inc()
				fallback.Serve(w)
				return
			}
		}
		observability.OfflineResponsesTotal.WithLabelValues("cache_first", "error").Inc()
		logger.Warn("app shell request failed", zap.String("path", r.URL.Path), zap.Int("status", e.Status))
		writeBadGateway(w, r)
	})
}

// RoundTrip serves GET requests to the API origin stale-while-revalidate.
// Everything else goes straight to the network.
func (wk *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if !wk.controlling.Load() || req.Method != http.MethodGet || !wk.isAPIOrigin(req.URL) {
		return wk.network.RoundTrip(req)
	}
	ctx := req.Context()
	logger := observability.LoggerFromContext(ctx, wk.logger)

	api, err := wk.storage.Open(ctx, wk.cfg.APICacheName)
	if err != nil {
		logger.Warn("offline api cache unavailable", zap.Error(err))
		return wk.network.RoundTrip(req)
	}
	e, ok, err := api.Match(ctx, req)
	if err != nil {
		logger.Warn("offline api cache match failed", zap.Error(err))
	} else if ok {
		observability.OfflineResponsesTotal.WithLabelValues("stale_while_revalidate", "hit").Inc()
		wk.revalidate(req, api)
		return e.Response(req), nil
	}

	resp, err := wk.network.RoundTrip(req)
	if err != nil {
		observability.OfflineResponsesTotal.WithLabelValues("stale_while_revalidate", "error").Inc()
		return nil, err
	}
	if !cacheable(resp.StatusCode) {
		observability.OfflineResponsesTotal.WithLabelValues("stale_while_revalidate", "bypass").Inc()
		return resp, nil
	}
	fresh, err := EntryFromResponse(resp)
	if err != nil {
		return nil, err
	}
	if err := api.Put(ctx, req, fresh); err != nil {
		logger.Warn("offline api cache put failed", zap.Error(err))
	}
	observability.OfflineResponsesTotal.WithLabelValues("stale_while_revalidate", "miss").Inc()
	return fresh.Response(req), nil
}

// revalidate refreshes the cached entry for req in the background. Concurrent
// revalidations of the same URL share one fetch.
func (wk *Worker) revalidate(req *http.Request, api *Cache) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), wk.cfg.RevalidateTimeout)
	bg := req.Clone(ctx)
	key := requestKey(bg)

	wk.wg.Add(1)
	go func() {
		defer wk.wg.Done()
		defer cancel()
		_, err, _ := wk.group.Do(key, func() (interface{}, error) {
			resp, err := wk.network.RoundTrip(bg)
			if err != nil {
				return nil, err
			}
			e, err := EntryFromResponse(resp)
			if err != nil {
				return nil, err
			}
			if !cacheable(e.Status) {
				return nil, fmt.Errorf("%w: status %d", ErrFetchFailed, e.Status)
			}
			return nil, api.Put(ctx, bg, e)
		})
		if err != nil {
			observability.OfflineRevalidationsTotal.WithLabelValues("failure").Inc()
			wk.logger.Debug("revalidation failed", zap.String("host", bg.URL.Host), zap.Error(err))
			return
		}
		observability.OfflineRevalidationsTotal.WithLabelValues("success").Inc()
	}()
}

// Wait blocks until background revalidations finish or ctx is done.
func (wk *Worker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		wk.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (wk *Worker) isAPIOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, wk.origin.Scheme) && strings.EqualFold(u.Host, wk.origin.Host)
}

func isNavigation(r *http.Request) bool {
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeBadGateway(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":      "BAD_GATEWAY",
			"message":   "app shell unavailable",
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}
