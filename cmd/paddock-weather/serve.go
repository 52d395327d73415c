package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/paddock-weather/internal/config"
	httphandler "github.com/kjstillabower/paddock-weather/internal/http"
	"github.com/kjstillabower/paddock-weather/internal/lifecycle"
	"github.com/kjstillabower/paddock-weather/internal/observability"
	"github.com/kjstillabower/paddock-weather/internal/offline"
	"github.com/kjstillabower/paddock-weather/internal/render"
	"github.com/kjstillabower/paddock-weather/internal/service"
)

// offlineStack is the offline cache worker and its backing store.
type offlineStack struct {
	worker *offline.Worker
	redis  *offline.RedisStore
}

func newOfflineStack(cfg *config.Config, logger *zap.Logger) (*offlineStack, error) {
	var (
		store offline.Store
		s     offlineStack
	)
	switch cfg.OfflineBackend {
	case "redis":
		s.redis = offline.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPrefix)
		store = s.redis
		logger.Info("offline backend: redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisDB))
	default:
		store = offline.NewMemoryStore(cfg.OfflineMaxAge)
		logger.Info("offline backend: memory")
	}
	worker, err := offline.NewWorker(offline.Config{
		Version:           cfg.OfflineVersion,
		APIOrigin:         cfg.APIOrigin,
		RevalidateTimeout: cfg.RevalidateTimeout,
	}, offline.NewCacheStorage(store), nil, logger)
	if err != nil {
		return nil, err
	}
	s.worker = worker
	return &s, nil
}

func (s *offlineStack) close(logger *zap.Logger) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Close(); err != nil {
		logger.Error("redis close", zap.Error(err))
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	off, err := newOfflineStack(cfg, logger)
	if err != nil {
		return fmt.Errorf("offline worker: %w", err)
	}
	defer off.close(logger)

	a, err := newApp(cfg, logger, off.worker)
	if err != nil {
		return err
	}
	defer a.close()

	shell := render.ShellHandler()
	installCtx, installCancel := context.WithTimeout(parent, 30*time.Second)
	if err := off.worker.Install(installCtx, shell); err != nil {
		logger.Error("offline install failed; serving without offline cache", zap.Error(err))
	} else if err := off.worker.Activate(installCtx); err != nil {
		logger.Error("offline activate failed", zap.Error(err))
	}
	installCancel()

	if a.dashboard.Restore(parent) {
		logger.Info("painted restored snapshot while the first cycle runs")
	}

	healthConfig := &httphandler.HealthConfig{
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
		StaleAfter:           cfg.StaleAfter,
		StartTime:            time.Now(),
		OfflinePing:          off.worker.Check,
	}
	if a.memcached != nil {
		healthConfig.CachePing = a.memcached.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	observability.RegisterRateLimitGauges(cfg.OverloadWindow)

	handler := httphandler.NewHandler(a.dashboard, a.session, healthConfig, logger)
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Shell:           shell,
		ShellMiddleware: off.worker.Middleware,
		Limiter:         limiter,
		RefreshTimeout:  cfg.RefreshTimeout,
	}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RefreshTimeout + 5*time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	refresherDone := make(chan struct{})
	go func() {
		defer close(refresherDone)
		_ = service.NewRefresher(a.dashboard, logger).Run(refreshCtx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("offline_version", off.worker.Version()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("graceful shutdown triggered")
	case err := <-serveErr:
		if err != nil {
			logger.Error("server", zap.Error(err))
		}
	}

	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, 50*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	stopRefresh()
	<-refresherDone
	a.dashboard.Wait()
	if err := off.worker.Wait(shutdownCtx); err != nil {
		logger.Warn("revalidations not completed", zap.Error(err))
	}

	if err := observability.FlushTelemetry(shutdownCtx, logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
