package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjstillabower/paddock-weather/internal/cache"
	"github.com/kjstillabower/paddock-weather/internal/client"
	"github.com/kjstillabower/paddock-weather/internal/degraded"
	"github.com/kjstillabower/paddock-weather/internal/interpret"
	"github.com/kjstillabower/paddock-weather/internal/models"
	"github.com/kjstillabower/paddock-weather/internal/observability"
)

// Painter receives every snapshot a successful cycle produces.
type Painter interface {
	Paint(snap models.Snapshot)
}

// Notifier receives exactly one call per failed cycle.
type Notifier interface {
	Notify(err error)
}

// Config holds the field location and cycle tuning.
type Config struct {
	Lat, Lon     float64
	Thresholds   interpret.Thresholds
	SnapshotTTL  time.Duration
	CycleTimeout time.Duration
}

// Dashboard runs refresh cycles: the three retrievals, interpretation, and
// hand-off to the painter. It keeps the last good snapshot.
type Dashboard struct {
	weather  client.WeatherClient
	alerts   client.AlertsClient
	cache    cache.Cache
	painter  Painter
	notifier Notifier
	cfg      Config
	logger   *zap.Logger
	guard    *cycleGuard
	now      func() time.Time

	mu          sync.RWMutex
	last        *models.Snapshot
	lastErr     error
	lastSuccess time.Time
}

// NewDashboard wires a Dashboard. cache may be nil to disable snapshot persistence.
func NewDashboard(weather client.WeatherClient, alerts client.AlertsClient, snapshots cache.Cache, painter Painter, notifier Notifier, cfg Config, logger *zap.Logger) *Dashboard {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = 30 * time.Second
	}
	if cfg.Thresholds == (interpret.Thresholds{}) {
		cfg.Thresholds = interpret.DefaultThresholds
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		weather:  weather,
		alerts:   alerts,
		cache:    snapshots,
		painter:  painter,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		guard:    newCycleGuard(cfg.CycleTimeout + time.Second),
		now:      time.Now,
	}
}

// Refresh runs a refresh cycle, or joins the one already in flight. On failure
// it returns the last good snapshot (marked stale, zero if none) with the error.
func (d *Dashboard) Refresh(ctx context.Context) (models.Snapshot, error) {
	snap, joined, err := d.guard.Do(ctx, func() (models.Snapshot, error) {
		return d.runCycle(context.WithoutCancel(ctx))
	})
	if joined {
		observability.RefreshCoalescedTotal.Inc()
	}
	if err != nil {
		last, _ := d.Last()
		return last, err
	}
	return snap, nil
}

func (d *Dashboard) runCycle(ctx context.Context) (models.Snapshot, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.cfg.CycleTimeout)
	defer cancel()
	logger := observability.LoggerFromContext(ctx, d.logger)

	var (
		current  models.CurrentConditions
		forecast []models.ForecastEntry
		alerts   []models.AlertItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := d.weather.CurrentConditions(gctx)
		if err != nil {
			return fmt.Errorf("current conditions: %w", err)
		}
		current = c
		return nil
	})
	g.Go(func() error {
		f, err := d.weather.Forecast(gctx)
		if err != nil {
			return fmt.Errorf("forecast: %w", err)
		}
		forecast = f
		return nil
	})
	g.Go(func() error {
		a, err := d.alerts.Alerts(gctx)
		if err != nil {
			return fmt.Errorf("alerts: %w", err)
		}
		alerts = a
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.Snapshot{}, d.fail(logger, start, err)
	}

	fetchedAt := d.now()
	var sun *models.SunTimes
	if st, err := interpret.SunTimes(d.cfg.Lat, d.cfg.Lon, fetchedAt); err != nil {
		logger.Debug("sun times unavailable", zap.Error(err))
	} else {
		sun = &st
	}
	if night, ok := interpret.NightFromIconCode(current.IconCode); ok {
		current.Night = night
	} else if sun != nil {
		current.Night = interpret.IsNight(*sun, fetchedAt)
	}

	snap := d.cfg.Thresholds.Assemble(current, forecast, alerts, sun, fetchedAt)
	d.succeed(ctx, logger, start, snap)
	return snap, nil
}

func (d *Dashboard) succeed(ctx context.Context, logger *zap.Logger, start time.Time, snap models.Snapshot) {
	d.mu.Lock()
	d.last = &snap
	d.lastErr = nil
	d.lastSuccess = snap.FetchedAt
	d.mu.Unlock()

	if d.cache != nil {
		if err := d.cache.Set(ctx, cache.SnapshotKey, snap, d.cfg.SnapshotTTL); err != nil {
			observability.SnapshotCacheErrorsTotal.WithLabelValues("set").Inc()
			logger.Warn("snapshot cache set failed", zap.Error(err))
		}
	}
	if d.painter != nil {
		d.painter.Paint(snap)
	}

	degraded.RecordSuccess()
	observability.SeverityScore.Set(snap.Severity.Score)
	observability.RecordRefresh("success", time.Since(start))
	logger.Info("dashboard refreshed",
		zap.Float64("temp", snap.Current.Temp),
		zap.String("rug", snap.Rug.Advice),
		zap.String("severity", string(snap.Severity.Band)),
		zap.Int("alerts", len(snap.Alerts)),
		zap.Duration("duration", time.Since(start)),
	)
}

func (d *Dashboard) fail(logger *zap.Logger, start time.Time, err error) error {
	d.mu.Lock()
	d.lastErr = err
	if d.last != nil {
		d.last.Stale = true
	}
	d.mu.Unlock()

	category := string(client.CategorizeError(err))
	degraded.RecordError()
	observability.RecordRefresh(category, time.Since(start))
	logger.Error("refresh failed", zap.String("category", category), zap.Error(err))
	if d.notifier != nil {
		d.notifier.Notify(err)
	}
	return err
}

// Restore loads the last persisted snapshot, marks it stale and paints it.
// Reports whether a snapshot was found.
func (d *Dashboard) Restore(ctx context.Context) bool {
	if d.cache == nil {
		return false
	}
	snap, ok, err := d.cache.Get(ctx, cache.SnapshotKey)
	if err != nil {
		observability.SnapshotCacheErrorsTotal.WithLabelValues("get").Inc()
		d.logger.Warn("snapshot cache get failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	snap.Stale = true

	d.mu.Lock()
	if d.last != nil {
		d.mu.Unlock()
		return false
	}
	d.last = &snap
	d.lastSuccess = snap.FetchedAt
	d.mu.Unlock()

	if d.painter != nil {
		d.painter.Paint(snap)
	}
	d.logger.Info("restored last snapshot", zap.Time("fetchedAt", snap.FetchedAt))
	return true
}

// Last returns a copy of the last good snapshot.
func (d *Dashboard) Last() (models.Snapshot, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.last == nil {
		return models.Snapshot{}, false
	}
	return *d.last, true
}

// Status reports the time of the last successful cycle and the error of the
// most recent cycle, nil if it succeeded.
func (d *Dashboard) Status() (lastSuccess time.Time, lastErr error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSuccess, d.lastErr
}

// Refreshing reports whether a cycle is in flight.
func (d *Dashboard) Refreshing() bool {
	return d.guard.InFlight()
}

// Wait blocks until an in-flight cycle has finished.
func (d *Dashboard) Wait() {
	d.guard.Wait()
}
