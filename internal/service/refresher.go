package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RefreshInterval is the fixed cadence of the dashboard refresh timer.
const RefreshInterval = 10 * time.Minute

// Refresher drives a Dashboard on a timer.
type Refresher struct {
	dashboard *Dashboard
	interval  time.Duration
	logger    *zap.Logger
}

// NewRefresher creates a Refresher ticking every RefreshInterval.
func NewRefresher(d *Dashboard, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{dashboard: d, interval: RefreshInterval, logger: logger}
}

// Run refreshes immediately, then on every tick until ctx is done. Failures are
// already logged and notified by the dashboard; Run keeps going.
func (r *Refresher) Run(ctx context.Context) error {
	r.tick(ctx, "initial")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx, "periodic")
		}
	}
}

func (r *Refresher) tick(ctx context.Context, trigger string) {
	if _, err := r.dashboard.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.logger.Debug("refresh cycle ended with error", zap.String("trigger", trigger), zap.Error(err))
	}
}
