package server

import (
	"context"
	"log/slog"
	"time"
)

// sessionPurger drops sessions idle since before.
type sessionPurger interface {
	PurgeIdle(ctx context.Context, before time.Time) (int64, error)
}

// Housekeeping periodically removes idle browser sessions so the session
// store does not grow without bound.
type Housekeeping struct {
	sessions sessionPurger
	maxIdle  time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewHousekeeping creates a housekeeping worker. Sessions untouched for
// longer than maxIdle are purged every interval; interval defaults to one
// hour.
func NewHousekeeping(sessions sessionPurger, maxIdle, interval time.Duration, logger *slog.Logger) *Housekeeping {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Housekeeping{
		sessions: sessions,
		maxIdle:  maxIdle,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Run purges once immediately and then on every tick until ctx is done.
func (h *Housekeeping) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.cleanup(ctx)
	for {
		select {
		case <-ticker.C:
			h.cleanup(ctx)
		case <-ctx.Done():
			h.logger.Info("housekeeping stopped")
			return
		}
	}
}

func (h *Housekeeping) cleanup(ctx context.Context) {
	n, err := h.sessions.PurgeIdle(ctx, h.now().Add(-h.maxIdle))
	if err != nil {
		h.logger.Error("failed to purge idle sessions", "error", err)
		return
	}
	if n > 0 {
		h.logger.Info("purged idle sessions", "items", n)
	}
}
