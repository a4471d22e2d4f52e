package sweeper

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper runs the pool's hygiene passes on a period independent of
// acquisition traffic: first the expired-entry sweep, then the proactive
// refresh of entries approaching expiry.
type Sweeper struct {
	pool     SessionPool
	interval time.Duration
	logger   *slog.Logger
}

func New(p SessionPool, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		pool:     p,
		interval: interval,
		logger:   logger,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started", "interval", s.interval)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	removed := s.pool.HealthCheck(ctx)
	if removed > 0 {
		s.logger.Info("sweeper removed expired sessions", "count", removed)
	}

	s.pool.RefreshExpiringEntries(ctx)

	stats := s.pool.Stats()
	s.logger.Debug("sweep complete", "stats", stats.String())
}
