package api

import (
	"context"

	"github.com/k-weiss/tokenpool/internal/journal"
	"github.com/k-weiss/tokenpool/internal/pool"
)

// PoolService abstracts the pool operations the operational API exposes.
type PoolService interface {
	Acquire(ctx context.Context) (*pool.Session, error)
	Release(token string)
	Stats() pool.Stats
	HealthCheck(ctx context.Context) int
	RefreshExpiringEntries(ctx context.Context)
	Prewarm(ctx context.Context, count int) int
	Shrink(ctx context.Context, target int) int
}

// EventSource abstracts the journal read side.
type EventSource interface {
	Recent(limit int) ([]journal.Event, error)
}
