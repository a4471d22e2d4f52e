package sweeper

import (
	"context"

	"github.com/k-weiss/tokenpool/internal/pool"
)

// SessionPool abstracts the pool operations the sweeper needs.
type SessionPool interface {
	HealthCheck(ctx context.Context) int
	RefreshExpiringEntries(ctx context.Context)
	Stats() pool.Stats
}
