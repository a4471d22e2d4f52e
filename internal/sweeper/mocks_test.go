package sweeper

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/k-weiss/tokenpool/internal/pool"
)

// MockSessionPool mocks the SessionPool interface.
type MockSessionPool struct {
	mock.Mock
}

func (m *MockSessionPool) HealthCheck(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

func (m *MockSessionPool) RefreshExpiringEntries(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockSessionPool) Stats() pool.Stats {
	args := m.Called()
	return args.Get(0).(pool.Stats)
}
