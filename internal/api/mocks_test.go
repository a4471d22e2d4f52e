package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/k-weiss/tokenpool/internal/journal"
	"github.com/k-weiss/tokenpool/internal/pool"
)

// MockPoolService mocks the PoolService interface.
type MockPoolService struct {
	mock.Mock
}

func (m *MockPoolService) Acquire(ctx context.Context) (*pool.Session, error) {
	args := m.Called(ctx)
	if sess := args.Get(0); sess != nil {
		return sess.(*pool.Session), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPoolService) Release(token string) {
	m.Called(token)
}

func (m *MockPoolService) Stats() pool.Stats {
	args := m.Called()
	return args.Get(0).(pool.Stats)
}

func (m *MockPoolService) HealthCheck(ctx context.Context) int {
	args := m.Called(ctx)
	return args.Int(0)
}

func (m *MockPoolService) RefreshExpiringEntries(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockPoolService) Prewarm(ctx context.Context, count int) int {
	args := m.Called(ctx, count)
	return args.Int(0)
}

func (m *MockPoolService) Shrink(ctx context.Context, target int) int {
	args := m.Called(ctx, target)
	return args.Int(0)
}

// MockEventSource mocks the EventSource interface.
type MockEventSource struct {
	mock.Mock
}

func (m *MockEventSource) Recent(limit int) ([]journal.Event, error) {
	args := m.Called(limit)
	if events := args.Get(0); events != nil {
		return events.([]journal.Event), args.Error(1)
	}
	return nil, args.Error(1)
}
