package pool

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/k-weiss/tokenpool/internal/auth"
	"github.com/k-weiss/tokenpool/internal/config"
	"github.com/k-weiss/tokenpool/internal/remote"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testPoolConfig() config.PoolConfig {
	return config.PoolConfig{
		MaxSize:                2,
		SessionLifetimeSeconds: 1200,
		ExpiryMarginSeconds:    60,
		MaxAcquireAttempts:     10,
		RetryDelayMs:           20,
	}
}

// scriptedHandshaker is a shared fake remote: every authenticator the pool
// constructs talks to it. Tokens are sequential (tok-1, tok-2, ...).
type scriptedHandshaker struct {
	mu        sync.Mutex
	logins    int
	loggedOut []string
	failOn    map[int]error        // 1-based login attempt -> error
	gate      chan struct{}        // when set, Login blocks until closed
	active    int
	maxActive int
	logoutErr error
}

func (h *scriptedHandshaker) Login(ctx context.Context) (*remote.LoginResult, error) {
	h.mu.Lock()
	h.logins++
	n := h.logins
	h.active++
	if h.active > h.maxActive {
		h.maxActive = h.active
	}
	gate := h.gate
	err := h.failOn[n]
	h.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			h.mu.Lock()
			h.active--
			h.mu.Unlock()
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	h.active--
	h.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return &remote.LoginResult{
		Token:          fmt.Sprintf("tok-%d", n),
		ConversationID: fmt.Sprintf("conv-%d", n),
	}, nil
}

func (h *scriptedHandshaker) Logout(ctx context.Context, token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loggedOut = append(h.loggedOut, token)
	return h.logoutErr
}

func (h *scriptedHandshaker) loginCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.logins
}

func (h *scriptedHandshaker) logoutTokens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.loggedOut...)
}

func (h *scriptedHandshaker) maxConcurrentLogins() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxActive
}

func newTestPool(t *testing.T, cfg config.PoolConfig, hs auth.Handshaker) *Pool {
	t.Helper()
	return New(cfg, Options{
		NewAuthenticator: func() *auth.Authenticator {
			return auth.New(hs, cfg.SessionLifetime(), cfg.ExpiryMargin())
		},
		Logger: testLogger(),
	})
}

// backdate rewrites a slot entry's expiry snapshot, simulating an entry that
// aged while idle. offset is relative to now (negative = already expired).
func backdate(t *testing.T, p *Pool, idx int, offset time.Duration) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.slots[idx].entry == nil {
		t.Fatalf("slot %d has no entry", idx)
	}
	p.slots[idx].entry.expiresAt = time.Now().Add(offset)
}

type recordingRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingRecorder) Record(event string, slot int, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}
