package auth

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSessionUnavailable means a token was requested but none exists even
// after a successful ensure. This is a contract violation on the remote
// side (login succeeded without issuing a token), not an expected state.
var ErrSessionUnavailable = errors.New("session unavailable")

// Authenticator holds the authentication state of exactly one remote-side
// identity. It is either authenticated (token present, expiry known) or not;
// expiry relative to "now" is the caller's concern.
type Authenticator struct {
	handshaker Handshaker
	lifetime   time.Duration
	margin     time.Duration

	mu             sync.Mutex
	token          string
	conversationID string
	expiresAt      time.Time
	attempt        *loginAttempt
}

// loginAttempt coalesces concurrent Login calls: the first caller runs the
// handshake, everyone else waits on done and shares err.
type loginAttempt struct {
	done chan struct{}
	err  error
}

// New constructs an authenticator. lifetime is the fixed session validity
// applied from login time; margin is how long before expiry a session is
// already treated as stale by EnsureSession.
func New(handshaker Handshaker, lifetime, margin time.Duration) *Authenticator {
	return &Authenticator{
		handshaker: handshaker,
		lifetime:   lifetime,
		margin:     margin,
	}
}

// Login performs the handshake. Under concurrent invocation only one
// handshake is issued; all callers observe the outcome of that attempt.
// A new attempt can only start after the previous one has settled.
func (a *Authenticator) Login(ctx context.Context) error {
	a.mu.Lock()
	if att := a.attempt; att != nil {
		a.mu.Unlock()
		select {
		case <-att.done:
			return att.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	att := &loginAttempt{done: make(chan struct{})}
	a.attempt = att
	a.mu.Unlock()

	result, err := a.handshaker.Login(ctx)

	a.mu.Lock()
	a.attempt = nil
	if err != nil {
		a.token = ""
		a.conversationID = ""
		a.expiresAt = time.Time{}
	} else {
		a.token = result.Token
		a.conversationID = result.ConversationID
		a.expiresAt = time.Now().Add(a.lifetime)
	}
	a.mu.Unlock()

	att.err = err
	close(att.done)
	return err
}

// EnsureSession is a no-op while the current session is valid beyond the
// safety margin; otherwise it logs in (joining an in-flight attempt if one
// exists).
func (a *Authenticator) EnsureSession(ctx context.Context) error {
	a.mu.Lock()
	if a.attempt == nil && a.token != "" && time.Until(a.expiresAt) > a.margin {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	return a.Login(ctx)
}

// AccessToken ensures the session and returns its token.
func (a *Authenticator) AccessToken(ctx context.Context) (string, error) {
	if err := a.EnsureSession(ctx); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == "" {
		return "", ErrSessionUnavailable
	}
	return a.token, nil
}

// ConversationID returns the last-known conversation id, if any.
func (a *Authenticator) ConversationID() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conversationID, a.conversationID != ""
}

// ExpiresAt returns when the current session expires (zero if none).
func (a *Authenticator) ExpiresAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.expiresAt
}

// Authenticated reports whether a token is currently held.
func (a *Authenticator) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token != ""
}

// Logout notifies the remote side best effort. Local state is cleared
// unconditionally: a failed network call must never leave the authenticator
// looking authenticated with a token the caller meant to discard.
func (a *Authenticator) Logout(ctx context.Context) error {
	a.mu.Lock()
	token := a.token
	a.token = ""
	a.conversationID = ""
	a.expiresAt = time.Time{}
	a.mu.Unlock()

	if token == "" {
		return nil
	}
	return a.handshaker.Logout(ctx, token)
}
