package pool

import (
	"context"
	"time"
)

// RefreshExpiringEntries re-runs the handshake in place for every idle entry
// within the expiry margin of its expiry. Leased entries are never refreshed:
// swapping the token out from under a caller would invalidate its in-flight
// remote calls and break release-by-token. An entry whose refresh fails is
// retired outright rather than left half-refreshed.
func (p *Pool) RefreshExpiringEntries(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	deadline := time.Now().Add(p.cfg.ExpiryMargin())
	var claimed []int
	for i := range p.slots {
		s := p.slots[i]
		if s.state != slotReady {
			continue
		}
		e := s.entry
		if e.inUse || e.refreshing || e.expiresAt.After(deadline) {
			continue
		}
		e.refreshing = true
		claimed = append(claimed, i)
	}
	p.mu.Unlock()

	for _, idx := range claimed {
		p.refreshSlot(ctx, idx)
	}
}

// refreshSlot performs logout+login for one claimed entry and re-snapshots
// its token state. The entry stays invisible to lease scans while refreshing.
func (p *Pool) refreshSlot(ctx context.Context, idx int) {
	p.mu.Lock()
	s := p.slots[idx]
	if s.state != slotReady || s.entry == nil || !s.entry.refreshing {
		p.mu.Unlock()
		return
	}
	e := s.entry
	a := e.authenticator
	p.mu.Unlock()

	if err := a.Logout(ctx); err != nil {
		p.logger.Debug("refresh logout failed", "slot", idx, "error", err)
	}

	err := a.Login(ctx)
	var token, conv string
	if err == nil {
		token, err = a.AccessToken(ctx)
		conv, _ = a.ConversationID()
	}

	p.mu.Lock()
	if p.slots[idx].entry != e {
		// The slot was cleared while the handshake ran (shutdown or sweep).
		p.mu.Unlock()
		if err == nil {
			if lerr := a.Logout(ctx); lerr != nil {
				p.logger.Debug("logout of orphaned refresh failed", "slot", idx, "error", lerr)
			}
		}
		return
	}

	if err != nil {
		p.slots[idx] = slot{}
		p.recordLocked("refresh_failed", idx, err.Error())
		p.broadcastLocked()
		p.mu.Unlock()
		p.logger.Warn("refresh failed, retiring entry", "slot", idx, "error", err)
		return
	}

	e.token = token
	e.conversationID = conv
	e.createdAt = time.Now()
	e.expiresAt = a.ExpiresAt()
	e.refreshing = false
	p.recordLocked("refreshed", idx, "")
	p.broadcastLocked()
	p.mu.Unlock()
}
