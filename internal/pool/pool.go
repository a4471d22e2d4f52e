package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/k-weiss/tokenpool/internal/auth"
	"github.com/k-weiss/tokenpool/internal/config"
)

// AbsoluteMaxPoolSize caps the configured pool size. Each slot is a live
// remote-side identity, so the ceiling protects the upstream service from
// a runaway config value.
const AbsoluteMaxPoolSize = 64

type slotState int

const (
	slotEmpty slotState = iota
	slotCreating
	slotReady
)

// entry is a pool-owned session. token and conversationID are snapshots
// taken from the authenticator at creation/refresh time; the caller holding
// a lease only ever sees those snapshots, never the live authenticator.
type entry struct {
	authenticator  *auth.Authenticator
	token          string
	conversationID string
	inUse          bool
	refreshing     bool
	createdAt      time.Time
	expiresAt      time.Time
}

type slot struct {
	state slotState
	entry *entry
}

// Session is the lease handed to a caller by Acquire. Release it by token.
type Session struct {
	Token          string
	ConversationID string
	ExpiresAt      time.Time
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	Capacity      int `json:"capacity"`
	Ready         int `json:"ready"`
	InFlight      int `json:"in_flight"`
	Leased        int `json:"leased"`
	IdleAvailable int `json:"idle_available"`
	IdleExpired   int `json:"idle_expired"`
}

func (s Stats) String() string {
	return fmt.Sprintf("capacity=%d ready=%d in_flight=%d leased=%d idle_available=%d idle_expired=%d",
		s.Capacity, s.Ready, s.InFlight, s.Leased, s.IdleAvailable, s.IdleExpired)
}

// Options carries the pool's collaborators.
type Options struct {
	// NewAuthenticator constructs the authenticator backing one slot.
	// Each slot owns its instance exclusively.
	NewAuthenticator func() *auth.Authenticator
	// Recorder is the optional lifecycle journal.
	Recorder Recorder
	Logger   *slog.Logger
}

// Pool bounds the number of concurrently-held remote identities and
// amortizes the login handshake across many leases.
type Pool struct {
	cfg     config.PoolConfig
	newAuth func() *auth.Authenticator
	rec     Recorder
	logger  *slog.Logger

	mu    sync.Mutex
	slots []slot
	// progress is closed and replaced whenever an entry is released or a
	// creation settles, waking every Acquire waiter to re-evaluate.
	progress chan struct{}
	closed   bool
}

func New(cfg config.PoolConfig, opts Options) *Pool {
	size := cfg.MaxSize
	if size <= 0 {
		size = 1
	}
	if size > AbsoluteMaxPoolSize {
		if opts.Logger != nil {
			opts.Logger.Warn("pool max_size clamped", "configured", size, "ceiling", AbsoluteMaxPoolSize)
		}
		size = AbsoluteMaxPoolSize
	}
	cfg.MaxSize = size
	if cfg.MaxAcquireAttempts <= 0 {
		cfg.MaxAcquireAttempts = 1
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Pool{
		cfg:      cfg,
		newAuth:  opts.NewAuthenticator,
		rec:      opts.Recorder,
		logger:   logger,
		slots:    make([]slot, size),
		progress: make(chan struct{}),
	}
}

// Acquire returns a leased session. It prefers an idle fresh entry, creates a
// new one when a slot is free, and otherwise waits for an entry to be
// released or an in-flight creation to settle. The wait is bounded by
// MaxAcquireAttempts iterations with RetryDelay as the fallback wake-up.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	for attempt := 0; attempt < p.cfg.MaxAcquireAttempts; attempt++ {
		p.RefreshExpiringEntries(ctx)

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, ErrShuttingDown
		}

		if sess := p.leaseIdleLocked(); sess != nil {
			p.mu.Unlock()
			return sess, nil
		}

		if idx := p.freeSlotLocked(); idx >= 0 {
			p.slots[idx].state = slotCreating
			p.mu.Unlock()
			// Creation failure is this caller's to handle; the settled
			// slot is already free again for everyone else.
			return p.createSlot(ctx, idx, true)
		}

		// At capacity with nothing idle: wait for any release or creation
		// settle, falling back to the fixed retry delay.
		progress := p.progress
		p.mu.Unlock()

		select {
		case <-progress:
		case <-time.After(p.cfg.RetryDelay()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &ExhaustedError{Stats: p.Stats()}
}

// Release returns a leased session to the pool. An unknown token is logged,
// not fatal: the entry may have been retired while the lease was out.
func (p *Pool) Release(token string) {
	p.mu.Lock()
	for i := range p.slots {
		s := p.slots[i]
		if s.state == slotReady && s.entry.inUse && s.entry.token == token {
			s.entry.inUse = false
			p.recordLocked("released", i, "")
			p.broadcastLocked()
			p.mu.Unlock()
			return
		}
	}
	p.mu.Unlock()
	p.logger.Warn("release of unknown session token", "token", tokenPrefix(token))
}

// Prewarm eagerly creates up to count sessions in free slots, using the same
// per-slot claiming discipline as Acquire. Creation failures are logged and
// do not stop the remaining warm-ups.
func (p *Pool) Prewarm(ctx context.Context, count int) int {
	created := 0
	for i := 0; i < count; i++ {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return created
		}
		idx := p.freeSlotLocked()
		if idx < 0 {
			p.mu.Unlock()
			return created
		}
		p.slots[idx].state = slotCreating
		p.mu.Unlock()

		if _, err := p.createSlot(ctx, idx, false); err != nil {
			p.logger.Warn("prewarm create failed", "slot", idx, "error", err)
			continue
		}
		created++
	}
	return created
}

// Shrink logs out and removes idle entries until at most target ready
// entries remain. Leased entries are never touched.
func (p *Pool) Shrink(ctx context.Context, target int) int {
	if target < 0 {
		target = 0
	}

	p.mu.Lock()
	ready := 0
	for _, s := range p.slots {
		if s.state == slotReady {
			ready++
		}
	}
	var victims []*entry
	for i := range p.slots {
		if ready <= target {
			break
		}
		s := p.slots[i]
		if s.state == slotReady && !s.entry.inUse && !s.entry.refreshing {
			victims = append(victims, s.entry)
			p.slots[i] = slot{}
			p.recordLocked("shrunk", i, "")
			ready--
		}
	}
	if len(victims) > 0 {
		p.broadcastLocked()
	}
	p.mu.Unlock()

	for _, e := range victims {
		if err := e.authenticator.Logout(ctx); err != nil {
			p.logger.Warn("shrink logout failed", "token", tokenPrefix(e.token), "error", err)
		}
	}
	return len(victims)
}

// HealthCheck removes idle entries whose expiry has already passed. The
// proactive refresh catches entries before they expire; this sweep catches
// the ones that slipped through, e.g. during a long acquisition lull.
func (p *Pool) HealthCheck(ctx context.Context) int {
	now := time.Now()

	p.mu.Lock()
	var victims []*entry
	for i := range p.slots {
		s := p.slots[i]
		if s.state == slotReady && !s.entry.inUse && !s.entry.refreshing && now.After(s.entry.expiresAt) {
			victims = append(victims, s.entry)
			p.slots[i] = slot{}
			p.recordLocked("expired", i, "")
		}
	}
	if len(victims) > 0 {
		p.broadcastLocked()
	}
	p.mu.Unlock()

	for _, e := range victims {
		if err := e.authenticator.Logout(ctx); err != nil {
			p.logger.Warn("health check logout failed", "token", tokenPrefix(e.token), "error", err)
		}
	}
	return len(victims)
}

// CloseAll enters shutdown, waits for in-flight creations to settle, then
// logs every entry out concurrently (best effort) and clears the pool.
// Safe to call more than once.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("session pool shutting down")

	// Drain in-flight creations; outcome is irrelevant, every settle
	// broadcasts progress.
	for {
		p.mu.Lock()
		creating := false
		for _, s := range p.slots {
			if s.state == slotCreating {
				creating = true
				break
			}
		}
		progress := p.progress
		p.mu.Unlock()

		if !creating {
			break
		}
		select {
		case <-progress:
		case <-ctx.Done():
			p.logger.Warn("closing with unsettled creations", "error", ctx.Err())
			return
		}
	}

	p.mu.Lock()
	var entries []*entry
	for i := range p.slots {
		if p.slots[i].state == slotReady {
			entries = append(entries, p.slots[i].entry)
			p.recordLocked("closed", i, "")
		}
		p.slots[i] = slot{}
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			if err := e.authenticator.Logout(ctx); err != nil {
				p.logger.Warn("close logout failed", "token", tokenPrefix(e.token), "error", err)
			}
		}(e)
	}
	wg.Wait()

	p.logger.Info("session pool closed", "entries", len(entries))
}

// Stats returns a point-in-time occupancy snapshot.
func (p *Pool) Stats() Stats {
	now := time.Now()
	margin := p.cfg.ExpiryMargin()

	p.mu.Lock()
	defer p.mu.Unlock()

	st := Stats{Capacity: p.cfg.MaxSize}
	for _, s := range p.slots {
		switch s.state {
		case slotCreating:
			st.InFlight++
		case slotReady:
			st.Ready++
			e := s.entry
			switch {
			case e.inUse:
				st.Leased++
			case e.refreshing:
				// counted as ready only; neither leasable nor expired
			case now.After(e.expiresAt):
				st.IdleExpired++
			case e.expiresAt.After(now.Add(margin)):
				st.IdleAvailable++
			}
		}
	}
	return st
}

// leaseIdleLocked hands out the first idle entry (slot order) that stays
// fresh beyond the expiry margin. Caller holds p.mu.
func (p *Pool) leaseIdleLocked() *Session {
	deadline := time.Now().Add(p.cfg.ExpiryMargin())
	for i := range p.slots {
		s := p.slots[i]
		if s.state != slotReady {
			continue
		}
		e := s.entry
		if e.inUse || e.refreshing || !e.expiresAt.After(deadline) {
			continue
		}
		e.inUse = true
		p.recordLocked("leased", i, "")
		return e.leaseView()
	}
	return nil
}

// freeSlotLocked returns the lowest-numbered empty slot index, or -1 when
// every slot holds an entry or an in-flight creation. Caller holds p.mu.
func (p *Pool) freeSlotLocked() int {
	for i := range p.slots {
		if p.slots[i].state == slotEmpty {
			return i
		}
	}
	return -1
}

// createSlot runs the handshake for a slot the caller already claimed
// (state slotCreating). On success the entry is installed and, when lease is
// set, returned leased to the caller. On failure the slot reverts to empty
// and the error goes to this caller alone. Either way the settle is
// broadcast so waiters re-evaluate.
func (p *Pool) createSlot(ctx context.Context, idx int, lease bool) (*Session, error) {
	a := p.newAuth()

	err := a.Login(ctx)
	var token, conv string
	if err == nil {
		token, err = a.AccessToken(ctx)
		conv, _ = a.ConversationID()
	}

	p.mu.Lock()
	if err != nil {
		p.slots[idx] = slot{}
		p.recordLocked("create_failed", idx, err.Error())
		p.broadcastLocked()
		p.mu.Unlock()
		return nil, err
	}

	if p.closed {
		// Shutdown began while the handshake was in flight. Discard the
		// fresh session instead of leasing it out of a closing pool.
		p.slots[idx] = slot{}
		p.broadcastLocked()
		p.mu.Unlock()
		if lerr := a.Logout(ctx); lerr != nil {
			p.logger.Warn("logout of session created during shutdown failed", "error", lerr)
		}
		return nil, ErrShuttingDown
	}

	e := &entry{
		authenticator:  a,
		token:          token,
		conversationID: conv,
		inUse:          lease,
		createdAt:      time.Now(),
		expiresAt:      a.ExpiresAt(),
	}
	p.slots[idx] = slot{state: slotReady, entry: e}
	p.recordLocked("created", idx, "")
	p.broadcastLocked()
	var sess *Session
	if lease {
		sess = e.leaseView()
	}
	p.mu.Unlock()

	if !lease {
		return nil, nil
	}
	return sess, nil
}

// broadcastLocked wakes every waiter. Caller holds p.mu.
func (p *Pool) broadcastLocked() {
	close(p.progress)
	p.progress = make(chan struct{})
}

func (p *Pool) recordLocked(event string, slot int, detail string) {
	if p.rec != nil {
		p.rec.Record(event, slot, detail)
	}
}

func (e *entry) leaseView() *Session {
	return &Session{
		Token:          e.token,
		ConversationID: e.conversationID,
		ExpiresAt:      e.expiresAt,
	}
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
