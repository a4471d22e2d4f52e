package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Event is one pool lifecycle occurrence: created, leased, released,
// refreshed, refresh_failed, expired, shrunk, closed, create_failed.
type Event struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Slot   int       `json:"slot"`
	Detail string    `json:"detail,omitempty"`
}

// Journal is an append-only audit trail of pool events. Writes are
// asynchronous and dropped when the buffer is full: the journal must never
// slow the pool down. Nothing is ever read back into pool state.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger

	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closeOnce sync.Once
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS pool_events (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	at     DATETIME NOT NULL,
	event  TEXT NOT NULL,
	slot   INTEGER NOT NULL,
	detail TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pool_events_at ON pool_events(at);
`

const writeBufferSize = 256

// dsnWithPragmas applies WAL and busy-timeout pragmas per connection.
func dsnWithPragmas(dbPath string) string {
	return dbPath + "?_pragma=busy_timeout(15000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)"
}

// isBusyLock reports whether err indicates SQLITE_BUSY, wrapped or not.
func isBusyLock(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "database is locked") || strings.Contains(s, "SQLITE_BUSY")
}

// retryOnBusy runs fn and retries on SQLITE_BUSY with exponential backoff.
func retryOnBusy(fn func() error) error {
	const maxAttempts = 4
	backoff := 25 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusyLock(lastErr) {
			return lastErr
		}
		if attempt < maxAttempts-1 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	return lastErr
}

// Open opens (or creates) the journal database and starts the writer.
func Open(dbPath string, logger *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", dsnWithPragmas(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logger,
		ch:     make(chan Event, writeBufferSize),
		done:   make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// Record enqueues an event. Never blocks; drops when the buffer is full.
func (j *Journal) Record(event string, slot int, detail string) {
	if j == nil {
		return
	}
	e := Event{At: time.Now().UTC(), Event: event, Slot: slot, Detail: detail}
	select {
	case j.ch <- e:
	case <-j.done:
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (j *Journal) Dropped() uint64 {
	return j.dropped.Load()
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.Query(
		`SELECT id, at, event, slot, detail FROM pool_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.At, &e.Event, &e.Slot, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Close drains buffered events and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.closeOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
	})
	return j.db.Close()
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for {
		select {
		case e := <-j.ch:
			j.insert(e)
		case <-j.done:
			for {
				select {
				case e := <-j.ch:
					j.insert(e)
				default:
					return
				}
			}
		}
	}
}

func (j *Journal) insert(e Event) {
	err := retryOnBusy(func() error {
		_, err := j.db.Exec(
			`INSERT INTO pool_events (at, event, slot, detail) VALUES (?, ?, ?, ?)`,
			e.At, e.Event, e.Slot, e.Detail)
		return err
	})
	if err != nil && j.logger != nil {
		j.logger.Warn("journal write failed", "event", e.Event, "error", err)
	}
}
