// Package decisionlog persists every preflight verdict to SQLite so
// operators can tune thresholds against real traffic without re-running
// historical files. Writes are asynchronous and batched; a full buffer drops
// entries rather than slowing uploads down.
package decisionlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/crible/docgate"
)

// Schema for the preflight_decisions table. Apply via dbopen.WithSchema or
// Store.Init().
const Schema = `
CREATE TABLE IF NOT EXISTS preflight_decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sha256 TEXT NOT NULL,
	filename TEXT,
	format TEXT,
	ok INTEGER NOT NULL,
	triggers TEXT,
	details TEXT,
	duration_ms INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_sha ON preflight_decisions(sha256);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON preflight_decisions(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_rejected ON preflight_decisions(ok) WHERE ok = 0;
`

// Decision is one logged verdict.
type Decision struct {
	ID         int64           `json:"id"`
	SHA256     string          `json:"sha256"`
	Filename   string          `json:"filename,omitempty"`
	Format     string          `json:"format,omitempty"`
	OK         bool            `json:"ok"`
	Triggers   []string        `json:"triggers,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store persists decisions asynchronously in batches.
type Store struct {
	db   *sql.DB
	ch   chan *Decision
	done chan struct{}
	once sync.Once
}

// NewStore creates a store backed by the given database and starts its
// flush goroutine.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Decision, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the preflight_decisions table if needed.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// Record converts a verdict into a decision row and queues it.
// Non-blocking; drops if the buffer is full.
func (s *Store) Record(v *docgate.Verdict) {
	d := &Decision{
		OK:        v.OK,
		Triggers:  v.Triggers,
		CreatedAt: time.Now().UTC(),
	}
	if det := v.Details; det != nil {
		d.SHA256 = det.SHA256
		d.Filename = det.Filename
		d.Format = string(det.Format)
		d.DurationMs = det.EvalMillis
		if raw, err := json.Marshal(det); err == nil {
			d.Details = raw
		}
	}
	s.RecordAsync(d)
}

// RecordAsync queues a decision for persistence.
func (s *Store) RecordAsync(d *Decision) {
	select {
	case s.ch <- d:
	default:
		// buffer full, drop rather than apply backpressure to uploads
	}
}

// Close drains the buffer and stops the flush goroutine.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return nil
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Decision, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case d, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, d)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Decision) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("decision log: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO preflight_decisions
		(sha256, filename, format, ok, triggers, details, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("decision log: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, d := range batch {
		okInt := 0
		if d.OK {
			okInt = 1
		}
		if _, err := stmt.Exec(
			d.SHA256, d.Filename, d.Format, okInt,
			strings.Join(d.Triggers, ","), string(d.Details),
			d.DurationMs, d.CreatedAt.Unix(),
		); err != nil {
			slog.Error("decision log: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("decision log: commit", "error", err)
	}
}

// Recent returns the latest decisions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, sha256, filename, format, ok, triggers, details, duration_ms, created_at
		FROM preflight_decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var okInt int
		var triggers, details string
		var createdAt int64
		if err := rows.Scan(&d.ID, &d.SHA256, &d.Filename, &d.Format, &okInt, &triggers, &details, &d.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		d.OK = okInt == 1
		if triggers != "" {
			d.Triggers = strings.Split(triggers, ",")
		}
		if details != "" {
			d.Details = json.RawMessage(details)
		}
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// RejectRate returns the fraction of rejected decisions in the last window.
// Used by the operator endpoint to watch threshold drift.
func (s *Store) RejectRate(ctx context.Context, window time.Duration) (float64, int, error) {
	since := time.Now().UTC().Add(-window).Unix()
	var total, rejected int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(CASE WHEN ok = 0 THEN 1 ELSE 0 END), 0)
		FROM preflight_decisions WHERE created_at >= ?`, since).Scan(&total, &rejected)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(rejected) / float64(total), total, nil
}
