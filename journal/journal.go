// Copyright 2026 The Mountbay Authors
// SPDX-License-Identifier: Apache-2.0

// Package journal persists completed pipeline events to SQLite.
//
// The daemon's in-memory event ring answers "what just happened"; the
// journal answers the same question across restarts. Every completed
// mount and unmount lands here through the engine's observer hook, and
// a background task prunes entries past the configured retention.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/mountbay/mountbay/lib/sqlitepool"
	"github.com/mountbay/mountbay/mount"
)

// Entry is one journaled pipeline event. It mirrors mount.Event plus
// the database row id.
type Entry struct {
	ID          int64         `json:"id"`
	At          time.Time     `json:"at"`
	Op          string        `json:"op"`
	Device      string        `json:"device"`
	ContentPath string        `json:"content_path"`
	Status      int           `json:"status"`
	Message     string        `json:"message"`
	Duration    time.Duration `json:"duration_ns"`
}

// Config holds the parameters for opening a journal.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative.
	PoolSize int

	// Logger receives operational messages. Required.
	Logger *slog.Logger
}

// Journal is the durable history of pipeline events, backed by a
// SQLite connection pool. Safe for concurrent use.
type Journal struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

const schema = `
	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		at           INTEGER NOT NULL,
		op           TEXT NOT NULL,
		device       TEXT NOT NULL,
		content_path TEXT NOT NULL,
		status       INTEGER NOT NULL,
		message      TEXT NOT NULL,
		duration_ns  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_at ON events(at);
`

// Open creates or opens the journal database. The schema is applied to
// every pool connection; all statements in it are idempotent.
func Open(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("journal: Logger is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     cfg.Path,
		PoolSize: poolSize,
		Logger:   cfg.Logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	return &Journal{pool: pool, logger: cfg.Logger}, nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (j *Journal) Close() error {
	return j.pool.Close()
}

// Record appends one pipeline event.
func (j *Journal) Record(ctx context.Context, event mount.Event) error {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO events (at, op, device, content_path, status, message, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				event.At.UnixNano(),
				event.Op,
				event.Device,
				event.ContentPath,
				event.Status,
				event.Message,
				int64(event.Duration),
			},
		})
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent returns the newest entries, most recent first. A limit of
// zero or less selects 50.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	conn, err := j.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer j.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		`SELECT id, at, op, device, content_path, status, message, duration_ns
		 FROM events ORDER BY id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entries = append(entries, Entry{
					ID:          stmt.ColumnInt64(0),
					At:          time.Unix(0, stmt.ColumnInt64(1)).UTC(),
					Op:          stmt.ColumnText(2),
					Device:      stmt.ColumnText(3),
					ContentPath: stmt.ColumnText(4),
					Status:      stmt.ColumnInt(5),
					Message:     stmt.ColumnText(6),
					Duration:    time.Duration(stmt.ColumnInt64(7)),
				})
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return entries, nil
}

// Prune deletes entries recorded before cutoff and reports how many
// were removed. Safe to call from a background ticker.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	conn, err := j.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	defer j.pool.Put(conn)

	err = sqlitex.Execute(conn, `DELETE FROM events WHERE at < ?`,
		&sqlitex.ExecOptions{Args: []any{cutoff.UnixNano()}})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}

	removed := conn.Changes()
	if removed > 0 {
		j.logger.Info("journal pruned", "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}
