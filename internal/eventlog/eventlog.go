// Package eventlog provides SQLite-backed append-only logging of processed
// tap outcomes.
//
// Every processed tap leaves one row, so operators can inspect the outcome
// trail after the fact. The log is observational: losing it never loses
// attendance, which is the queue's job.
//
// Database configuration mirrors the single-writer control model:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
package eventlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Event is one logged processing outcome.
type Event struct {
	ID            int64
	Identifier    string
	Name          string
	Timestamp     string
	Attendance    string
	Registration  string
	Outcome       string
	CorrelationID string
	RecordedAt    int64 // monotonic millis at log time
}

// Log is the append-only outcome log.
type Log struct {
	db *sql.DB
}

// Open creates or opens the log database at path. Idempotent.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect event log: %w", err)
	}

	// SQLite supports one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply event log schema: %w", err)
	}

	return &Log{db: db}, nil
}

// Close closes the database connection.
func (l *Log) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Append inserts one event. Events carrying a correlation id are inserted
// idempotently: a duplicate id is silently ignored so a replayed
// confirmation cannot double-log.
func (l *Log) Append(ctx context.Context, e Event) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events
		(uid, name, timestamp, attendance_status, registration, outcome, correlation_id, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		e.Identifier,
		e.Name,
		e.Timestamp,
		e.Attendance,
		e.Registration,
		e.Outcome,
		e.CorrelationID,
		e.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (l *Log) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, uid, name, timestamp, attendance_status, registration, outcome, correlation_id, recorded_at
		FROM events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.Identifier, &e.Name, &e.Timestamp,
			&e.Attendance, &e.Registration, &e.Outcome,
			&e.CorrelationID, &e.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// CountByOutcome returns the number of logged events per outcome name.
func (l *Log) CountByOutcome(ctx context.Context) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*) FROM events GROUP BY outcome
	`)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[outcome] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	return counts, nil
}
