package monitor

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is the SQLite execution log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the execution log at path. ":memory:" gives a
// private in-memory log.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: the monitor is the only writer, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Write inserts the record of a started execution, or updates it with the
// outcome of an ended one.
func (s *Store) Write(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO executions
		(execution_id, parent_id, trace_id, component, message, purpose, count, state, timeout_ms, started_at, elapsed_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace_id, execution_id) DO UPDATE SET
			state = excluded.state,
			elapsed_ms = excluded.elapsed_ms,
			error = excluded.error
	`,
		r.ExecutionID,
		r.ParentID,
		r.TraceID,
		r.Component,
		r.Message,
		r.Purpose,
		r.Count,
		r.State,
		r.Timeout.Milliseconds(),
		r.Started.UTC().Format(time.RFC3339Nano),
		r.Elapsed.Milliseconds(),
		r.Error,
	)
	if err != nil {
		return fmt.Errorf("write execution %d: %w", r.ExecutionID, err)
	}
	return nil
}

// History returns up to limit records, most recent first. A limit of zero
// or less returns every record.
func (s *Store) History(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, parent_id, trace_id, component, message, purpose, count, state, timeout_ms, started_at, elapsed_ms, error
		FROM executions
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	return records, nil
}

// CountByState returns how many logged executions are in each state.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM executions GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("count executions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r         Record
		timeoutMS int64
		elapsedMS int64
		started   string
	)
	err := rows.Scan(
		&r.ExecutionID,
		&r.ParentID,
		&r.TraceID,
		&r.Component,
		&r.Message,
		&r.Purpose,
		&r.Count,
		&r.State,
		&timeoutMS,
		&started,
		&elapsedMS,
		&r.Error,
	)
	if err != nil {
		return Record{}, fmt.Errorf("scan execution: %w", err)
	}
	r.Timeout = time.Duration(timeoutMS) * time.Millisecond
	r.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Record{}, fmt.Errorf("parse started_at %q: %w", started, err)
	}
	return r, nil
}
