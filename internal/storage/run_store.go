package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantumlife/meetingagent/internal/core"
)

// RunStore keeps the history of finished run cycles
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a run history store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db.conn}
}

// RecordRun stores a finished cycle, assigning an id when it has none
func (s *RunStore) RecordRun(ctx context.Context, stats core.RunStatistics) error {
	if stats.RunID == "" {
		stats.RunID = uuid.New().String()
	}

	var finished interface{}
	if !stats.FinishedAt.IsZero() {
		finished = stats.FinishedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, started_at, finished_at, emails_checked, emails_filtered, meetings_created, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, stats.RunID, stats.StartedAt.UTC().Format(time.RFC3339Nano), finished,
		stats.Fetched, stats.Filtered, stats.Committed, stats.Errors)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (s *RunStore) Recent(ctx context.Context, limit int) ([]core.RunStatistics, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, emails_checked, emails_filtered, meetings_created, errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []core.RunStatistics
	for rows.Next() {
		var (
			r        core.RunStatistics
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.RunID, &started, &finished, &r.Fetched, &r.Filtered, &r.Committed, &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}
