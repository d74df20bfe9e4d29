// Package ledger provides the durable per-email outcome record that keeps the
// agent from acting on the same email twice. Entries are upserted by email id
// and never deleted.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
)

// Store manages the processed_emails table
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// NewStore creates a new ledger store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `
	SELECT email_id, email_subject, email_sender, processed_at, meeting_created, failure_reason, event_id
	FROM processed_emails`

// Exists reports whether the email id has been resolved before
func (s *Store) Exists(ctx context.Context, emailID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM processed_emails WHERE email_id = ?", emailID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return true, nil
}

// Lookup returns the entry for an email id
func (s *Store) Lookup(ctx context.Context, emailID string) (*core.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE email_id = ?", emailID)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", core.ErrLedgerEntryNotFound, emailID)
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return entry, nil
}

// Record writes the entry, replacing any previous entry for the same email id
func (s *Store) Record(ctx context.Context, entry core.LedgerEntry) error {
	if entry.EmailID == "" {
		return fmt.Errorf("ledger entry without email id")
	}
	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO processed_emails
			(email_id, email_subject, email_sender, processed_at, meeting_created, failure_reason, event_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.EmailID, entry.Subject, entry.Sender,
		entry.ProcessedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(entry.Committed), nullString(entry.Reason), nullString(entry.EventID))
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

// QueryOptions for listing entries
type QueryOptions struct {
	Committed *bool     // Only committed (true) or only rejected (false) entries
	Since     time.Time // Entries processed at or after this time
	Limit     int       // Maximum entries to return
	Offset    int       // Skip first N entries
}

// List returns entries newest first
func (s *Store) List(ctx context.Context, opts QueryOptions) ([]core.LedgerEntry, error) {
	query := selectColumns + " WHERE 1=1"
	var args []interface{}

	if opts.Committed != nil {
		query += " AND meeting_created = ?"
		args = append(args, boolToInt(*opts.Committed))
	}
	if !opts.Since.IsZero() {
		query += " AND processed_at >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}

	query += " ORDER BY processed_at DESC, email_id"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []core.LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	return entries, rows.Err()
}

// Stats summarizes the ledger
type Stats struct {
	TotalProcessed  int `json:"total_processed"`
	MeetingsCreated int `json:"meetings_created"`
}

// Rejected returns how many emails did not produce a meeting
func (s Stats) Rejected() int {
	return s.TotalProcessed - s.MeetingsCreated
}

// Stats returns aggregate counts
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN meeting_created = 1 THEN 1 ELSE 0 END), 0)
		FROM processed_emails
	`).Scan(&stats.TotalProcessed, &stats.MeetingsCreated)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &stats, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*core.LedgerEntry, error) {
	var (
		entry                            core.LedgerEntry
		subject, sender, reason, eventID sql.NullString
		processedAt                      string
		committed                        int
	)

	if err := row.Scan(&entry.EmailID, &subject, &sender, &processedAt, &committed, &reason, &eventID); err != nil {
		return nil, err
	}

	entry.Subject = subject.String
	entry.Sender = sender.String
	entry.Reason = reason.String
	entry.EventID = eventID.String
	entry.Committed = committed == 1
	entry.ProcessedAt = parseTimestamp(processedAt)

	return &entry, nil
}

// parseTimestamp accepts RFC3339 and the naive ISO form older databases carry
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
