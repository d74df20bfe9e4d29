package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/quantumlife/meetingagent/internal/core"
)

// testDB creates an in-memory database for testing
func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

// =============================================================================
// DB Tests
// =============================================================================

func TestDB_Open_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "processed_emails.db")

	db, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
}

func TestDB_Migrate(t *testing.T) {
	db, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Running migrate again should be idempotent
	if err := db.Migrate(); err != nil {
		t.Errorf("Migrate() second run error = %v", err)
	}

	for _, table := range []string{"processed_emails", "runs", "_migrations"} {
		var count int
		err := db.conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Errorf("checking table %s: %v", table, err)
		}
		if count == 0 {
			t.Errorf("table %s should exist after migration", table)
		}
	}

	var applied int
	db.conn.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&applied)
	if applied != 3 {
		t.Errorf("applied migrations = %d, want 3", applied)
	}

	// event_id column comes from the second migration
	if _, err := db.conn.Exec("UPDATE processed_emails SET event_id = 'x' WHERE 1 = 0"); err != nil {
		t.Errorf("event_id column missing: %v", err)
	}
}

func TestDB_Transaction_Rollback(t *testing.T) {
	db := testDB(t)

	err := db.Transaction(func(tx *sql.Tx) error {
		tx.Exec("INSERT INTO runs (id, started_at) VALUES (?, ?)", "rollback-run", "2025-01-01T00:00:00Z")
		return sql.ErrNoRows // Return an error to trigger rollback
	})
	if err == nil {
		t.Error("Transaction() should return error when function returns error")
	}

	var count int
	db.conn.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "rollback-run").Scan(&count)
	if count != 0 {
		t.Error("Transaction should have rolled back the insert")
	}
}

// =============================================================================
// RunStore Tests
// =============================================================================

func TestRunStore_RecordAndRecent(t *testing.T) {
	db := testDB(t)
	store := NewRunStore(db)
	ctx := context.Background()

	base := time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := store.RecordRun(ctx, core.RunStatistics{
			StartedAt:  base.Add(time.Duration(i) * time.Hour),
			FinishedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
			Fetched:    10 + i,
			Filtered:   2,
			Committed:  1,
			Errors:     i,
		})
		if err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].Fetched != 12 || runs[1].Fetched != 11 {
		t.Errorf("order = %d,%d, want newest first", runs[0].Fetched, runs[1].Fetched)
	}
	if runs[0].RunID == "" {
		t.Error("RunID not assigned")
	}
	if runs[0].Duration() != time.Minute {
		t.Errorf("Duration = %v, want 1m", runs[0].Duration())
	}
}

func TestRunStore_KeepsGivenID(t *testing.T) {
	db := testDB(t)
	store := NewRunStore(db)
	ctx := context.Background()

	stats := core.RunStatistics{RunID: "run-1", StartedAt: time.Now()}
	if err := store.RecordRun(ctx, stats); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	runs, _ := store.Recent(ctx, 0)
	if len(runs) != 1 || runs[0].RunID != "run-1" {
		t.Errorf("runs = %+v", runs)
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Errorf("FinishedAt = %v, want zero", runs[0].FinishedAt)
	}
}
