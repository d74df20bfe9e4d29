// Package testutil provides shared testing utilities for the meeting agent.
package testutil

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/quantumlife/meetingagent/internal/ledger"
	"github.com/quantumlife/meetingagent/internal/storage"
)

// TestDB creates a migrated in-memory SQLite database.
// The database is closed when the test completes.
func TestDB(t *testing.T) *storage.DB {
	t.Helper()

	db, err := storage.Open(storage.Config{InMemory: true})
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

// TestLedger returns a ledger store over a fresh TestDB
func TestLedger(t *testing.T) *ledger.Store {
	t.Helper()
	return ledger.NewStore(TestDB(t).Conn())
}

// TestContext returns a context with a timeout for tests.
// The context is cancelled when the test completes.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RequireEnv returns the value of an environment variable.
// If the variable is not set, the test is skipped.
func RequireEnv(t *testing.T, key string) string {
	t.Helper()
	val := os.Getenv(key)
	if val == "" {
		t.Skipf("skipping: %s not set", key)
	}
	return val
}

// WaitFor polls cond until it holds, failing the test after timeout
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
