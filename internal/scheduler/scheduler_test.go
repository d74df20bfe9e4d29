package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantumlife/meetingagent/internal/testutil"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	testutil.WaitFor(t, 2*time.Second, cond)
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(Config{})
	noop := func(ctx context.Context) error { return nil }

	tests := []struct {
		name    string
		task    *Task
		wantErr bool
	}{
		{"valid", IntervalTask("a", "A", time.Minute, noop), false},
		{"missing id", IntervalTask("", "A", time.Minute, noop), true},
		{"missing handler", IntervalTask("b", "B", time.Minute, nil), true},
		{"zero interval", IntervalTask("c", "C", 0, noop), true},
		{"duplicate", IntervalTask("a", "A", time.Minute, noop), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Register(tt.task)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	task, ok := s.GetTask("a")
	if !ok {
		t.Fatal("task a not registered")
	}
	if task.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", task.Timeout)
	}
	if task.NextRun == nil {
		t.Error("NextRun not set")
	}
}

func TestScheduler_RunsImmediately(t *testing.T) {
	s := NewScheduler(Config{})
	var runs int32

	s.Register(IntervalTask("cycle", "Cycle", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool { return atomic.LoadInt32(&runs) == 1 })
}

func TestScheduler_DelayedFirstRun(t *testing.T) {
	s := NewScheduler(Config{})
	var runs int32

	task := IntervalTask("cycle", "Cycle", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	task.Immediate = false
	s.Register(task)
	s.Start()

	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if n := atomic.LoadInt32(&runs); n != 0 {
		t.Errorf("runs = %d, want 0", n)
	}
}

func TestScheduler_NeverOverlaps(t *testing.T) {
	s := NewScheduler(Config{})
	var active, maxActive, runs int32

	s.Register(IntervalTask("cycle", "Cycle", time.Millisecond, func(ctx context.Context) error {
		n := atomic.AddInt32(&active, 1)
		for {
			m := atomic.LoadInt32(&maxActive)
			if n <= m || atomic.CompareAndSwapInt32(&maxActive, m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&active, -1)
		atomic.AddInt32(&runs, 1)
		return nil
	}))
	s.Start()

	// Triggers while busy must not start a parallel run
	for i := 0; i < 5; i++ {
		s.RunNow("cycle")
	}

	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 3 })
	s.Stop()

	if m := atomic.LoadInt32(&maxActive); m != 1 {
		t.Errorf("max concurrent runs = %d, want 1", m)
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(Config{})
	var runs int32

	task := IntervalTask("cycle", "Cycle", time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		return nil
	})
	task.Immediate = false
	s.Register(task)
	s.Start()
	defer s.Stop()

	if err := s.RunNow("cycle"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) == 1 })

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow(missing) error = nil")
	}
}

func TestScheduler_TracksErrors(t *testing.T) {
	s := NewScheduler(Config{})

	s.Register(IntervalTask("cycle", "Cycle", time.Hour, func(ctx context.Context) error {
		return errors.New("mailbox unavailable")
	}))
	s.Start()

	waitFor(t, func() bool {
		task, _ := s.GetTask("cycle")
		return task.ErrorCount == 1
	})
	s.Stop()

	task, _ := s.GetTask("cycle")
	if task.LastError != "mailbox unavailable" {
		t.Errorf("LastError = %q, want %q", task.LastError, "mailbox unavailable")
	}
	stats := s.GetStats()
	if stats.TotalErrors != 1 || stats.TotalRuns != 1 {
		t.Errorf("stats = %+v, want 1 run and 1 error", stats)
	}
}

func TestScheduler_StopCancelsRun(t *testing.T) {
	s := NewScheduler(Config{})
	started := make(chan struct{})

	s.Register(IntervalTask("cycle", "Cycle", time.Hour, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	s.Start()
	<-started

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	if s.GetStats().Started {
		t.Error("Started = true after Stop")
	}
}

func TestScheduler_StartTwice(t *testing.T) {
	s := NewScheduler(Config{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil")
	}
}
