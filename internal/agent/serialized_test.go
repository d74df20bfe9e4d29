package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/quantumlife/meetingagent/internal/core"
)

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) core.RunStatistics {
	close(r.started)
	<-r.release
	return core.RunStatistics{RunID: "blocked", Committed: 2}
}

func TestSerializedRejectsOverlap(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSerialized(r)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.TryRun(context.Background()); err != nil {
			t.Errorf("first TryRun error = %v", err)
		}
	}()
	<-r.started

	if !s.Running() {
		t.Error("Running() = false during cycle")
	}
	if _, err := s.TryRun(context.Background()); !errors.Is(err, core.ErrRunInProgress) {
		t.Errorf("overlapping TryRun error = %v, want %v", err, core.ErrRunInProgress)
	}

	close(r.release)
	<-done

	if s.Running() {
		t.Error("Running() = true after cycle")
	}
	last, ok := s.Last()
	if !ok || last.RunID != "blocked" {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}

func TestSerializedLastEmpty(t *testing.T) {
	s := NewSerialized(&blockingRunner{})
	if _, ok := s.Last(); ok {
		t.Error("Last() ok before any run")
	}
}

func TestSerializedTryStart(t *testing.T) {
	r := &blockingRunner{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSerialized(r)

	if err := s.TryStart(context.Background()); err != nil {
		t.Fatalf("TryStart() error = %v", err)
	}
	<-r.started

	if err := s.TryStart(context.Background()); !errors.Is(err, core.ErrRunInProgress) {
		t.Errorf("second TryStart() error = %v, want %v", err, core.ErrRunInProgress)
	}

	close(r.release)
	s.Wait()

	if s.Running() {
		t.Error("Running() = true after Wait")
	}
	if last, ok := s.Last(); !ok || last.Committed != 2 {
		t.Errorf("Last() = %+v, %v", last, ok)
	}
}
