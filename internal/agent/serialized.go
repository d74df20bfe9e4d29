package agent

import (
	"context"
	"sync"

	"github.com/quantumlife/meetingagent/internal/core"
)

// Runner executes one cycle
type Runner interface {
	Run(ctx context.Context) core.RunStatistics
}

// Serialized guarantees at most one cycle at a time across all callers
// (scheduler ticks and manual triggers alike)
type Serialized struct {
	runner Runner

	mu      sync.Mutex
	running bool
	last    *core.RunStatistics
	wg      sync.WaitGroup
}

// NewSerialized wraps a runner
func NewSerialized(runner Runner) *Serialized {
	return &Serialized{runner: runner}
}

// TryRun runs a cycle unless one is in progress, in which case it returns
// core.ErrRunInProgress immediately
func (s *Serialized) TryRun(ctx context.Context) (core.RunStatistics, error) {
	if !s.acquire() {
		return core.RunStatistics{}, core.ErrRunInProgress
	}
	return s.run(ctx), nil
}

// TryStart is TryRun in the background. The slot is claimed before it
// returns, so a nil error means this caller's cycle is the one running.
func (s *Serialized) TryStart(ctx context.Context) error {
	if !s.acquire() {
		return core.ErrRunInProgress
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
	return nil
}

// Wait blocks until background cycles started by TryStart have finished
func (s *Serialized) Wait() {
	s.wg.Wait()
}

func (s *Serialized) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Serialized) run(ctx context.Context) core.RunStatistics {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stats := s.runner.Run(ctx)

	s.mu.Lock()
	s.last = &stats
	s.mu.Unlock()

	return stats
}

// Running reports whether a cycle is in progress
func (s *Serialized) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Last returns the most recent finished cycle
func (s *Serialized) Last() (core.RunStatistics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return core.RunStatistics{}, false
	}
	return *s.last, true
}
