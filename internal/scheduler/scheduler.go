// Package scheduler runs the agent's cycle on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quantumlife/meetingagent/internal/logging"
)

// Scheduler runs registered tasks, each in its own loop. A task never
// overlaps itself: the next run is measured from the end of the previous one.
type Scheduler struct {
	tasks   map[string]*Task
	running map[string]context.CancelFunc
	mu      sync.RWMutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	logger  *logging.Logger
}

// Config configures the scheduler
type Config struct {
	Logger *logging.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		tasks:   make(map[string]*Task),
		running: make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Task is a periodic job
type Task struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	Timeout    time.Duration `json:"timeout"`
	Immediate  bool          `json:"immediate"` // first run at start instead of after one interval
	Handler    TaskHandler   `json:"-"`
	LastRun    *time.Time    `json:"last_run,omitempty"`
	NextRun    *time.Time    `json:"next_run,omitempty"`
	RunCount   int64         `json:"run_count"`
	ErrorCount int64         `json:"error_count"`
	LastError  string        `json:"last_error,omitempty"`

	trigger chan struct{}
}

// TaskHandler is the function executed for a task
type TaskHandler func(ctx context.Context) error

// IntervalTask creates a task that runs every interval, starting immediately
func IntervalTask(id, name string, interval time.Duration, handler TaskHandler) *Task {
	return &Task{
		ID:        id,
		Name:      name,
		Interval:  interval,
		Immediate: true,
		Handler:   handler,
	}
}

// Register adds a task to the scheduler
func (s *Scheduler) Register(task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if task.Handler == nil {
		return fmt.Errorf("task handler is required")
	}
	if task.Interval <= 0 {
		return fmt.Errorf("task interval must be positive")
	}
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task already registered: %s", task.ID)
	}

	if task.Timeout == 0 {
		task.Timeout = 5 * time.Minute
	}
	task.trigger = make(chan struct{}, 1)

	next := time.Now()
	if !task.Immediate {
		next = next.Add(task.Interval)
	}
	task.NextRun = &next

	s.tasks[task.ID] = task

	if s.started {
		s.startTask(task)
	}

	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}

	s.started = true
	for _, task := range s.tasks {
		s.startTask(task)
	}

	return nil
}

// Stop cancels all loops and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = make(map[string]context.CancelFunc)
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()
}

// startTask starts a single task's loop; caller holds s.mu
func (s *Scheduler) startTask(task *Task) {
	taskCtx, cancel := context.WithCancel(s.ctx)
	s.running[task.ID] = cancel

	s.wg.Add(1)
	go s.runTaskLoop(taskCtx, task)
}

func (s *Scheduler) runTaskLoop(ctx context.Context, task *Task) {
	defer s.wg.Done()

	for {
		s.mu.RLock()
		wait := time.Until(*task.NextRun)
		s.mu.RUnlock()

		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-task.trigger:
			timer.Stop()
		case <-timer.C:
		}

		s.executeTask(ctx, task)
	}
}

func (s *Scheduler) executeTask(ctx context.Context, task *Task) {
	execCtx, cancel := context.WithTimeout(ctx, task.Timeout)
	defer cancel()

	now := time.Now()
	s.mu.Lock()
	task.LastRun = &now
	task.RunCount++
	s.mu.Unlock()

	err := task.Handler(execCtx)

	s.mu.Lock()
	if err != nil {
		task.ErrorCount++
		task.LastError = err.Error()
		s.logger.WithField("task", task.ID).Error("Task failed: %v", err)
	} else {
		task.LastError = ""
	}
	next := time.Now().Add(task.Interval)
	task.NextRun = &next
	s.mu.Unlock()
}

// RunNow wakes the task's loop so it runs without waiting for the interval.
// A trigger while the task is running is coalesced into one extra run.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	task, ok := s.tasks[taskID]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("task not found: %s", taskID)
	}

	select {
	case task.trigger <- struct{}{}:
	default:
	}
	return nil
}

// GetTask returns a snapshot of a task
func (s *Scheduler) GetTask(taskID string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// GetStats returns scheduler statistics
func (s *Scheduler) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Started:      s.started,
		TotalTasks:   len(s.tasks),
		RunningTasks: len(s.running),
	}
	for _, task := range s.tasks {
		stats.TotalRuns += task.RunCount
		stats.TotalErrors += task.ErrorCount
	}

	return stats
}

// Stats contains scheduler statistics
type Stats struct {
	Started      bool  `json:"started"`
	TotalTasks   int   `json:"total_tasks"`
	RunningTasks int   `json:"running_tasks"`
	TotalRuns    int64 `json:"total_runs"`
	TotalErrors  int64 `json:"total_errors"`
}
