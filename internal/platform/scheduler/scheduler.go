// Package scheduler runs named periodic refresh tasks with an explicit lifetime.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrStopped is returned by RunNow once Stop has been called.
var ErrStopped = errors.New("scheduler stopped")

// Task is a unit of periodic work. ctx is cancelled when the scheduler stops.
type Task func(ctx context.Context)

type entry struct {
	id   cron.EntryID
	task Task
}

// Scheduler owns a set of named periodic tasks.
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]entry
	started bool
	manual  sync.WaitGroup // RunNow calls in flight
}

// New creates a stopped Scheduler.
func New() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]entry),
	}
}

// Every registers task under name, replacing any task with the same name.
// Periods are rounded down to whole seconds; anything under a second runs every second.
func (s *Scheduler) Every(name string, period time.Duration, task Task) error {
	if task == nil {
		return fmt.Errorf("register %s: nil task", name)
	}
	if period <= 0 {
		return fmt.Errorf("register %s: period must be positive, got %v", name, period)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.entries[name]; ok {
		s.cron.Remove(old.id)
	}
	id := s.cron.Schedule(cron.Every(period), cron.FuncJob(func() {
		if s.ctx.Err() != nil {
			return
		}
		started := time.Now()
		task(s.ctx)
		slog.Debug("scheduled task finished", "task", name, "elapsed", time.Since(started))
	}))
	s.entries[name] = entry{id: id, task: task}
	return nil
}

// Remove unregisters name. Removing an unknown name is a no-op.
func (s *Scheduler) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		s.cron.Remove(e.id)
		delete(s.entries, name)
	}
}

// RunNow executes the named task synchronously, outside its schedule.
// Stop waits for it like any scheduled run.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return ErrStopped
	}
	e, ok := s.entries[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown task %q", name)
	}
	s.manual.Add(1)
	s.mu.Unlock()

	defer s.manual.Done()
	e.task(s.ctx)
	return nil
}

// Names lists registered task names.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	return out
}

// Start begins running tasks on their schedules.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.ctx.Err() != nil {
		return
	}
	s.started = true
	s.cron.Start()
	slog.Info("scheduler started", "tasks", len(s.entries))
}

// Stop cancels the task context and waits for running tasks to return.
// No task runs after Stop returns. A stopped scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	<-s.cron.Stop().Done()
	s.manual.Wait()
	slog.Info("scheduler stopped")
}
