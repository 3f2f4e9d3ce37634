// Package scheduler implements the single-threaded cooperative scheduler
// every workflow instance runs on: a dedicated goroutine draining a FIFO
// queue of closures, so that all state mutation for one workflow happens on
// one goroutine at a time without an explicit lock (§5).
package scheduler

import (
	"context"
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Scheduler owns one worker goroutine per workflow instance and funnels
// every task the workflow runs — action execution, operator callbacks,
// timer fires — through its FIFO queue, in submission order.
type Scheduler struct {
	tasks  chan func()
	done   chan struct{}
	once   sync.Once
	stopMu sync.Mutex
	stopped bool
}

// New starts a Scheduler's worker goroutine and returns it running.
func New() *Scheduler {
	s := &Scheduler{
		tasks: make(chan func(), 256),
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for task := range s.tasks {
		task()
	}
}

// Run submits f to run on the scheduler's goroutine and returns
// immediately, without waiting for f to execute. Submitting to a stopped
// Scheduler is a no-op.
func (s *Scheduler) Run(f func()) {
	s.stopMu.Lock()
	stopped := s.stopped
	s.stopMu.Unlock()
	if stopped {
		return
	}
	select {
	case s.tasks <- f:
	case <-s.done:
	}
}

// RunSync submits f and blocks until it has finished executing on the
// scheduler's goroutine, returning f's error. Calling RunSync from the
// scheduler's own goroutine would deadlock; callers already running on the
// scheduler's goroutine must call f directly instead.
func (s *Scheduler) RunSync(ctx context.Context, f func() error) error {
	result := make(chan error, 1)
	s.Run(func() {
		result <- f()
	})
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return wferrors.Cancelled("RunSync: context done before task ran")
	case <-s.done:
		return wferrors.Cancelled("RunSync: scheduler stopped before task ran")
	}
}

// Stop drains any remaining queued tasks, runs them, then shuts the worker
// goroutine down. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.stopMu.Lock()
		s.stopped = true
		s.stopMu.Unlock()
		close(s.tasks)
	})
	<-s.done
}

// Stopped reports whether Stop has been called.
func (s *Scheduler) Stopped() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.stopped
}

type schedulerKey struct{}

// WithScheduler returns a context carrying s, so deeply nested operator
// code can recover "the scheduler for the workflow I'm running under"
// without threading it through every function signature — mirroring how
// the distilled spec's ambient cancellation token is carried (§9), but for
// the scheduler handle instead.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, schedulerKey{}, s)
}

// FromContext recovers the Scheduler stored by WithScheduler, or nil.
func FromContext(ctx context.Context) *Scheduler {
	s, _ := ctx.Value(schedulerKey{}).(*Scheduler)
	return s
}
