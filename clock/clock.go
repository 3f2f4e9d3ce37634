// Package clock provides the abstract "now" and cancellable wait-until that
// every other component consumes instead of touching time.Now or time.Timer
// directly. RealClock is a thin wrapper around github.com/facebookgo/clock;
// TestClock is the deterministic, goroutine-safe variant used by tests and
// the workflowtest harness.
package clock

import (
	"sync"
	"time"

	fbclock "github.com/facebookgo/clock"

	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// MaxTime stands in for "never" — §4.1/§4.5 specify that registering or
// waiting on this value must never complete and must never be tracked by the
// activation-dates manager.
var MaxTime = time.Unix(1<<62, 0).UTC()

// Clock is the contract every component depends on in place of the wall
// clock. WaitUntil blocks the calling goroutine until t is reached or scope
// is canceled, whichever happens first.
type Clock interface {
	Now() time.Time
	WaitUntil(scope *cancel.Scope, t time.Time) error
}

// RealClock wraps the machine's wall clock via facebookgo/clock, which is
// already the teacher's dependency of choice for exactly this seam.
type RealClock struct {
	underlying fbclock.Clock
}

// NewRealClock returns a Clock backed by the real wall clock.
func NewRealClock() *RealClock {
	return &RealClock{underlying: fbclock.New()}
}

func (c *RealClock) Now() time.Time {
	return c.underlying.Now()
}

func (c *RealClock) WaitUntil(scope *cancel.Scope, t time.Time) error {
	if t.Equal(MaxTime) || t.After(MaxTime) {
		<-scope.Done()
		return wferrors.Cancelled("WaitUntil canceled")
	}

	d := t.Sub(c.underlying.Now())
	if d <= 0 {
		return nil
	}
	timer := c.underlying.Timer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-scope.Done():
		return wferrors.Cancelled("WaitUntil canceled")
	}
}

type waiter struct {
	seq     uint64
	target  time.Time
	release chan struct{}
}

// TestClock is a manually-advanced Clock. SetCurrentTime both moves Now()
// forward and releases every pending WaitUntil whose target has been
// reached, in (target, registration-order) order, so equal-target waiters
// observe FIFO release exactly as §4.1 requires. Safe to call from any
// goroutine.
type TestClock struct {
	mu      sync.Mutex
	now     time.Time
	nextSeq uint64
	waiters []*waiter
}

// NewTestClock creates a TestClock starting at the given time.
func NewTestClock(start time.Time) *TestClock {
	return &TestClock{now: start}
}

func (c *TestClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetCurrentTime advances the clock to t (must not be before the current
// time) and releases every satisfied waiter.
func (c *TestClock) SetCurrentTime(t time.Time) {
	c.mu.Lock()
	if t.Before(c.now) {
		c.mu.Unlock()
		return
	}
	c.now = t

	var satisfied []*waiter
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.target.After(t) {
			satisfied = append(satisfied, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	sortWaitersByTargetThenSeq(satisfied)
	c.mu.Unlock()

	for _, w := range satisfied {
		close(w.release)
	}
}

func sortWaitersByTargetThenSeq(ws []*waiter) {
	for i := 1; i < len(ws); i++ {
		for j := i; j > 0; j-- {
			a, b := ws[j-1], ws[j]
			if a.target.After(b.target) || (a.target.Equal(b.target) && a.seq > b.seq) {
				ws[j-1], ws[j] = ws[j], ws[j-1]
			} else {
				break
			}
		}
	}
}

func (c *TestClock) WaitUntil(scope *cancel.Scope, t time.Time) error {
	if t.Equal(MaxTime) || t.After(MaxTime) {
		<-scope.Done()
		return wferrors.Cancelled("WaitUntil canceled")
	}

	c.mu.Lock()
	if !t.After(c.now) {
		c.mu.Unlock()
		return nil
	}
	w := &waiter{seq: c.nextSeq, target: t, release: make(chan struct{})}
	c.nextSeq++
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case <-w.release:
		return nil
	case <-scope.Done():
		c.removeWaiter(w)
		return wferrors.Cancelled("WaitUntil canceled")
	}
}

func (c *TestClock) removeWaiter(target *waiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == target {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
