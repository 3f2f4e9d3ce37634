package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

func TestTestClockWaitUntilReleasesOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTestClock(start)
	scope := cancel.NewRoot()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitUntil(scope, start.Add(time.Hour))
	}()

	select {
	case <-done:
		t.Fatal("WaitUntil returned before the target time")
	case <-time.After(20 * time.Millisecond):
	}

	c.SetCurrentTime(start.Add(time.Hour))
	require.NoError(t, <-done)
}

func TestTestClockWaitUntilPastTimeReturnsImmediately(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTestClock(start)
	scope := cancel.NewRoot()
	require.NoError(t, c.WaitUntil(scope, start.Add(-time.Hour)))
}

func TestTestClockWaitUntilCanceledReturnsCancelled(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTestClock(start)
	scope := cancel.NewRoot()

	done := make(chan error, 1)
	go func() {
		done <- c.WaitUntil(scope, start.Add(time.Hour))
	}()
	scope.Cancel(nil)
	err := <-done
	assert.True(t, wferrors.IsCancelled(err))
}

func TestTestClockReleasesInTargetThenFIFOOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewTestClock(start)
	scope := cancel.NewRoot()

	var order []int
	orderCh := make(chan int, 3)

	register := func(id int, target time.Time) {
		go func() {
			_ = c.WaitUntil(scope, target)
			orderCh <- id
		}()
	}

	register(1, start.Add(time.Hour))
	time.Sleep(5 * time.Millisecond)
	register(2, start.Add(time.Hour))
	time.Sleep(5 * time.Millisecond)
	register(3, start.Add(30 * time.Minute))

	time.Sleep(10 * time.Millisecond)
	c.SetCurrentTime(start.Add(time.Hour))

	for i := 0; i < 3; i++ {
		order = append(order, <-orderCh)
	}
	assert.Equal(t, []int{3, 1, 2}, order)
}

func TestMaxTimeBlocksUntilCancel(t *testing.T) {
	c := NewTestClock(time.Now())
	scope := cancel.NewRoot()

	done := make(chan error, 1)
	go func() { done <- c.WaitUntil(scope, MaxTime) }()

	select {
	case <-done:
		t.Fatal("WaitUntil(MaxTime) returned without cancellation")
	case <-time.After(20 * time.Millisecond):
	}
	scope.Cancel(nil)
	assert.True(t, wferrors.IsCancelled(<-done))
}
