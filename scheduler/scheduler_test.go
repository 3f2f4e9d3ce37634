package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExecutesInSubmissionOrder(t *testing.T) {
	s := New()
	defer s.Stop()

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		s.Run(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}
	<-done
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestRunSyncReturnsResult(t *testing.T) {
	s := New()
	defer s.Stop()

	err := s.RunSync(context.Background(), func() error { return nil })
	require.NoError(t, err)
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	s := New()
	ran := false
	s.Run(func() { ran = true })
	s.Stop()
	assert.True(t, ran)
	assert.True(t, s.Stopped())
}

func TestRunAfterStopIsNoop(t *testing.T) {
	s := New()
	s.Stop()
	called := false
	s.Run(func() { called = true })
	time.Sleep(10 * time.Millisecond)
	assert.False(t, called)
}

func TestWithSchedulerRoundTrips(t *testing.T) {
	s := New()
	defer s.Stop()
	ctx := WithScheduler(context.Background(), s)
	assert.Same(t, s, FromContext(ctx))
}
