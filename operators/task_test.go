package operators

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBiker/WorkflowsCore-sub000/activation"
	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

func immediate(v interface{}) Task {
	return Task{Run: func(ctx context.Context, s *cancel.Scope) (interface{}, error) {
		return v, nil
	}}
}

func blocking() Task {
	return Task{Run: func(ctx context.Context, s *cancel.Scope) (interface{}, error) {
		<-s.Done()
		return nil, wferrors.Cancelled("abandoned")
	}}
}

func TestWaitForAnyReturnsFirstReady(t *testing.T) {
	idx, v, err := WaitForAny(context.Background(), cancel.NewRoot(), blocking(), immediate("winner"))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "winner", v)
}

func TestWaitForAnyPrefersNonOptionalOnTie(t *testing.T) {
	ready := make(chan struct{})
	optional := Task{Optional: true, Run: func(ctx context.Context, s *cancel.Scope) (interface{}, error) {
		<-ready
		return "optional", nil
	}}
	required := Task{Run: func(ctx context.Context, s *cancel.Scope) (interface{}, error) {
		<-ready
		return "required", nil
	}}

	go close(ready)
	// Give ready time to close before WaitForAny starts the branches, so
	// both branches return at once and the tie-break logic actually runs.
	time.Sleep(10 * time.Millisecond)

	idx, v, err := WaitForAny(context.Background(), cancel.NewRoot(), optional, required)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "required", v)
}

func TestWaitForDateRegistersAndClearsActivation(t *testing.T) {
	start := time.Now()
	c := clock.NewTestClock(start)
	scope := cancel.NewRoot()
	mgr := activation.New()

	done := make(chan error, 1)
	go func() {
		done <- WaitForDate(context.Background(), scope, c, mgr, start.Add(time.Hour))
	}()

	select {
	case <-done:
		t.Fatal("returned before the clock advanced")
	case <-time.After(20 * time.Millisecond):
	}
	next, ok := mgr.NextActivationDate()
	require.True(t, ok)
	assert.True(t, next.Equal(start.Add(time.Hour)))

	c.SetCurrentTime(start.Add(time.Hour))
	require.NoError(t, <-done)
	_, ok = mgr.NextActivationDate()
	assert.False(t, ok)
}

type fakeActionSource struct {
	executed map[string]bool
	values   *namedvalues.Values
}

func (f *fakeActionSource) WaitForAction(ctx context.Context, scope *cancel.Scope, name string) (*namedvalues.Values, error) {
	return f.values, nil
}

func (f *fakeActionSource) WasActionExecuted(name string) bool {
	return f.executed[name]
}

func TestWaitForActionWithWasExecutedCheckShortCircuits(t *testing.T) {
	src := &fakeActionSource{executed: map[string]bool{"approve": true}, values: namedvalues.New()}
	v, err := WaitForActionWithWasExecutedCheck(context.Background(), cancel.NewRoot(), src, "approve")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestThenSequencesTasks(t *testing.T) {
	v, err := Then(context.Background(), cancel.NewRoot(), immediate(1), func(result interface{}) Task {
		return immediate(result.(int) + 1)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestWaitWithTimeoutReturnsTimeoutError(t *testing.T) {
	start := time.Now()
	c := clock.NewTestClock(start)
	scope := cancel.NewRoot()

	done := make(chan struct {
		v   interface{}
		err error
	}, 1)
	go func() {
		v, err := WaitWithTimeout(context.Background(), scope, c, nil, start.Add(time.Minute), blocking())
		done <- struct {
			v   interface{}
			err error
		}{v, err}
	}()

	c.SetCurrentTime(start.Add(time.Minute))
	result := <-done
	assert.True(t, wferrors.IsTimeout(result.err))
}

func TestWaitWithTimeoutReturnsTaskResultWhenItWinsFirst(t *testing.T) {
	start := time.Now()
	c := clock.NewTestClock(start)
	scope := cancel.NewRoot()

	v, err := WaitWithTimeout(context.Background(), scope, c, nil, start.Add(time.Hour), immediate("done"))
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}
