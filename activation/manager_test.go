package activation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
)

func TestNextActivationDateEmpty(t *testing.T) {
	m := New()
	_, ok := m.NextActivationDate()
	assert.False(t, ok)
}

func TestNextActivationDateReportsMinimum(t *testing.T) {
	m := New()
	t1, t2 := cancel.NewRoot(), cancel.NewRoot()
	now := time.Now()
	m.AddActivationDate(t1, now.Add(time.Hour))
	m.AddActivationDate(t2, now.Add(time.Minute))

	min, ok := m.NextActivationDate()
	require.True(t, ok)
	assert.True(t, min.Equal(now.Add(time.Minute)))
}

func TestRemoveActivationDateUpdatesMinimum(t *testing.T) {
	m := New()
	t1, t2 := cancel.NewRoot(), cancel.NewRoot()
	now := time.Now()
	m.AddActivationDate(t1, now.Add(time.Minute))
	m.AddActivationDate(t2, now.Add(time.Hour))

	m.RemoveActivationDate(t1)
	min, ok := m.NextActivationDate()
	require.True(t, ok)
	assert.True(t, min.Equal(now.Add(time.Hour)))
}

func TestOnCancellationTokenCanceledRemovesRegistration(t *testing.T) {
	m := New()
	token := cancel.NewRoot()
	m.AddActivationDate(token, time.Now().Add(time.Hour))
	m.OnCancellationTokenCanceled(token)

	token.Cancel(nil)
	_, ok := m.NextActivationDate()
	assert.False(t, ok)
}

func TestMinChangedFiresOnNewMinimum(t *testing.T) {
	m := New()
	ch := m.MinChanged()
	m.AddActivationDate(cancel.NewRoot(), time.Now().Add(time.Hour))
	select {
	case <-ch:
	default:
		t.Fatal("expected MinChanged channel to fire")
	}
}
