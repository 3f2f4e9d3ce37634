package cancel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancelClosesDone(t *testing.T) {
	s := NewRoot()
	assert.False(t, s.IsCanceled())
	s.Cancel(nil)
	assert.True(t, s.IsCanceled())
	select {
	case <-s.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
	require.Error(t, s.Err())
}

func TestCancelIsIdempotent(t *testing.T) {
	s := NewRoot()
	called := 0
	s.OnCancel(func() { called++ })
	s.Cancel(nil)
	s.Cancel(nil)
	assert.Equal(t, 1, called)
}

func TestCancelPropagatesToChildren(t *testing.T) {
	root := NewRoot()
	child := root.NewChild()
	grandchild := child.NewChild()

	root.Cancel(nil)
	assert.True(t, child.IsCanceled())
	assert.True(t, grandchild.IsCanceled())
}

func TestNewChildOfAlreadyCanceledScopeIsCanceledImmediately(t *testing.T) {
	root := NewRoot()
	root.Cancel(nil)
	child := root.NewChild()
	assert.True(t, child.IsCanceled())
}

func TestOnCancelAfterCancelRunsImmediately(t *testing.T) {
	s := NewRoot()
	s.Cancel(nil)
	called := false
	s.OnCancel(func() { called = true })
	assert.True(t, called)
}

func TestCancelingChildDoesNotCancelParent(t *testing.T) {
	root := NewRoot()
	child := root.NewChild()
	child.Cancel(nil)
	assert.False(t, root.IsCanceled())
}
