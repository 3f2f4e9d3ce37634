// Package cancel implements the cancellation-scope tree every workflow is
// built on: a root token per workflow, with nested scopes created by
// operators such as WaitForAny. Cancelling a scope cancels every descendant
// and runs its registered cleanup callbacks exactly once.
package cancel

import (
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Scope is a node in a cancellation tree. Its zero value is not usable;
// construct one with NewRoot or (*Scope).NewChild.
//
// A Scope doubles as the "token" the activation-dates manager keys
// registrations by: its pointer identity is the token identity referenced
// throughout §4.2 of the spec.
type Scope struct {
	mu       sync.Mutex
	parent   *Scope
	children map[*Scope]struct{}
	done     chan struct{}
	err      error
	canceled bool
	onCancel []func()
}

// NewRoot creates a new top-level cancellation scope, typically one per
// workflow instance.
func NewRoot() *Scope {
	return &Scope{
		children: make(map[*Scope]struct{}),
		done:     make(chan struct{}),
	}
}

// NewChild creates a scope nested under s. Cancelling s cancels the child;
// cancelling only the child never affects s.
func (s *Scope) NewChild() *Scope {
	child := &Scope{
		parent:   s,
		children: make(map[*Scope]struct{}),
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	canceled := s.canceled
	err := s.err
	if !canceled {
		s.children[child] = struct{}{}
	}
	s.mu.Unlock()

	if canceled {
		child.Cancel(err)
	}
	return child
}

// Done returns a channel closed when the scope is canceled, mirroring
// context.Context's idiom so operators can select on it directly.
func (s *Scope) Done() <-chan struct{} {
	return s.done
}

// IsCanceled reports whether the scope (or any ancestor) has been canceled.
func (s *Scope) IsCanceled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canceled
}

// Err returns the cause passed to Cancel, or nil if the scope is still live.
func (s *Scope) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel cancels the scope and every descendant, running their registered
// onCancel callbacks. Safe to call from any goroutine and safe to call more
// than once; only the first call has any effect.
func (s *Scope) Cancel(cause error) {
	if cause == nil {
		cause = wferrors.Cancelled("scope canceled")
	}

	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		return
	}
	s.canceled = true
	s.err = cause
	children := make([]*Scope, 0, len(s.children))
	for c := range s.children {
		children = append(children, c)
	}
	s.children = nil
	callbacks := s.onCancel
	s.onCancel = nil
	close(s.done)
	s.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	for _, c := range children {
		c.Cancel(cause)
	}
}

// OnCancel registers f to run when the scope is canceled. If the scope is
// already canceled, f runs synchronously before OnCancel returns.
func (s *Scope) OnCancel(f func()) {
	s.mu.Lock()
	if s.canceled {
		s.mu.Unlock()
		f()
		return
	}
	s.onCancel = append(s.onCancel, f)
	s.mu.Unlock()
}

// Token identifies a scope for use as a map key, e.g. by the activation-dates
// manager. Scope pointers are already comparable, so Token is just the Scope
// itself — this alias exists to give call sites at other layers a name that
// doesn't imply "take ownership of the whole cancellation API".
type Token = *Scope
