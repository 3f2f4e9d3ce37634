// Package gate implements the operation-readiness gate described in §4.4:
// a workflow becomes externally observable (queryable) only when it has no
// in-flight operations. Root operations are the externally-initiated ones
// (action execution); inner operations are those a root operation spawns
// internally (e.g. a nested WaitForAny branch). A gate is "ready" exactly
// when both counts are zero.
package gate

import (
	"context"
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Operation is a handle returned by (*Gate).CreateOperation. Exactly one of
// Complete or Reset must eventually be called, or the gate will never
// become ready again.
type Operation struct {
	gate     *Gate
	isRoot   bool
	done     bool
	mu       sync.Mutex
}

// Gate tracks in-flight root and inner operations for one workflow
// instance and lets callers wait for the instance to go quiet.
type Gate struct {
	mu          sync.Mutex
	rootCount   int
	innerCount  int
	closed      bool
	readyWaiters  []chan struct{}
	innerWaiters  []chan struct{}
}

// New creates an empty, open Gate.
func New() *Gate {
	return &Gate{}
}

// CreateOperation registers a new operation of the given kind and returns
// its handle. Registering against a closed gate returns wferrors.Cancelled.
// If scope is non-nil, the operation auto-completes when scope is
// canceled, so callers don't leak counts on the cancellation path.
func (g *Gate) CreateOperation(scope *cancel.Scope, isRoot bool) (*Operation, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, wferrors.Cancelled("gate: closed")
	}
	if isRoot {
		g.rootCount++
	} else {
		g.innerCount++
	}
	g.mu.Unlock()

	op := &Operation{gate: g, isRoot: isRoot}
	if scope != nil {
		scope.OnCancel(op.Complete)
	}
	return op, nil
}

// TryStartOperation is CreateOperation without an error return: it reports
// ok=false instead of an error when the gate is closed.
func (g *Gate) TryStartOperation(scope *cancel.Scope, isRoot bool) (*Operation, bool) {
	op, err := g.CreateOperation(scope, isRoot)
	if err != nil {
		return nil, false
	}
	return op, true
}

// ImportOperation registers a fresh operation on g, not tied to any scope,
// so that waiting on g also waits for it to complete. It takes no existing
// operation and is not linked to any other Gate's operations.
func (g *Gate) ImportOperation(isRoot bool) (*Operation, error) {
	return g.CreateOperation(nil, isRoot)
}

// Complete marks op finished. Safe to call more than once or concurrently;
// only the first call has any effect.
func (op *Operation) Complete() {
	op.mu.Lock()
	if op.done {
		op.mu.Unlock()
		return
	}
	op.done = true
	op.mu.Unlock()
	op.gate.release(op.isRoot)
}

// Reset releases the operation's slot; it is the same as Complete; op is
// marked finished and no new operation is registered.
func (op *Operation) Reset() {
	op.Complete()
}

func (g *Gate) release(isRoot bool) {
	g.mu.Lock()
	if isRoot {
		if g.rootCount > 0 {
			g.rootCount--
		}
	} else {
		if g.innerCount > 0 {
			g.innerCount--
		}
	}
	var toNotifyReady, toNotifyInner []chan struct{}
	if g.rootCount == 0 && g.innerCount == 0 {
		toNotifyReady = g.readyWaiters
		g.readyWaiters = nil
	}
	if g.innerCount == 0 {
		toNotifyInner = g.innerWaiters
		g.innerWaiters = nil
	}
	g.mu.Unlock()

	for _, ch := range toNotifyReady {
		close(ch)
	}
	for _, ch := range toNotifyInner {
		close(ch)
	}
}

// WaitForAllInnerOperationsCompletion blocks until the inner-operation
// count reaches zero, or ctx/scope is done.
func (g *Gate) WaitForAllInnerOperationsCompletion(ctx context.Context, scope *cancel.Scope) error {
	g.mu.Lock()
	if g.innerCount == 0 {
		g.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	g.innerWaiters = append(g.innerWaiters, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return wferrors.Cancelled("WaitForAllInnerOperationsCompletion: context done")
	case <-scope.Done():
		return wferrors.Cancelled("WaitForAllInnerOperationsCompletion: scope canceled")
	}
}

// ReadyTask blocks until the gate has neither root nor inner operations
// in flight, or ctx/scope is done. This is the wait WaitForReadyAndStart
// Operation performs before attempting to register its own operation.
func (g *Gate) ReadyTask(ctx context.Context, scope *cancel.Scope) error {
	g.mu.Lock()
	if g.rootCount == 0 && g.innerCount == 0 {
		g.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	g.readyWaiters = append(g.readyWaiters, ch)
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return wferrors.Cancelled("ReadyTask: context done")
	case <-scope.Done():
		return wferrors.Cancelled("ReadyTask: scope canceled")
	}
}

// IsReady reports the gate's current readiness without blocking.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rootCount == 0 && g.innerCount == 0
}

// Close prevents any further operations from being created; in-flight
// operations still complete normally.
func (g *Gate) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
