// Package operators implements the composable wait primitives every
// workflow body is built from: WaitForAny, WaitForDate, WaitForAction,
// WaitForState, Then, WaitWithTimeout, and WaitForReadyAndStartOperation
// (§4.5). Every operator takes an explicit cancellation scope instead of
// relying on goroutine-local state (§9's "ambient cancellation" resolved
// via explicit threading).
package operators

import (
	"context"
	"sync"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/activation"
	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/gate"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Task is one branch offered to WaitForAny. Run is given a child scope
// that is canceled automatically once a sibling wins the race, so
// long-running branches can rely on scope.Done() to abandon their work.
type Task struct {
	// Optional branches lose ties to non-optional branches that become
	// ready in the same resolution pass (§4.5's "Optional task" rule).
	Optional bool
	Run      func(ctx context.Context, scope *cancel.Scope) (interface{}, error)
}

type raceResult struct {
	index int
	value interface{}
	err   error
}

// WaitForAny runs every task concurrently under child scopes of scope and
// returns the winner's index, value, and error. An Optional task that
// completes before any non-optional one has reported never resolves the
// race by itself (§4.5 step 4) — WaitForAny keeps waiting until a
// non-optional branch reports or every branch has. A task given no
// branches at all never resolves until ctx/scope is canceled, the same as
// any other composite with nothing left to wait on.
//
// Once a winner is chosen, every other branch's scope is canceled, and
// WaitForAny blocks until all of them have actually returned before
// WaitForAny itself returns (§4.5 step 5 / scenario 4: losing siblings
// must reach a terminal status before the call completes). A sibling that
// cancels itself rather than in response to losing the race is reported as
// wferrors.InvalidUsage ("child cancelled unexpectedly") instead of a bare
// cancellation, and is eligible to win like any other fault; a losing
// sibling's real (non-cancellation) fault, if the winner itself didn't
// carry one, is re-raised as WaitForAny's error.
func WaitForAny(ctx context.Context, scope *cancel.Scope, tasks ...Task) (int, interface{}, error) {
	if len(tasks) == 0 {
		select {
		case <-ctx.Done():
			return -1, nil, wferrors.Cancelled("WaitForAny: context done")
		case <-scope.Done():
			return -1, nil, wferrors.Cancelled("WaitForAny: scope canceled")
		}
	}

	results := make(chan raceResult, len(tasks))
	childScopes := make([]*cancel.Scope, len(tasks))

	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		child := scope.NewChild()
		childScopes[i] = child
		idx, task := i, t
		go func() {
			defer wg.Done()
			v, err := task.Run(ctx, child)
			if err != nil && wferrors.IsCancelled(err) && !child.IsCanceled() {
				err = wferrors.InvalidUsage("WaitForAny: child cancelled unexpectedly")
			}
			results <- raceResult{index: idx, value: v, err: err}
		}()
	}
	joined := make(chan struct{})
	go func() {
		wg.Wait()
		close(joined)
	}()

	var collected []raceResult
	var winner raceResult
	haveWinner := false
	for !haveWinner {
		select {
		case r := <-results:
			collected = append(collected, r)
		case <-ctx.Done():
			cancelAllExcept(childScopes, -1)
			<-joined
			return -1, nil, wferrors.Cancelled("WaitForAny: context done")
		case <-scope.Done():
			cancelAllExcept(childScopes, -1)
			<-joined
			return -1, nil, wferrors.Cancelled("WaitForAny: scope canceled")
		}
	drainMore:
		for len(collected) < len(tasks) {
			select {
			case r := <-results:
				collected = append(collected, r)
			default:
				break drainMore
			}
		}
		winner, haveWinner = resolve(collected, tasks, len(collected) == len(tasks))
	}

	cancelAllExcept(childScopes, winner.index)

	finalVal, finalErr := winner.value, winner.err
	for _, r := range collected {
		if finalErr == nil && r.index != winner.index && r.err != nil && !wferrors.IsCancelled(r.err) {
			finalVal, finalErr = nil, r.err
		}
	}
	seen := len(collected)
	for seen < len(tasks) {
		r := <-results
		seen++
		if finalErr == nil && r.err != nil && !wferrors.IsCancelled(r.err) {
			finalVal, finalErr = nil, r.err
		}
	}
	<-joined

	return winner.index, finalVal, finalErr
}

// resolve decides a winner from everything collected so far, applying the
// Optional tie-break: a non-optional result always wins over an optional
// one regardless of arrival order, and only once every task has reported
// does an all-optional batch get to resolve. ok=false means keep waiting.
func resolve(collected []raceResult, tasks []Task, allReported bool) (raceResult, bool) {
	var nonOptional, optional []raceResult
	for _, r := range collected {
		if tasks[r.index].Optional {
			optional = append(optional, r)
		} else {
			nonOptional = append(nonOptional, r)
		}
	}
	if len(nonOptional) > 0 {
		return lowestIndex(nonOptional), true
	}
	if allReported && len(optional) > 0 {
		return lowestIndex(optional), true
	}
	return raceResult{}, false
}

func lowestIndex(rs []raceResult) raceResult {
	best := rs[0]
	for _, r := range rs[1:] {
		if r.index < best.index {
			best = r
		}
	}
	return best
}

func cancelAllExcept(scopes []*cancel.Scope, keep int) {
	for i, s := range scopes {
		if i != keep {
			s.Cancel(wferrors.Cancelled("WaitForAny: sibling branch won"))
		}
	}
}

// WaitForDate blocks until clk reaches date or scope is canceled,
// registering the wait with mgr so the scheduler's overall wake-up horizon
// reflects it (§4.2). A date at or beyond clock.MaxTime is never registered.
func WaitForDate(ctx context.Context, scope *cancel.Scope, clk clock.Clock, mgr *activation.Manager, date time.Time) error {
	if mgr != nil && date.Before(clock.MaxTime) {
		mgr.AddActivationDate(scope, date)
		mgr.OnCancellationTokenCanceled(scope)
		defer mgr.RemoveActivationDate(scope)
	}
	return clk.WaitUntil(scope, date)
}

// ActionSource is the minimal surface WaitForAction needs from the engine
// that owns action execution history and notification.
type ActionSource interface {
	WaitForAction(ctx context.Context, scope *cancel.Scope, actionName string) (*namedvalues.Values, error)
	WasActionExecuted(actionName string) bool
}

// WaitForAction blocks until actionName is executed and returns its
// parameters.
func WaitForAction(ctx context.Context, scope *cancel.Scope, src ActionSource, actionName string) (*namedvalues.Values, error) {
	return src.WaitForAction(ctx, scope, actionName)
}

// WaitForActionWithWasExecutedCheck is WaitForAction, except it returns
// immediately with empty parameters if actionName was already executed
// before this call — used when a workflow resumes from persistence after
// the action already fired (§4.5).
func WaitForActionWithWasExecutedCheck(ctx context.Context, scope *cancel.Scope, src ActionSource, actionName string) (*namedvalues.Values, error) {
	if src.WasActionExecuted(actionName) {
		return namedvalues.New(), nil
	}
	return src.WaitForAction(ctx, scope, actionName)
}

// StateSource is the minimal surface WaitForState needs from the state
// machine instance.
type StateSource interface {
	WaitForState(ctx context.Context, scope *cancel.Scope, stateKey string) error
}

// WaitForState blocks until the state machine enters stateKey.
func WaitForState(ctx context.Context, scope *cancel.Scope, src StateSource, stateKey string) error {
	return src.WaitForState(ctx, scope, stateKey)
}

// Then sequences first and, once it completes successfully, next(result).
// If first fails, next never runs and Then returns first's error.
func Then(ctx context.Context, scope *cancel.Scope, first Task, next func(result interface{}) Task) (interface{}, error) {
	v, err := first.Run(ctx, scope)
	if err != nil {
		return nil, err
	}
	return next(v).Run(ctx, scope)
}

// WaitWithTimeout races task against a deadline timer directly, not via
// WaitForAny's Optional semantics — Optional there means "never resolves
// the composite alone while a non-optional branch is outstanding", which
// would wrongly stop the deadline from ever winning. Returns
// wferrors.Timeout if the deadline is reached first; otherwise surfaces
// task's own outcome, success or failure (§4.5).
func WaitWithTimeout(ctx context.Context, scope *cancel.Scope, clk clock.Clock, mgr *activation.Manager, deadline time.Time, task Task) (interface{}, error) {
	child := scope.NewChild()
	defer child.Cancel(wferrors.Cancelled("WaitWithTimeout: resolved"))

	type outcome struct {
		v   interface{}
		err error
	}
	taskDone := make(chan outcome, 1)
	go func() {
		v, err := task.Run(ctx, child)
		taskDone <- outcome{v, err}
	}()

	deadlineDone := make(chan error, 1)
	go func() {
		deadlineDone <- WaitForDate(ctx, child, clk, mgr, deadline)
	}()

	select {
	case o := <-taskDone:
		return o.v, o.err
	case derr := <-deadlineDone:
		if derr != nil {
			return nil, derr
		}
		return nil, wferrors.Timeout("WaitWithTimeout: deadline reached")
	}
}

// WaitForReadyAndStartOperation waits for g to become quiescent and then
// registers a new operation against it, matching the gated start described
// in §4.4. The readiness wait and the registration are two separate steps,
// so another operation may start in between; if g has been closed by then,
// the call fails with a cancellation error.
func WaitForReadyAndStartOperation(ctx context.Context, scope *cancel.Scope, g *gate.Gate, isRoot bool) (*gate.Operation, error) {
	for {
		if err := g.ReadyTask(ctx, scope); err != nil {
			return nil, err
		}
		op, ok := g.TryStartOperation(scope, isRoot)
		if ok {
			return op, nil
		}
		return nil, wferrors.Cancelled("WaitForReadyAndStartOperation: gate closed")
	}
}
