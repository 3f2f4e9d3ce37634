package statemachine

import (
	"context"
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/activation"
	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/gate"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/operators"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// RunContext is handed to every state hook. It carries the ambient
// cancellation scope for the state currently executing, so long-running
// OnAsync bodies can pass it straight to operators.
type RunContext struct {
	Ctx   context.Context
	Scope *cancel.Scope
	Clock clock.Clock
	Dates *activation.Manager

	inst      *Instance
	redirectTo *Key
}

// WaitForAction is a convenience forwarding to the owning Instance, so
// OnAsync bodies can write ctx.WaitForAction(name) instead of threading the
// instance separately.
func (rc *RunContext) WaitForAction(name Key) (*namedvalues.Values, error) {
	return operators.WaitForAction(rc.Ctx, rc.Scope, rc.inst, name)
}

// WaitForState blocks until the machine enters stateKey.
func (rc *RunContext) WaitForState(stateKey Key) error {
	return operators.WaitForState(rc.Ctx, rc.Scope, rc.inst, stateKey)
}

// Redirect, called from an OnEnter/OnActivate handler, retargets entry to
// key once the handler returns: the machine re-runs path computation from
// there, possibly switching to a sibling or an inner child (§4.7 step 3).
// Redirecting to the state currently being entered is "stay", not a
// re-entry. Calling Redirect from any other kind of handler has no effect.
func (rc *RunContext) Redirect(key Key) {
	if rc.redirectTo != nil {
		*rc.redirectTo = key
	}
}

// StateTransition describes a transition request whose target isn't part
// of the Definition driving this Instance — typically one raised via
// InitiateTransitionTo from outside the state machine itself. Run stops
// rather than erroring, exiting every active state and handing this back
// to whatever embeds the Instance to resolve (§4.7 step 6).
type StateTransition struct {
	Target Key
}

type stateWaiter struct {
	key Key
	ch  chan struct{}
}

type actionWaiter struct {
	name Key
	ch   chan *namedvalues.Values
}

// Instance is one running machine built from a Definition. Instance is not
// safe for concurrent use from more than one goroutine; the scheduler
// package is what guarantees that.
type Instance struct {
	def   *Definition
	clock clock.Clock
	dates *activation.Manager
	gate  *gate.Gate

	mu           sync.Mutex
	path         []Key // root..leaf, active states
	executed     map[Key]bool
	stateWaiters []stateWaiter
	actWaiters   []actionWaiter

	onStateEntered func(key Key)

	asyncCancel   []*cancel.Scope // one per active state's triggers, index-aligned with path
	extTransition chan Key
}

// New creates a runnable Instance from def. g, if non-nil, is the gate
// whose operation bookkeeping OnExit handlers are imported into, so they
// may themselves execute actions (§4.7 step 5).
func New(def *Definition, clk clock.Clock, dates *activation.Manager, g *gate.Gate) *Instance {
	return &Instance{
		def:           def,
		clock:         clk,
		dates:         dates,
		gate:          g,
		executed:      make(map[Key]bool),
		extTransition: make(chan Key, 1),
	}
}

// InitiateTransitionTo requests that the run loop transition to target, as
// an ordinary trigger racing every other declared one. If target isn't
// part of this Definition, Run stops instead of entering it — see
// StateTransition.
func (inst *Instance) InitiateTransitionTo(target Key) {
	select {
	case inst.extTransition <- target:
	default:
	}
}

// Run drives the instance starting at initialState until ctx/root is
// canceled, an OnAsync/OnDate body returns a fatal error, or a requested
// transition targets a state outside this Definition (in which case Run
// returns a non-nil *StateTransition instead of an error). isRestoring
// suppresses OnEnter in favor of OnActivate for the states resumed into,
// since a restoring workflow must not repeat fresh-entry side effects
// (§4.7). onStateEntered, if non-nil, is called every time the leaf state
// changes, after entry hooks have run — WorkflowCore uses it to log a
// stateChanged event naming the new leaf.
func (inst *Instance) Run(ctx context.Context, root *cancel.Scope, initialState Key, isRestoring bool, onStateEntered func(key Key)) (*StateTransition, error) {
	inst.onStateEntered = onStateEntered

	path, err := inst.def.path(initialState)
	if err != nil {
		return nil, err
	}
	if err := inst.enter(ctx, root, path, isRestoring); err != nil {
		return nil, err
	}

	for {
		if root.IsCanceled() {
			return nil, root.Err()
		}

		tasks := inst.collectTasks(ctx)
		_, result, err := operators.WaitForAny(ctx, root, tasks...)
		if err != nil {
			return nil, err
		}
		tr, _ := result.(Transition)
		if tr.Next == "" {
			continue
		}

		st, err := inst.applyTransition(ctx, root, tr.Next, false)
		if err != nil {
			return nil, err
		}
		if st != nil {
			return st, nil
		}
	}
}

// collectTasks builds one operators.Task per declared OnAsync trigger and
// armed OnDate handler across the ENTIRE active path, root to leaf — not
// just the leaf — per §4.7 step 4's "await all declared triggers at the
// current leaf AND all its ancestors". An explicit InitiateTransitionTo
// signal is always included as one more ordinary (non-optional) branch.
func (inst *Instance) collectTasks(ctx context.Context) []operators.Task {
	inst.mu.Lock()
	path := append([]Key(nil), inst.path...)
	scopes := append([]*cancel.Scope(nil), inst.asyncCancel...)
	inst.mu.Unlock()

	var tasks []operators.Task
	for i, key := range path {
		st := inst.def.states[key]
		scope := scopes[i]
		rc := &RunContext{Ctx: ctx, Scope: scope, Clock: inst.clock, Dates: inst.dates, inst: inst}

		if st.trigger != nil {
			trig := st.trigger
			innerRC := rc
			tasks = append(tasks, operators.Task{
				Run: func(ctx context.Context, scope *cancel.Scope) (interface{}, error) {
					result, err := trig.factory(innerRC)
					if err != nil {
						return nil, err
					}
					return trig.resolve(innerRC, result), nil
				},
			})
		}

		for _, dh := range st.onDates {
			dh := dh
			at, ok := dh.at(rc)
			if !ok {
				continue
			}
			innerRC := rc
			tasks = append(tasks, operators.Task{
				Run: func(ctx context.Context, scope *cancel.Scope) (interface{}, error) {
					if err := operators.WaitForDate(ctx, scope, inst.clock, inst.dates, at); err != nil {
						return nil, err
					}
					return dh.run(innerRC)
				},
			})
		}
	}

	tasks = append(tasks, operators.Task{
		Run: func(ctx context.Context, scope *cancel.Scope) (interface{}, error) {
			select {
			case target := <-inst.extTransition:
				return Transition{Next: target}, nil
			case <-scope.Done():
				return nil, wferrors.Cancelled("InitiateTransitionTo wait canceled")
			}
		},
	})

	return tasks
}

func (inst *Instance) currentLeaf() Key {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if len(inst.path) == 0 {
		return ""
	}
	return inst.path[len(inst.path)-1]
}

// enter activates every state along newPath not already active, root to
// leaf, running OnActivate (if isRestoring) or OnEnter (otherwise). A
// handler calling ctx.Redirect(key) retargets the walk: the active path is
// exited back down to the common ancestor with the new target and entry
// resumes from there (§4.7 step 3). Redirecting to the state already being
// entered is treated as "stay", not a fresh re-entry.
func (inst *Instance) enter(ctx context.Context, root *cancel.Scope, newPath []Key, isRestoring bool) error {
	for {
		inst.mu.Lock()
		commonLen := 0
		for commonLen < len(inst.path) && commonLen < len(newPath) && inst.path[commonLen] == newPath[commonLen] {
			commonLen++
		}
		inst.mu.Unlock()

		redirect := Key("")
		for i := commonLen; i < len(newPath); i++ {
			key := newPath[i]
			st := inst.def.states[key]
			scope := root.NewChild()

			var target Key
			rc := &RunContext{Ctx: ctx, Scope: scope, Clock: inst.clock, Dates: inst.dates, inst: inst, redirectTo: &target}
			hooks := st.onEnter
			if isRestoring {
				hooks = st.onActivate
			}
			for _, f := range hooks {
				f(rc)
				if target != "" {
					break
				}
			}

			inst.mu.Lock()
			inst.path = append(inst.path, key)
			inst.asyncCancel = append(inst.asyncCancel, scope)
			inst.mu.Unlock()
			inst.notifyStateEntered(key)

			if target != "" {
				redirect = target
				break
			}
		}

		if redirect == "" {
			break
		}
		if redirect == inst.currentLeaf() {
			break
		}
		np, err := inst.def.path(redirect)
		if err != nil {
			return err
		}
		inst.exitTo(ctx, np)
		newPath = np
	}

	if inst.onStateEntered != nil && len(newPath) > 0 {
		inst.onStateEntered(newPath[len(newPath)-1])
	}
	return nil
}

// exitTo cancels and exits every active state not shared with newPath, leaf
// to root. While a level's OnExit handlers run, an operation is imported
// into the gate (if one was given to New) so those handlers may themselves
// execute actions without the workflow looking falsely idle (§4.7 step 5).
func (inst *Instance) exitTo(ctx context.Context, newPath []Key) {
	inst.mu.Lock()
	commonLen := 0
	for commonLen < len(inst.path) && commonLen < len(newPath) && inst.path[commonLen] == newPath[commonLen] {
		commonLen++
	}
	toExit := append([]Key(nil), inst.path[commonLen:]...)
	scopesToExit := append([]*cancel.Scope(nil), inst.asyncCancel[commonLen:]...)
	inst.path = inst.path[:commonLen]
	inst.asyncCancel = inst.asyncCancel[:commonLen]
	inst.mu.Unlock()

	for i := len(toExit) - 1; i >= 0; i-- {
		key := toExit[i]
		st := inst.def.states[key]
		scope := scopesToExit[i]
		rc := &RunContext{Ctx: ctx, Scope: scope, Clock: inst.clock, Dates: inst.dates, inst: inst}

		inst.runOnExit(st, rc)
		scope.Cancel(wferrors.Cancelled("state exited"))
	}
}

func (inst *Instance) runOnExit(st *stateDef, rc *RunContext) {
	if inst.gate == nil {
		for _, f := range st.onExit {
			f(rc)
		}
		return
	}
	op, err := inst.gate.ImportOperation(false)
	if err != nil {
		for _, f := range st.onExit {
			f(rc)
		}
		return
	}
	defer op.Complete()
	for _, f := range st.onExit {
		f(rc)
	}
}

// applyTransition moves the machine to target. If target is part of this
// Definition, it exits states no longer active and enters newly active
// ones as usual. If target is unknown to this Definition entirely, the
// machine instead exits to root and returns a *StateTransition describing
// what was requested, per §4.7 step 6.
func (inst *Instance) applyTransition(ctx context.Context, root *cancel.Scope, target Key, isRestoring bool) (*StateTransition, error) {
	newPath, err := inst.def.path(target)
	if err != nil {
		inst.exitTo(ctx, nil)
		return &StateTransition{Target: target}, nil
	}
	inst.exitTo(ctx, newPath)
	if err := inst.enter(ctx, root, newPath, isRestoring); err != nil {
		return nil, err
	}
	return nil, nil
}

// ExecuteAction runs actionName's handler if it is allowed on the current
// path, applying the resulting Transition. Returns wferrors.NotFound if no
// state on the path expresses an opinion, wferrors.InvalidUsage if it is
// explicitly disallowed.
func (inst *Instance) ExecuteAction(ctx context.Context, root *cancel.Scope, actionName Key, values *namedvalues.Values) error {
	inst.mu.Lock()
	path := append([]Key(nil), inst.path...)
	inst.mu.Unlock()

	st, handler := inst.def.resolveAction(path, actionName)
	if st == nil {
		return wferrors.NotFoundf("action %q not recognized in current state", actionName)
	}
	if handler.allow == namedvalues.False {
		return wferrors.InvalidUsagef("action %q not allowed in current state", actionName)
	}

	inst.mu.Lock()
	inst.executed[actionName] = true
	waiters := make([]actionWaiter, 0)
	remaining := inst.actWaiters[:0]
	for _, w := range inst.actWaiters {
		if w.name == actionName {
			waiters = append(waiters, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	inst.actWaiters = remaining
	inst.mu.Unlock()

	for _, w := range waiters {
		w.ch <- values.Clone()
	}

	if handler.run == nil {
		return nil
	}
	tr, err := handler.run(values)
	if err != nil {
		return err
	}
	if tr.Next == "" {
		return nil
	}

	newPath, err := inst.def.path(tr.Next)
	if err != nil {
		// Not part of this Definition: hand it to the run loop's external-
		// transition mechanism rather than resolving it synchronously here
		// (§4.7 step 6 applies uniformly regardless of trigger kind).
		inst.InitiateTransitionTo(tr.Next)
		return nil
	}
	inst.exitTo(ctx, newPath)
	return inst.enter(ctx, root, newPath, false)
}

// IsActionAllowed resolves actionName's availability on the current path.
func (inst *Instance) IsActionAllowed(actionName Key) namedvalues.Tristate {
	inst.mu.Lock()
	path := append([]Key(nil), inst.path...)
	inst.mu.Unlock()

	_, h := inst.def.resolveAction(path, actionName)
	if h == nil {
		return namedvalues.Unknown
	}
	return h.allow
}

// WasActionExecuted implements operators.ActionSource.
func (inst *Instance) WasActionExecuted(actionName Key) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.executed[actionName]
}

// WaitForAction implements operators.ActionSource.
func (inst *Instance) WaitForAction(ctx context.Context, scope *cancel.Scope, actionName Key) (*namedvalues.Values, error) {
	inst.mu.Lock()
	if inst.executed[actionName] {
		inst.mu.Unlock()
		return namedvalues.New(), nil
	}
	ch := make(chan *namedvalues.Values, 1)
	inst.actWaiters = append(inst.actWaiters, actionWaiter{name: actionName, ch: ch})
	inst.mu.Unlock()

	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return nil, wferrors.Cancelled("WaitForAction: context done")
	case <-scope.Done():
		return nil, wferrors.Cancelled("WaitForAction: scope canceled")
	}
}

// WaitForState implements operators.StateSource.
func (inst *Instance) WaitForState(ctx context.Context, scope *cancel.Scope, stateKey Key) error {
	inst.mu.Lock()
	for _, k := range inst.path {
		if k == stateKey {
			inst.mu.Unlock()
			return nil
		}
	}
	ch := make(chan struct{})
	inst.stateWaiters = append(inst.stateWaiters, stateWaiter{key: stateKey, ch: ch})
	inst.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return wferrors.Cancelled("WaitForState: context done")
	case <-scope.Done():
		return wferrors.Cancelled("WaitForState: scope canceled")
	}
}

func (inst *Instance) notifyStateEntered(key Key) {
	inst.mu.Lock()
	var fire []chan struct{}
	remaining := inst.stateWaiters[:0]
	for _, w := range inst.stateWaiters {
		if w.key == key {
			fire = append(fire, w.ch)
		} else {
			remaining = append(remaining, w)
		}
	}
	inst.stateWaiters = remaining
	inst.mu.Unlock()

	for _, ch := range fire {
		close(ch)
	}
}

// CurrentPath returns the active state chain, root to leaf.
func (inst *Instance) CurrentPath() []Key {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return append([]Key(nil), inst.path...)
}
