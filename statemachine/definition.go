// Package statemachine implements the hierarchical, compound state machine
// every workflow body is configured as (§4.7). States may nest inside a
// parent state; entering a state enters every ancestor that isn't already
// active (root to leaf), and leaving it exits leaf to root. A state
// re-entered after a workflow restores from persistence runs its
// OnActivate hook instead of OnEnter, since no fresh side effects should
// re-fire.
package statemachine

import (
	"fmt"
	"strings"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Key identifies a state or an action by name.
type Key = string

// Transition is what an OnAsync/OnAction/OnDate handler returns to move the
// machine. A zero Transition (Next == "") means "stay put".
type Transition struct {
	Next Key
}

// GoTo builds a Transition to the named state.
func GoTo(next Key) Transition { return Transition{Next: next} }

// Stay is the no-op transition.
var Stay = Transition{}

type actionHandler struct {
	allow namedvalues.Tristate
	run   func(values *namedvalues.Values) (Transition, error)
}

type stateDef struct {
	key       Key
	parent    Key
	hasParent bool
	internal  bool
	hidden    bool
	desc      string

	onEnter    []func(ctx *RunContext)
	onExit     []func(ctx *RunContext)
	onActivate []func(ctx *RunContext)
	trigger    *Trigger
	onDates    []dateHandler

	actions map[Key]*actionHandler
}

type dateHandler struct {
	at  func(ctx *RunContext) (time.Time, bool)
	run func(ctx *RunContext) (Transition, error)
}

// guardDesc is one named predicate contributing to a branch's conjunction.
// desc is what renders into the DOT label ("C1", "C2", ...).
type guardDesc struct {
	pred func(result interface{}) bool
	desc string
}

// branchDef is one ordered, guarded transition target belonging to a
// Trigger. An empty guards slice means "unconditional".
type branchDef struct {
	guards []guardDesc
	target Key
}

func (b branchDef) descriptions() []string {
	if len(b.guards) == 0 {
		return nil
	}
	out := make([]string, len(b.guards))
	for i, g := range b.guards {
		out[i] = g.desc
	}
	return out
}

func (b branchDef) satisfied(result interface{}) bool {
	for _, g := range b.guards {
		if !g.pred(result) {
			return false
		}
	}
	return true
}

// Trigger is the chain builder returned by StateBuilder.OnAsync (§4.7). It
// accumulates one or more ordered, guarded branches: OnAsync(...).GoTo(B)
// declares a single unconditional (or, preceded by .If calls, conjunctively
// guarded) branch; IfThenGoTo registers an earlier-evaluated branch of its
// own. Definition.AsyncTrigger exposes the declared shape, as a
// TriggerDescriptor, for DOT rendering (scenarios 5 and 6, §8).
type Trigger struct {
	label   string
	hidden  bool
	factory func(ctx *RunContext) (interface{}, error)
	doFns   []func(ctx *RunContext, result interface{})
	pending []guardDesc
	branches []branchDef
}

// If accumulates a conjunctive guard onto the branch that the next GoTo
// call will finalize.
func (t *Trigger) If(pred func(result interface{}) bool, desc string) *Trigger {
	t.pending = append(t.pending, guardDesc{pred: pred, desc: desc})
	return t
}

// IfThenGoTo registers an additional branch, evaluated before the one a
// later GoTo finalizes, guarded by the single predicate given here.
func (t *Trigger) IfThenGoTo(pred func(result interface{}) bool, target Key, desc string) *Trigger {
	t.branches = append(t.branches, branchDef{guards: []guardDesc{{pred: pred, desc: desc}}, target: target})
	return t
}

// GoTo finalizes the branch under construction — target, guarded by
// whatever .If calls accumulated since the last GoTo/IfThenGoTo.
func (t *Trigger) GoTo(target Key) *Trigger {
	t.branches = append(t.branches, branchDef{guards: append([]guardDesc(nil), t.pending...), target: target})
	t.pending = nil
	return t
}

// Do registers a side-effect to run against the factory's result before
// branches are evaluated — e.g. to capture it somewhere a guard's
// predicate closes over.
func (t *Trigger) Do(f func(ctx *RunContext, result interface{})) *Trigger {
	t.doFns = append(t.doFns, f)
	return t
}

// Hide marks the trigger as excluded from graph export.
func (t *Trigger) Hide() *Trigger {
	t.hidden = true
	return t
}

// resolve runs the registered Do hooks against result, then returns the
// first branch (in declaration order) whose guards are all satisfied.
func (t *Trigger) resolve(ctx *RunContext, result interface{}) Transition {
	for _, f := range t.doFns {
		f(ctx, result)
	}
	for _, b := range t.branches {
		if b.satisfied(result) {
			return GoTo(b.target)
		}
	}
	return Stay
}

// BranchDescriptor is a Trigger branch's presentation shape: its target and
// the ordered list of guard descriptions gating it.
type BranchDescriptor struct {
	Target Key
	Guards []string
}

// TriggerDescriptor is a state's OnAsync trigger, as exposed for rendering.
type TriggerDescriptor struct {
	Label    string
	Hidden   bool
	Branches []BranchDescriptor
}

// Label renders b's edge label the way the testable scenarios specify:
// "E1 [C1 AND C2]" when b is the trigger's only branch, or "N: E1 [C1]"
// (1-based) when the trigger declares more than one ordered branch.
func (t TriggerDescriptor) Label(branchIndex int) string {
	b := t.Branches[branchIndex]
	suffix := ""
	if len(b.Guards) > 0 {
		suffix = " [" + strings.Join(b.Guards, " AND ") + "]"
	}
	if len(t.Branches) > 1 {
		return fmt.Sprintf("%d: %s%s", branchIndex+1, t.Label, suffix)
	}
	return t.Label + suffix
}

// Definition is the immutable, fully-configured shape of a state machine,
// built once via Builder and then Run many times (once per workflow
// instance).
type Definition struct {
	states map[Key]*stateDef
	order  []Key
}

// Builder assembles a Definition with a fluent, Configure-per-state API
// mirroring the source library's declaration style.
type Builder struct {
	def *Definition
}

// NewBuilder starts a fresh Definition.
func NewBuilder() *Builder {
	return &Builder{def: &Definition{states: make(map[Key]*stateDef)}}
}

// Build finalizes the Definition. The Builder must not be reused after
// calling Build.
func (b *Builder) Build() *Definition {
	return b.def
}

// StateBuilder configures one state.
type StateBuilder struct {
	b   *Builder
	def *stateDef
}

// ConfigureState declares (or re-opens) a regular, externally enterable
// state.
func (b *Builder) ConfigureState(key Key) *StateBuilder {
	return b.configure(key, false)
}

// ConfigureInternalState declares a state marked as internal, used for
// substructure (the distilled spec's "internal" vs. "hidden" state split,
// §9). The mark is reported by IsInternal and drawn dashed by the DOT
// formatter; Run and InitiateTransitionTo do not reject an internal state as
// their initial or target state.
func (b *Builder) ConfigureInternalState(key Key) *StateBuilder {
	return b.configure(key, true)
}

func (b *Builder) configure(key Key, internal bool) *StateBuilder {
	d, ok := b.def.states[key]
	if !ok {
		d = &stateDef{key: key, actions: make(map[Key]*actionHandler)}
		b.def.states[key] = d
		b.def.order = append(b.def.order, key)
	}
	d.internal = d.internal || internal
	return &StateBuilder{b: b, def: d}
}

// SubstateOf marks the state as nested under parent: entering this state
// also enters parent (if not already active), and parent's handlers apply
// to this state unless overridden.
func (s *StateBuilder) SubstateOf(parent Key) *StateBuilder {
	s.def.parent = parent
	s.def.hasParent = true
	return s
}

// HasDescription attaches a human-readable presentation hint to the state,
// used by graph export in place of the bare key.
func (s *StateBuilder) HasDescription(text string) *StateBuilder {
	s.def.desc = text
	return s
}

// Hide marks the state as excluded from graph export.
func (s *StateBuilder) Hide() *StateBuilder {
	s.def.hidden = true
	return s
}

// OnEnter registers a callback that runs when the state is freshly entered
// (not when restoring from persisted history). A handler may call
// ctx.Redirect(key) to retarget entry before the machine finishes
// descending (§4.7 step 3).
func (s *StateBuilder) OnEnter(f func(ctx *RunContext)) *StateBuilder {
	s.def.onEnter = append(s.def.onEnter, f)
	return s
}

// OnExit registers a callback that runs whenever the state is left,
// whether by a fresh transition or because a restored instance is moving
// on.
func (s *StateBuilder) OnExit(f func(ctx *RunContext)) *StateBuilder {
	s.def.onExit = append(s.def.onExit, f)
	return s
}

// OnActivate registers a callback that runs in place of OnEnter the first
// time a restoring instance resumes inside this state.
func (s *StateBuilder) OnActivate(f func(ctx *RunContext)) *StateBuilder {
	s.def.onActivate = append(s.def.onActivate, f)
	return s
}

// OnAsync declares the state's long-running trigger: factory runs (via
// operators) until it produces a result or an error; the returned *Trigger
// accumulates guarded branches via .If/.IfThenGoTo/.GoTo that decide where
// the machine goes once factory completes (§4.7). Only one OnAsync per
// state. label is the trigger's name as it appears in rendered edges
// ("E1" in the testable scenarios).
func (s *StateBuilder) OnAsync(factory func(ctx *RunContext) (interface{}, error), label string) *Trigger {
	t := &Trigger{label: label, factory: factory}
	s.def.trigger = t
	return t
}

// OnDate registers a handler that fires once the clock reaches the time at
// computes, racing it against the state's OnAsync trigger (and any other
// OnDate handlers) the same way an explicit operators.WaitForDate call
// would (§4.5). at returns ok=false to mean "not armed right now" — e.g. a
// handler that only applies once some other condition in the workflow's
// data holds. Re-armed on every pass through the state's wait loop, so at
// may read the instance's current data each time it's consulted.
func (s *StateBuilder) OnDate(at func(ctx *RunContext) (time.Time, bool), run func(ctx *RunContext) (Transition, error)) *StateBuilder {
	s.def.onDates = append(s.def.onDates, dateHandler{at: at, run: run})
	return s
}

// OnAction registers a handler invoked when actionName executes while this
// state (or a substate of it) is active. allow controls whether the action
// is listed as available at all (namedvalues.True/False/Unknown — Unknown
// defers to the ancestor chain, §4.7's 3-valued resolution).
func (s *StateBuilder) OnAction(actionName Key, allow namedvalues.Tristate, f func(values *namedvalues.Values) (Transition, error)) *StateBuilder {
	s.def.actions[actionName] = &actionHandler{allow: allow, run: f}
	return s
}

// AllowActions marks the named actions as explicitly available in this
// state without giving them a transition handler — they run elsewhere
// (e.g. the workflow's global action registry) and this state simply opts
// in to being executable during them.
func (s *StateBuilder) AllowActions(names ...Key) *StateBuilder {
	for _, n := range names {
		if _, ok := s.def.actions[n]; !ok {
			s.def.actions[n] = &actionHandler{allow: namedvalues.True}
		} else {
			s.def.actions[n].allow = namedvalues.True
		}
	}
	return s
}

// DisallowActions explicitly blocks the named actions in this state,
// overriding any ancestor that allows them.
func (s *StateBuilder) DisallowActions(names ...Key) *StateBuilder {
	for _, n := range names {
		if _, ok := s.def.actions[n]; !ok {
			s.def.actions[n] = &actionHandler{allow: namedvalues.False}
		} else {
			s.def.actions[n].allow = namedvalues.False
		}
	}
	return s
}

// path returns key's ancestor chain from root to key itself, inclusive.
func (d *Definition) path(key Key) ([]Key, error) {
	var reversed []Key
	seen := map[Key]bool{}
	cur := key
	for {
		st, ok := d.states[cur]
		if !ok {
			return nil, wferrors.NotFoundf("statemachine: unknown state %q", cur)
		}
		if seen[cur] {
			return nil, fmt.Errorf("statemachine: cycle in substate chain at %q", cur)
		}
		seen[cur] = true
		reversed = append(reversed, cur)
		if !st.hasParent {
			break
		}
		cur = st.parent
	}
	out := make([]Key, len(reversed))
	for i, k := range reversed {
		out[len(reversed)-1-i] = k
	}
	return out, nil
}

// States returns every declared state key, in declaration order.
func (d *Definition) States() []Key {
	return append([]Key(nil), d.order...)
}

// Parent returns key's declared parent and whether it has one.
func (d *Definition) Parent(key Key) (Key, bool) {
	st, ok := d.states[key]
	if !ok {
		return "", false
	}
	return st.parent, st.hasParent
}

// IsInternal reports whether key was declared via ConfigureInternalState.
func (d *Definition) IsInternal(key Key) bool {
	st, ok := d.states[key]
	return ok && st.internal
}

// IsHidden reports whether key was marked Hide() for presentation purposes.
func (d *Definition) IsHidden(key Key) bool {
	st, ok := d.states[key]
	return ok && st.hidden
}

// Description returns key's HasDescription text, if any.
func (d *Definition) Description(key Key) (string, bool) {
	st, ok := d.states[key]
	if !ok || st.desc == "" {
		return "", false
	}
	return st.desc, true
}

// AsyncTrigger exposes key's OnAsync trigger shape for rendering, if any.
func (d *Definition) AsyncTrigger(key Key) (TriggerDescriptor, bool) {
	st, ok := d.states[key]
	if !ok || st.trigger == nil {
		return TriggerDescriptor{}, false
	}
	t := st.trigger
	out := TriggerDescriptor{Label: t.label, Hidden: t.hidden}
	for _, b := range t.branches {
		out.Branches = append(out.Branches, BranchDescriptor{Target: b.target, Guards: b.descriptions()})
	}
	return out, true
}

// resolveAction walks a state path from leaf to root, returning the first
// state that expresses an opinion (allow/disallow or a handler) about
// actionName, or nil if none does.
func (d *Definition) resolveAction(path []Key, actionName Key) (*stateDef, *actionHandler) {
	for i := len(path) - 1; i >= 0; i-- {
		st := d.states[path[i]]
		if h, ok := st.actions[actionName]; ok {
			return st, h
		}
	}
	return nil, nil
}
