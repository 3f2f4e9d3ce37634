// Package workflow is the public surface of the engine: thin aliases over
// the internal and statemachine packages, following the same
// public-facade-over-internal-engine split used elsewhere in this
// ecosystem, so the internal package stays free to change shape without
// breaking callers.
package workflow

import (
	"context"

	"github.com/DevBiker/WorkflowsCore-sub000/activation"
	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	"github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/internal"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/operators"
	"github.com/DevBiker/WorkflowsCore-sub000/statemachine"
)

// Status is a workflow instance's lifecycle state.
type Status = internal.Status

const (
	StatusNotStarted = internal.StatusNotStarted
	StatusRunning     = internal.StatusRunning
	StatusCompleted   = internal.StatusCompleted
	StatusCanceled    = internal.StatusCanceled
	StatusFaulted     = internal.StatusFaulted
)

// DataFieldKind distinguishes persisted fields from transient ones.
type DataFieldKind = internal.DataFieldKind

const (
	Persistent = internal.Persistent
	Transient  = internal.Transient
)

// Metadata, DataStore, Core, Repository, ActionDescriptor, Coordinator,
// and the dependency types re-export the engine's concrete types.
type (
	Metadata          = internal.Metadata
	DataStore         = internal.DataStore
	Core              = internal.WorkflowCore
	Repository        = internal.Repository
	ActionDescriptor  = internal.ActionDescriptor
	Coordinator       = internal.Coordinator
	ActionDependency  = internal.ActionDependency
	StateDependency   = internal.StateDependency
	Event             = internal.Event
)

// State-machine building blocks.
type (
	Key          = statemachine.Key
	Transition   = statemachine.Transition
	Definition   = statemachine.Definition
	Builder      = statemachine.Builder
	StateBuilder = statemachine.StateBuilder
	RunContext   = statemachine.RunContext
)

// Values, Tristate, and Handle re-export the data-field value model.
type (
	Values   = namedvalues.Values
	Tristate = namedvalues.Tristate
	Handle   = namedvalues.Handle
)

const (
	True    = namedvalues.True
	False   = namedvalues.False
	Unknown = namedvalues.Unknown
)

// Clock, Scope, and Manager re-export the ambient time/cancellation model.
type (
	Clock   = clock.Clock
	Scope   = cancel.Scope
	Token   = cancel.Token
	DateMgr = activation.Manager
)

// Task and the operator functions re-export the composition primitives.
type Task = operators.Task

var (
	WaitForAny                    = operators.WaitForAny
	WaitForDate                   = operators.WaitForDate
	WaitForAction                 = operators.WaitForAction
	WaitForActionWithWasExecuted  = operators.WaitForActionWithWasExecutedCheck
	WaitForState                  = operators.WaitForState
	Then                          = operators.Then
	WaitWithTimeout               = operators.WaitWithTimeout
	WaitForReadyAndStartOperation = operators.WaitForReadyAndStartOperation
)

// GoTo and Stay re-export the state machine's transition constructors.
var (
	GoTo = statemachine.GoTo
	Stay = statemachine.Stay
)

// NewBuilder starts a new state machine Definition.
func NewBuilder() *Builder { return statemachine.NewBuilder() }

// NewMetadata starts a new Metadata set.
func NewMetadata() *Metadata { return internal.NewMetadata() }

// NewValues creates an empty Values mapping.
func NewValues() *Values { return namedvalues.New() }

// NewCoordinator creates a process-wide cross-workflow dependency
// registry.
func NewCoordinator() *Coordinator { return internal.NewCoordinator() }

// NewRealClock returns a Clock backed by the real wall clock.
func NewRealClock() Clock { return clock.NewRealClock() }

// New assembles a not-yet-started workflow instance.
func New(id string, def *Definition, meta *Metadata, repo Repository, clk Clock, eventLogCapacity int) *Core {
	return internal.NewWorkflowCore(id, def, meta, repo, clk, eventLogCapacity)
}

// Start begins running core's body at initialState.
func Start(ctx context.Context, core *Core, initialState Key, isRestoring bool, persisted *Values) {
	core.Start(ctx, initialState, isRestoring, persisted)
}

// ExecuteAction runs name against core.
func ExecuteAction(ctx context.Context, core *Core, name string, values *Values) error {
	return core.ExecuteAction(ctx, name, values)
}

// MaxTime stands in for "never" in WaitForDate/WaitWithTimeout deadlines.
var MaxTime = clock.MaxTime
