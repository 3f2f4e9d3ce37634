package internal

import (
	"context"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/DevBiker/WorkflowsCore-sub000/activation"
	"github.com/DevBiker/WorkflowsCore-sub000/cancel"
	wfclock "github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/gate"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/scheduler"
	"github.com/DevBiker/WorkflowsCore-sub000/statemachine"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Observability bundles the ambient instrumentation a workflow type may
// attach to its WorkflowCore: structured logging, metrics, and tracing.
// Every field defaults to a no-op implementation, so instrumentation is
// opt-in per workflow type rather than mandatory plumbing every caller of
// NewWorkflowCore has to supply.
type Observability struct {
	Logger *zap.Logger
	Scope  tally.Scope
	Tracer opentracing.Tracer
}

func defaultObservability() Observability {
	return Observability{Logger: zap.NewNop(), Scope: tally.NoopScope, Tracer: opentracing.NoopTracer{}}
}

// ActionDescriptor registers one action name (and its synonyms) as
// recognized by a workflow type, independent of whether any particular
// state currently allows executing it (§4.6). Hidden excludes the action
// from GetAvailableActions's listing without affecting whether it can
// still be executed directly by name.
type ActionDescriptor struct {
	Primary  string
	Synonyms []string
	Hidden   bool
}

// WorkflowCore is the engine every concrete workflow type is built from:
// lifecycle tracking, the action registry, declared data fields, the
// bounded event log, and the statemachine.Instance driving the workflow
// body. Concrete workflow types compose WorkflowCore and configure their
// own statemachine.Definition and Metadata at registration time.
type WorkflowCore struct {
	ID    string
	def   *statemachine.Definition
	meta  *Metadata
	repo  Repository
	clock wfclock.Clock
	dates *activation.Manager
	sched *scheduler.Scheduler
	gate  *gate.Gate
	log   *EventLog
	data  *DataStore

	root *cancel.Scope
	inst *statemachine.Instance

	obs           Observability
	actionsExecuted *atomic.Int64

	startedOnce sync.Once
	startedCh   chan struct{}

	mu            sync.Mutex
	status        Status
	primaryOf     map[string]string // synonym (incl. primary) -> primary
	actionOrder   []string          // primary names, declaration order
	hiddenActions map[string]bool
	faultErr      error
	cancelErr     error
	forcedFault   error
	doneCh        chan struct{}
}

// NewWorkflowCore assembles a not-yet-started workflow instance with
// no-op observability.
func NewWorkflowCore(id string, def *statemachine.Definition, meta *Metadata, repo Repository, clk wfclock.Clock, eventLogCapacity int) *WorkflowCore {
	return NewWorkflowCoreWithObservability(id, def, meta, repo, clk, eventLogCapacity, defaultObservability())
}

// NewWorkflowCoreWithObservability is NewWorkflowCore, additionally wiring
// a workflow type's logger/metrics-scope/tracer into the engine's own
// milestones (action execution, lifecycle transitions).
func NewWorkflowCoreWithObservability(id string, def *statemachine.Definition, meta *Metadata, repo Repository, clk wfclock.Clock, eventLogCapacity int, obs Observability) *WorkflowCore {
	dates := activation.New()
	g := gate.New()
	return &WorkflowCore{
		ID:              id,
		def:             def,
		meta:            meta,
		repo:            repo,
		clock:           clk,
		dates:           dates,
		sched:           scheduler.New(),
		gate:            g,
		log:             NewEventLog(eventLogCapacity),
		data:            NewDataStore(meta),
		root:            cancel.NewRoot(),
		inst:            statemachine.New(def, clk, dates, g),
		obs:             obs,
		actionsExecuted: atomic.NewInt64(0),
		startedCh:       make(chan struct{}),
		status:          StatusNotStarted,
		primaryOf:       make(map[string]string),
		hiddenActions:   make(map[string]bool),
		doneCh:          make(chan struct{}),
	}
}

// ConfigureAction registers d, so ExecuteAction recognizes its primary
// name and every synonym as referring to the same action. A primary name
// registered twice fails with wferrors.InvalidUsage (§4.6) rather than
// silently overwriting the earlier registration.
func (w *WorkflowCore) ConfigureAction(d ActionDescriptor) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.primaryOf[d.Primary]; exists {
		return wferrors.InvalidUsagef("action %q already configured", d.Primary)
	}
	w.primaryOf[d.Primary] = d.Primary
	w.actionOrder = append(w.actionOrder, d.Primary)
	if d.Hidden {
		w.hiddenActions[d.Primary] = true
	}
	for _, syn := range d.Synonyms {
		w.primaryOf[syn] = d.Primary
	}
	return nil
}

func (w *WorkflowCore) resolveActionName(name string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	primary, ok := w.primaryOf[name]
	return primary, ok
}

// Start runs the workflow body on its scheduler goroutine starting at
// initialState. A non-nil persisted is restored into the workflow's data,
// whatever isRestoring says. isRestoring, when true, runs OnActivate
// instead of OnEnter along the initial path (§4.7).
func (w *WorkflowCore) Start(ctx context.Context, initialState string, isRestoring bool, persisted *namedvalues.Values) {
	w.mu.Lock()
	if w.status != StatusNotStarted {
		w.mu.Unlock()
		panicIllegalTransition(w.status, StatusRunning)
	}
	w.status = StatusRunning
	w.mu.Unlock()
	w.startedOnce.Do(func() { close(w.startedCh) })

	if persisted != nil {
		w.data.Restore(persisted)
	}

	w.obs.Logger.Info("workflow starting", zap.String("id", w.ID), zap.String("initialState", initialState))
	w.obs.Scope.Counter("workflow_started").Inc(1)

	w.sched.Run(func() {
		_, err := w.inst.Run(ctx, w.root, initialState, isRestoring, func(key string) {
			w.log.LogEvent(Event{At: w.clock.Now(), Kind: "stateChanged", Name: key})
			w.obs.Logger.Debug("state entered", zap.String("id", w.ID), zap.String("state", key))
		})
		// A *statemachine.StateTransition result (target outside this
		// Definition) has no parent engine to hand it to at this layer, so
		// it's treated the same as a natural completion.
		w.finish(ctx, err)
	})
}

// finish settles the workflow's terminal status from err (the RunAsync
// body's outcome), or from a previously recorded Stop(err) override if
// one is pending, and records the matching terminal event in the event
// log before notifying the repository (§4.6/§6).
func (w *WorkflowCore) finish(ctx context.Context, err error) {
	w.mu.Lock()
	if w.status.IsTerminal() {
		w.mu.Unlock()
		return
	}
	var eventKind string
	switch {
	case w.forcedFault != nil:
		w.status = StatusFaulted
		w.faultErr = w.forcedFault
		eventKind = "faulted"
	case err == nil:
		w.status = StatusCompleted
		eventKind = "completed"
	case wferrors.IsCancelled(err):
		w.status = StatusCanceled
		w.cancelErr = err
		eventKind = "canceled"
	default:
		w.status = StatusFaulted
		w.faultErr = err
		eventKind = "faulted"
	}
	status := w.status
	w.mu.Unlock()

	w.log.LogEvent(Event{At: w.clock.Now(), Kind: eventKind, Name: w.ID})
	close(w.doneCh)
	w.gate.Close()

	w.obs.Logger.Info("workflow reached terminal status", zap.String("id", w.ID), zap.Stringer("status", status))
	w.obs.Scope.Tagged(map[string]string{"status": status.String()}).Counter("workflow_terminal").Inc(1)

	if w.repo == nil {
		return
	}
	switch status {
	case StatusCompleted:
		w.repo.MarkWorkflowAsCompleted(ctx, w.ID)
	case StatusCanceled:
		w.repo.MarkWorkflowAsCanceled(ctx, w.ID, w.cancelErr)
	case StatusFaulted:
		w.repo.MarkWorkflowAsFailed(ctx, w.ID, w.faultErr)
	}
}

// ExecuteAction runs actionName (resolving synonyms to its primary form),
// logs it to the event log, and persists the resulting data state.
// Runs synchronously on the workflow's own scheduler goroutine so it never
// races the running body.
func (w *WorkflowCore) ExecuteAction(ctx context.Context, name string, values *namedvalues.Values) error {
	primary, ok := w.resolveActionName(name)
	if !ok {
		return wferrors.NotFoundf("action %q not registered", name)
	}
	if values == nil {
		values = namedvalues.New()
	}

	select {
	case <-w.startedCh:
	case <-ctx.Done():
		return wferrors.Cancelled("ExecuteAction: context done before workflow started")
	}

	span := w.obs.Tracer.StartSpan("ExecuteAction", opentracing.Tag{Key: "action", Value: primary})
	defer span.Finish()

	return w.sched.RunSync(ctx, func() error {
		w.mu.Lock()
		terminal := w.status.IsTerminal()
		w.mu.Unlock()
		if terminal {
			return wferrors.InvalidUsagef("workflow %s already terminal", w.ID)
		}

		op, err := w.gate.CreateOperation(w.root, true)
		if err != nil {
			return err
		}
		defer op.Complete()

		// §4.6 step 5: the handler sees which action invoked it via
		// parameters["Action"], and any parameter matching a declared
		// data field is applied to the workflow's own data before the
		// handler runs.
		values.Set("Action", primary)
		for _, name := range values.Names() {
			if name == "Action" {
				continue
			}
			if _, ok := w.meta.Field(name); ok {
				w.data.Set(name, values.Get(name))
			}
		}

		if err := w.inst.ExecuteAction(ctx, w.root, primary, values); err != nil {
			span.SetTag("error", true)
			return err
		}
		w.log.LogAction(w.clock.Now(), primary, values)
		w.actionsExecuted.Inc()
		w.obs.Scope.Tagged(map[string]string{"action": primary}).Counter("actions_executed").Inc(1)
		w.obs.Logger.Debug("action executed", zap.String("id", w.ID), zap.String("action", primary))

		if w.repo != nil {
			next, _ := w.dates.NextActivationDate()
			return w.repo.SaveWorkflowData(ctx, w.ID, w.data.Persistent(), next)
		}
		return nil
	})
}

// ActionsExecuted returns the total number of actions successfully
// executed against this instance.
func (w *WorkflowCore) ActionsExecuted() int64 {
	return w.actionsExecuted.Load()
}

// GetAvailableActions returns, in declaration order, every registered
// primary action name (synonyms excluded) currently resolving to
// namedvalues.True on the instance's active state path and not marked
// Hidden. Blocks until the workflow has started (§4.6).
func (w *WorkflowCore) GetAvailableActions() []string {
	<-w.startedCh

	w.mu.Lock()
	order := append([]string(nil), w.actionOrder...)
	hidden := w.hiddenActions
	w.mu.Unlock()

	var out []string
	for _, primary := range order {
		if hidden[primary] {
			continue
		}
		if w.inst.IsActionAllowed(primary) == namedvalues.True {
			out = append(out, primary)
		}
	}
	return out
}

// Status returns the workflow's current lifecycle status.
func (w *WorkflowCore) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Done returns a channel closed once the workflow reaches a terminal
// status.
func (w *WorkflowCore) Done() <-chan struct{} {
	return w.doneCh
}

// Cancel cancels the workflow's root scope, unblocking any in-flight
// operator wait with a Cancelled error.
func (w *WorkflowCore) Cancel(cause error) {
	w.root.Cancel(cause)
}

// Data exposes the instance's declared data fields.
func (w *WorkflowCore) Data() *DataStore {
	return w.data
}

// EventLog exposes the bounded event log.
func (w *WorkflowCore) EventLog() *EventLog {
	return w.log
}

// NextActivationDate reports the earliest pending wake-up date registered
// by an in-flight WaitForDate/WaitWithTimeout, if any.
func (w *WorkflowCore) NextActivationDate() (time.Time, bool) {
	return w.dates.NextActivationDate()
}

// Gate exposes the operation-readiness gate, e.g. for a Host implementing
// query methods that must wait for quiescence before reading state.
func (w *WorkflowCore) Gate() *gate.Gate {
	return w.gate
}

// Stop cancels the workflow's root scope and, once the body ends, forces
// the terminal status to Faulted with err — overriding a natural
// completion or cancellation that raced it — emitting WorkflowFaulted and
// calling the repository's MarkWorkflowAsFailed instead of whatever
// finish() would otherwise have recorded (§4.6). Returns
// wferrors.InvalidUsage if the workflow has already reached a terminal
// status.
func (w *WorkflowCore) Stop(ctx context.Context, err error) error {
	w.mu.Lock()
	if w.status.IsTerminal() {
		w.mu.Unlock()
		return wferrors.InvalidUsagef("workflow %s already terminal", w.ID)
	}
	w.forcedFault = err
	w.mu.Unlock()

	w.root.Cancel(wferrors.Cancelled("workflow stopped"))
	<-w.doneCh
	return nil
}

// StopScheduler shuts the workflow's scheduler down without waiting for
// the body to reach a terminal state; used by Host.Shutdown for a hard
// stop of an instance that has already finished or been abandoned.
func (w *WorkflowCore) StopScheduler() {
	w.sched.Stop()
}
