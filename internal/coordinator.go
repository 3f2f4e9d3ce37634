package internal

import (
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
)

// ActionDependency routes one workflow's executed action to a handler run
// on another workflow's own scheduler goroutine, so the cross-workflow
// side effect never races the target's own state mutation (§4.8's
// coordinator concept).
type ActionDependency struct {
	Target  *WorkflowCore
	Handler func(values *namedvalues.Values)
}

// StateDependency routes one workflow's state entry to a handler run on
// another workflow's scheduler.
type StateDependency struct {
	Target  *WorkflowCore
	Handler func()
}

// Coordinator is the shared registry of cross-workflow dependencies: which
// workflows care about which other workflow's actions or state changes.
// One Coordinator is normally shared process-wide.
type Coordinator struct {
	mu         sync.Mutex
	byAction   map[string][]ActionDependency
	byState    map[string][]StateDependency
}

// NewCoordinator creates an empty Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		byAction: make(map[string][]ActionDependency),
		byState:  make(map[string][]StateDependency),
	}
}

// RegisterActionDependency arranges for handler to run, on target's own
// scheduler, every time any workflow executes sourceAction.
func (c *Coordinator) RegisterActionDependency(sourceAction string, dep ActionDependency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byAction[sourceAction] = append(c.byAction[sourceAction], dep)
}

// RegisterStateDependency arranges for handler to run, on target's own
// scheduler, every time any workflow enters sourceState.
func (c *Coordinator) RegisterStateDependency(sourceState string, dep StateDependency) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byState[sourceState] = append(c.byState[sourceState], dep)
}

// NotifyActionExecuted dispatches every dependency registered against
// actionName. Call this from ExecuteAction after the source workflow's own
// state has settled.
func (c *Coordinator) NotifyActionExecuted(actionName string, values *namedvalues.Values) {
	c.mu.Lock()
	deps := append([]ActionDependency(nil), c.byAction[actionName]...)
	c.mu.Unlock()

	for _, d := range deps {
		dep := d
		dep.Target.sched.Run(func() {
			dep.Handler(values.Clone())
		})
	}
}

// NotifyStateEntered dispatches every dependency registered against
// stateName.
func (c *Coordinator) NotifyStateEntered(stateName string) {
	c.mu.Lock()
	deps := append([]StateDependency(nil), c.byState[stateName]...)
	c.mu.Unlock()

	for _, d := range deps {
		dep := d
		dep.Target.sched.Run(dep.Handler)
	}
}
