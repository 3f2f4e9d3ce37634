// Package runtime provides Host, a process-local registry and lifecycle
// manager for workflow instances, replacing the out-of-scope dependency
// injection container with a plain registry of constructors (§10.4) — the
// same Start/Run/Stop shape the teacher ecosystem uses for its worker
// lifecycle, applied here to spawning workflow instances instead of
// polling a task queue.
package runtime

import (
	"context"
	"sync"

	"github.com/pborman/uuid"

	"github.com/DevBiker/WorkflowsCore-sub000/internal"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Factory builds a fresh, not-yet-started workflow Core for one instance
// of a registered workflow type.
type Factory func(id string) *internal.WorkflowCore

// Host registers workflow-type factories and tracks the instances spawned
// from them.
type Host struct {
	mu         sync.Mutex
	factories  map[string]Factory
	instances  map[string]*internal.WorkflowCore
	coordinator *internal.Coordinator
}

// New creates an empty Host sharing the given cross-workflow coordinator.
// Pass nil if the host's workflows don't use cross-workflow dependencies.
func New(coordinator *internal.Coordinator) *Host {
	return &Host{
		factories:   make(map[string]Factory),
		instances:   make(map[string]*internal.WorkflowCore),
		coordinator: coordinator,
	}
}

// Register associates typeName with factory, so Spawn(typeName, id) can
// build instances of it. Registering the same type name twice panics,
// matching the registry idiom used throughout the engine (duplicate
// declaration is a programmer error, not a runtime condition).
func (h *Host) Register(typeName string, factory Factory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.factories[typeName]; ok {
		panic("runtime: workflow type " + typeName + " registered twice")
	}
	h.factories[typeName] = factory
}

// Spawn builds and starts a new instance of typeName identified by id. If
// id is empty, a fresh one is generated, matching the teacher ecosystem's
// own default of assigning a random workflow ID when the caller doesn't
// supply one.
func (h *Host) Spawn(ctx context.Context, typeName, id, initialState string, isRestoring bool, persisted *namedvalues.Values) (*internal.WorkflowCore, error) {
	if id == "" {
		id = uuid.New()
	}

	h.mu.Lock()
	factory, ok := h.factories[typeName]
	if ok {
		if _, exists := h.instances[id]; exists {
			h.mu.Unlock()
			return nil, wferrors.InvalidUsagef("runtime: instance %q already spawned", id)
		}
	}
	h.mu.Unlock()

	if !ok {
		return nil, wferrors.NotFoundf("runtime: workflow type %q not registered", typeName)
	}

	core := factory(id)
	h.mu.Lock()
	h.instances[id] = core
	h.mu.Unlock()

	core.Start(ctx, initialState, isRestoring, persisted)
	return core, nil
}

// Lookup returns the running or completed instance identified by id.
func (h *Host) Lookup(id string) (*internal.WorkflowCore, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.instances[id]
	return c, ok
}

// Coordinator exposes the shared cross-workflow dependency registry.
func (h *Host) Coordinator() *internal.Coordinator {
	return h.coordinator
}

// Shutdown cancels every tracked instance, waits for each to reach a
// terminal state (or for ctx to be done, whichever comes first), and then
// stops its scheduler.
func (h *Host) Shutdown(ctx context.Context) {
	h.mu.Lock()
	instances := make([]*internal.WorkflowCore, 0, len(h.instances))
	for _, c := range h.instances {
		instances = append(instances, c)
	}
	h.mu.Unlock()

	for _, c := range instances {
		c.Cancel(wferrors.Cancelled("runtime: host shutting down"))
	}
	for _, c := range instances {
		select {
		case <-c.Done():
		case <-ctx.Done():
		}
		c.StopScheduler()
	}
}
