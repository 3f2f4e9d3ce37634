package internal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/statemachine"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) SaveWorkflowData(ctx context.Context, id string, data *namedvalues.Values, next time.Time) error {
	args := m.Called(ctx, id, data, next)
	return args.Error(0)
}

func (m *mockRepo) MarkWorkflowAsCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) MarkWorkflowAsCanceled(ctx context.Context, id string, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

func (m *mockRepo) MarkWorkflowAsFailed(ctx context.Context, id string, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

func twoStateDef() *statemachine.Definition {
	b := statemachine.NewBuilder()
	b.ConfigureState("Pending").
		OnAction("approve", namedvalues.True, func(values *namedvalues.Values) (statemachine.Transition, error) {
			return statemachine.GoTo("Approved"), nil
		})
	b.ConfigureState("Approved")
	return b.Build()
}

func TestExecuteActionTransitionsAndPersists(t *testing.T) {
	repo := &mockRepo{}
	repo.On("SaveWorkflowData", mock.Anything, "wf-1", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkWorkflowAsCompleted", mock.Anything, "wf-1").Maybe().Return(nil)

	meta := NewMetadata()
	core := NewWorkflowCore("wf-1", twoStateDef(), meta, repo, clock.NewRealClock(), 16)
	core.ConfigureAction(ActionDescriptor{Primary: "approve", Synonyms: []string{"accept"}})

	core.Start(context.Background(), "Pending", false, nil)
	require.Eventually(t, func() bool { return len(core.inst.CurrentPath()) == 1 }, time.Second, time.Millisecond)

	err := core.ExecuteAction(context.Background(), "accept", namedvalues.New())
	require.NoError(t, err)

	repo.AssertCalled(t, "SaveWorkflowData", mock.Anything, "wf-1", mock.Anything, mock.Anything)
	core.Cancel(nil)
}

func TestExecuteActionUnknownNameReturnsNotFound(t *testing.T) {
	meta := NewMetadata()
	core := NewWorkflowCore("wf-2", twoStateDef(), meta, nil, clock.NewRealClock(), 16)
	core.Start(context.Background(), "Pending", false, nil)

	err := core.ExecuteAction(context.Background(), "nonexistent", nil)
	assert.Error(t, err)
	core.Cancel(nil)
}

func TestDataStoreRoundTripsPersistentFields(t *testing.T) {
	meta := NewMetadata()
	meta.DeclareDataField("amount", Persistent, 0)
	meta.DeclareDataField("scratch", Transient, "")

	store := NewDataStore(meta)
	require.NoError(t, store.Set("amount", 42))
	require.NoError(t, store.Set("scratch", "ignored on persist"))

	persisted := store.Persistent()
	assert.Equal(t, 42, persisted.Get("amount"))
	assert.False(t, persisted.Has("scratch"))
}

func TestEventLogEvictsOldestWhenFull(t *testing.T) {
	log := NewEventLog(2)
	log.LogEvent(Event{Kind: "action", Name: "first"})
	log.LogEvent(Event{Kind: "action", Name: "second"})
	log.LogEvent(Event{Kind: "action", Name: "third"})

	events := log.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Name)
	assert.Equal(t, "third", events[1].Name)
}

func TestCoordinatorDispatchesActionDependency(t *testing.T) {
	repo := &mockRepo{}
	repo.On("MarkWorkflowAsCompleted", mock.Anything, mock.Anything).Maybe().Return(nil)

	target := NewWorkflowCore("target", twoStateDef(), NewMetadata(), repo, clock.NewRealClock(), 4)
	target.Start(context.Background(), "Pending", false, nil)

	coord := NewCoordinator()
	received := make(chan *namedvalues.Values, 1)
	coord.RegisterActionDependency("sourceAction", ActionDependency{
		Target: target,
		Handler: func(values *namedvalues.Values) {
			received <- values
		},
	})

	coord.NotifyActionExecuted("sourceAction", namedvalues.New())
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
	target.Cancel(nil)
}
