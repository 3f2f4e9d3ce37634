package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingRepo struct {
	mock.Mock
}

func (r *recordingRepo) SaveWorkflowData(ctx context.Context, id string, data *Values, next time.Time) error {
	args := r.Called(ctx, id, data, next)
	return args.Error(0)
}
func (r *recordingRepo) MarkWorkflowAsCompleted(ctx context.Context, id string) error {
	args := r.Called(ctx, id)
	return args.Error(0)
}
func (r *recordingRepo) MarkWorkflowAsCanceled(ctx context.Context, id string, cause error) error {
	args := r.Called(ctx, id, cause)
	return args.Error(0)
}
func (r *recordingRepo) MarkWorkflowAsFailed(ctx context.Context, id string, cause error) error {
	args := r.Called(ctx, id, cause)
	return args.Error(0)
}

// TestApprovalWorkflowEndToEnd exercises the public facade the way a
// concrete workflow type would: build a two-state Definition, declare a
// persistent data field, move it from PendingApproval to Approved via the
// "approve" action, and then cancel it.
func TestApprovalWorkflowEndToEnd(t *testing.T) {
	repo := &recordingRepo{}
	repo.On("SaveWorkflowData", mock.Anything, "wf-approval-1", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkWorkflowAsCompleted", mock.Anything, "wf-approval-1").Maybe().Return(nil)

	b := NewBuilder()
	b.ConfigureState("PendingApproval").
		OnAction("approve", True, func(values *Values) (Transition, error) {
			return GoTo("Approved"), nil
		})
	b.ConfigureState("Approved")
	def := b.Build()

	meta := NewMetadata()
	meta.DeclareDataField("approver", Persistent, "")

	core := New("wf-approval-1", def, meta, repo, NewRealClock(), 16)
	core.ConfigureAction(ActionDescriptor{Primary: "approve"})
	Start(context.Background(), core, "PendingApproval", false, nil)

	values := NewValues()
	values.Set("approver", "alice")
	require.NoError(t, ExecuteAction(context.Background(), core, "approve", values))

	require.NoError(t, core.Data().Set("approver", "alice"))
	got, err := core.Data().Get("approver")
	require.NoError(t, err)
	require.Equal(t, "alice", got)

	core.Cancel(nil)
}
