package workflowtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHarnessAdvanceMovesClock(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := New(start)
	h.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), h.Clock.Now())
}

func TestMockRepositorySatisfiesExpectations(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h := New(start)
	h.Repo.On("MarkWorkflowAsCompleted", mock.Anything, "wf-1").Return(nil)

	err := h.Repo.MarkWorkflowAsCompleted(context.Background(), "wf-1")
	require.NoError(t, err)
	h.Repo.AssertExpectations(t)
}

func TestNextCronActivationComputesNextFireTime(t *testing.T) {
	after := time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)
	next, err := NextCronActivation("0 10 * * *", after)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC), next)
}
