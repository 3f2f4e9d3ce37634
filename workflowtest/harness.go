// Package workflowtest is the deterministic test harness for a single
// workflow instance at a time: a manually-advanced clock, a mocked
// Repository, and a cron-based helper for computing the next activation
// date a recurring schedule implies. This is deliberately narrower than a
// Monte-Carlo simulator driving many randomized concurrent workflows —
// that kind of statistical harness is out of scope here (§1/§9); this one
// drives exactly the workflow under test, one step at a time, the way the
// teacher ecosystem's own test suite drives a single decision task at a
// time.
package workflowtest

import (
	"context"
	"time"

	"github.com/robfig/cron"
	"github.com/stretchr/testify/mock"

	wfclock "github.com/DevBiker/WorkflowsCore-sub000/clock"
	"github.com/DevBiker/WorkflowsCore-sub000/internal"
	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
)

// MockRepository is a testify/mock-backed internal.Repository, letting
// tests assert exactly which persistence calls a workflow run made and in
// what order.
type MockRepository struct {
	mock.Mock
}

// NewMockRepository creates a MockRepository with no expectations set.
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

func (m *MockRepository) SaveWorkflowData(ctx context.Context, id string, data *namedvalues.Values, nextActivationDate time.Time) error {
	args := m.Called(ctx, id, data, nextActivationDate)
	return args.Error(0)
}

func (m *MockRepository) MarkWorkflowAsCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) MarkWorkflowAsCanceled(ctx context.Context, id string, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

func (m *MockRepository) MarkWorkflowAsFailed(ctx context.Context, id string, cause error) error {
	args := m.Called(ctx, id, cause)
	return args.Error(0)
}

var _ internal.Repository = (*MockRepository)(nil)

// Harness wires together a TestClock and a MockRepository for driving one
// workflow instance deterministically.
type Harness struct {
	Clock *wfclock.TestClock
	Repo  *MockRepository
}

// New creates a Harness whose clock starts at start.
func New(start time.Time) *Harness {
	return &Harness{
		Clock: wfclock.NewTestClock(start),
		Repo:  NewMockRepository(),
	}
}

// Advance moves the harness clock forward by d, releasing any WaitUntil
// calls whose deadline falls at or before the new time.
func (h *Harness) Advance(d time.Duration) {
	h.Clock.SetCurrentTime(h.Clock.Now().Add(d))
}

// AdvanceTo moves the harness clock to exactly t.
func (h *Harness) AdvanceTo(t time.Time) {
	h.Clock.SetCurrentTime(t)
}

// NextCronActivation returns the next time expr fires strictly after
// after, using the standard five-field cron syntax. This is the one piece
// of schedule-math the harness needs that isn't naturally expressed as a
// fixed deadline, so it borrows the teacher ecosystem's own cron library
// rather than hand-rolling a parser.
func NextCronActivation(expr string, after time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}
