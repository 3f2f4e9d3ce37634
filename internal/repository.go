package internal

import (
	"context"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
)

// Repository is the external persistence contract WorkflowCore invokes at
// every lifecycle milestone (§4.6/§6). Implementations typically write to
// a database; workflowtest.Harness supplies an in-memory testify/mock
// implementation for tests.
type Repository interface {
	// SaveWorkflowData persists id's current data fields and, if the
	// workflow has a pending WaitForDate/WaitWithTimeout wake-up, the
	// earliest such date so an external scheduler knows when to resume it.
	// nextActivationDate is the zero time when there is none pending.
	SaveWorkflowData(ctx context.Context, id string, data *namedvalues.Values, nextActivationDate time.Time) error

	// MarkWorkflowAsCompleted records that id finished its RunAsync body
	// successfully.
	MarkWorkflowAsCompleted(ctx context.Context, id string) error

	// MarkWorkflowAsCanceled records that id was canceled before
	// completing.
	MarkWorkflowAsCanceled(ctx context.Context, id string, cause error) error

	// MarkWorkflowAsFailed records that id's body returned an
	// unrecovered error.
	MarkWorkflowAsFailed(ctx context.Context, id string, cause error) error
}
