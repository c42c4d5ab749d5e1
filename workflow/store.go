package workflow

import (
	"context"

	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
)

// ListOpts controls filtering and pagination for workflow list queries.
type ListOpts struct {
	// Limit is the maximum number of workflows to return. Zero means no
	// limit.
	Limit int
	// Offset is the number of workflows to skip.
	Offset int
	// Status filters by workflow status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for workflows and their tasks.
// Implementations must return workflows with tasks in creation order.
type Store interface {
	// SaveWorkflow persists a new workflow together with all of its
	// tasks. The write is atomic: a crash mid-save must not leave a
	// workflow visible with a partial task set.
	SaveWorkflow(ctx context.Context, wf *Workflow) error

	// GetWorkflow retrieves a workflow by ID, tasks included.
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*Workflow, error)

	// ListWorkflows returns workflows matching the given options.
	ListWorkflows(ctx context.Context, opts ListOpts) ([]*Workflow, error)

	// UpdateTask persists changes to a single task row.
	UpdateTask(ctx context.Context, workflowID id.WorkflowID, t *task.Task) error

	// UpdateWorkflowStatus persists the workflow's status and
	// current-task pointer. A nil currentTaskID clears the pointer.
	UpdateWorkflowStatus(ctx context.Context, workflowID id.WorkflowID, status Status, currentTaskID *id.TaskID) error

	// ListActive returns every workflow that has not completed. Used on
	// startup to rebuild in-memory state.
	ListActive(ctx context.Context) ([]*Workflow, error)
}
