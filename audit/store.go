package audit

import (
	"context"

	"github.com/xraph/handoff/id"
)

// Store defines the persistence contract for the transition trail.
// Implementations must return transitions most-recent first.
type Store interface {
	// AppendTransition persists a transition record. Records are never
	// updated or deleted.
	AppendTransition(ctx context.Context, tr *Transition) error

	// ListTaskTransitions returns the full trail for one task,
	// most-recent first.
	ListTaskTransitions(ctx context.Context, taskID id.TaskID) ([]*Transition, error)

	// ListWorkflowTransitions returns the full trail for one workflow,
	// most-recent first.
	ListWorkflowTransitions(ctx context.Context, workflowID id.WorkflowID) ([]*Transition, error)
}
