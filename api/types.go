package api

import (
	"errors"

	"github.com/xraph/forge"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// CreateWorkflowRequest is the body for POST /workflows.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tasks       []task.Spec    `json:"tasks"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Spec converts the request into a workflow build spec.
func (r *CreateWorkflowRequest) Spec() workflow.Spec {
	return workflow.Spec{
		Name:        r.Name,
		Description: r.Description,
		Tasks:       r.Tasks,
		Metadata:    r.Metadata,
	}
}

// ListWorkflowsRequest carries query filters for GET /workflows.
type ListWorkflowsRequest struct {
	Status string `query:"status,omitempty"`
	Limit  int    `query:"limit,omitempty"`
	Offset int    `query:"offset,omitempty"`
}

// ListTransitionsRequest carries query filters for the transition trail.
type ListTransitionsRequest struct {
	TaskID string `query:"taskId,omitempty"`
}

// AssignTaskRequest is the body for task assignment.
type AssignTaskRequest struct {
	AgentID string `json:"agent_id"`
}

// CompleteTaskRequest is the body for task completion. HandoffData is
// forwarded to the next task's agent on the handoff event.
type CompleteTaskRequest struct {
	HandoffData map[string]any `json:"handoff_data,omitempty"`
}

// CompleteTaskResponse reports the completed task and, when
// advancement elected one, the next eligible task.
type CompleteTaskResponse struct {
	CompletedTask *task.Task `json:"completed_task"`
	NextTask      *task.Task `json:"next_task,omitempty"`
}

// BlockTaskRequest is the body for blocking a task.
type BlockTaskRequest struct {
	Reason string `json:"reason,omitempty"`
}

// TransitionTaskRequest is the body for an explicit state transition.
type TransitionTaskRequest struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// RegisterAgentRequest is the body for agent registration.
type RegisterAgentRequest struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
}

// CanStartResponse reports start eligibility for a task.
type CanStartResponse struct {
	CanStart  bool     `json:"can_start"`
	UnmetDeps []string `json:"unmet_dependencies,omitempty"`
}

const maxListLimit = 500

// defaultLimit clamps list limits to a sane window.
func defaultLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// mapStoreError converts handoff sentinel errors to forge HTTP errors.
func mapStoreError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return forge.NotFound(err.Error())
	case errors.Is(err, handoff.ErrInvalidTransition),
		errors.Is(err, handoff.ErrDependencyUnmet),
		errors.Is(err, handoff.ErrInvalidInput),
		errors.Is(err, handoff.ErrWorkflowExists),
		errors.Is(err, handoff.ErrAgentExists):
		return forge.BadRequest(err.Error())
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, handoff.ErrWorkflowNotFound) ||
		errors.Is(err, handoff.ErrTaskNotFound) ||
		errors.Is(err, handoff.ErrAgentNotFound)
}
