// Package audit records every task state transition as an immutable
// trail. Transitions are appended by the coordinator after the state
// change persists and are queryable per task or per workflow.
package audit

import (
	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
)

// Transition is one entry in the audit trail. From is empty for the
// synthetic creation entry written when a task first persists.
type Transition struct {
	handoff.Entity

	ID         id.TransitionID `json:"id"`
	WorkflowID id.WorkflowID   `json:"workflow_id"`
	TaskID     id.TaskID       `json:"task_id"`
	From       task.State      `json:"from,omitempty"`
	To         task.State      `json:"to"`
	Agent      string          `json:"agent,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// New builds a transition record for a task moving from -> to.
func New(workflowID id.WorkflowID, taskID id.TaskID, from, to task.State, agent string) *Transition {
	return &Transition{
		Entity:     handoff.NewEntity(),
		ID:         id.NewTransitionID(),
		WorkflowID: workflowID,
		TaskID:     taskID,
		From:       from,
		To:         to,
		Agent:      agent,
	}
}
