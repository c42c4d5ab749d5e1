package workflow

import (
	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
)

// Status represents the lifecycle state of a workflow.
type Status string

const (
	// StatusActive means the workflow has at least one task that is not
	// completed.
	StatusActive Status = "active"
	// StatusCompleted means every task in the workflow is completed.
	// Terminal.
	StatusCompleted Status = "completed"
	// StatusPaused means the workflow is held: task transitions are
	// rejected until it is resumed.
	StatusPaused Status = "paused"
)

// Workflow is a named collection of tasks with a dependency graph.
// Tasks preserves identity lookup; Order preserves the creation order
// used for deterministic advancement.
type Workflow struct {
	handoff.Entity

	ID            id.WorkflowID             `json:"id"`
	Name          string                    `json:"name"`
	Description   string                    `json:"description,omitempty"`
	Status        Status                    `json:"status"`
	CurrentTaskID *id.TaskID                `json:"current_task_id,omitempty"`
	Tasks         map[id.TaskID]*task.Task  `json:"tasks"`
	Order         []id.TaskID               `json:"order"`
	Metadata      map[string]any            `json:"metadata,omitempty"`
}

// Task returns the task with the given ID, or nil if absent.
func (w *Workflow) Task(taskID id.TaskID) *task.Task {
	return w.Tasks[taskID]
}

// TasksInOrder returns the workflow's tasks in creation order.
func (w *Workflow) TasksInOrder() []*task.Task {
	out := make([]*task.Task, 0, len(w.Order))
	for _, tid := range w.Order {
		if t, ok := w.Tasks[tid]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the workflow. Transitions mutate a clone
// so that a failed persistence attempt leaves the original untouched.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	if w.CurrentTaskID != nil {
		cur := *w.CurrentTaskID
		cp.CurrentTaskID = &cur
	}
	cp.Tasks = make(map[id.TaskID]*task.Task, len(w.Tasks))
	for tid, t := range w.Tasks {
		cp.Tasks[tid] = t.Clone()
	}
	cp.Order = make([]id.TaskID, len(w.Order))
	copy(cp.Order, w.Order)
	if w.Metadata != nil {
		cp.Metadata = make(map[string]any, len(w.Metadata))
		for k, v := range w.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Spec describes a workflow to be created.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tasks       []task.Spec    `json:"tasks"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
