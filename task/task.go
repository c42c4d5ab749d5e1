package task

import (
	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
)

// State represents the lifecycle state of a task.
type State string

const (
	// StatePending means the task has not started; it may be waiting on
	// dependencies.
	StatePending State = "pending"
	// StateInProgress means an agent is actively working the task.
	StateInProgress State = "in_progress"
	// StateReview means the task's output is awaiting review.
	StateReview State = "review"
	// StateBlocked means the task cannot proceed (agent lost, external
	// obstacle). Blocked tasks return to pending or in_progress.
	StateBlocked State = "blocked"
	// StateCompleted means the task is done. Terminal.
	StateCompleted State = "completed"
)

// Valid reports whether s is one of the five defined states.
func (s State) Valid() bool {
	switch s {
	case StatePending, StateInProgress, StateReview, StateBlocked, StateCompleted:
		return true
	}
	return false
}

// Terminal reports whether s admits no outgoing transitions.
func (s State) Terminal() bool { return s == StateCompleted }

// Task represents a unit of work inside a workflow. Tasks are owned
// exclusively by their parent workflow and mutate only through
// coordinator-mediated transitions.
type Task struct {
	handoff.Entity

	ID            id.TaskID      `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description,omitempty"`
	State         State          `json:"state"`
	AssignedAgent string         `json:"assigned_agent,omitempty"`
	Dependencies  []id.TaskID    `json:"dependencies,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = make([]id.TaskID, len(t.Dependencies))
		copy(cp.Dependencies, t.Dependencies)
	}
	if t.Metadata != nil {
		cp.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// Spec describes a task to be created as part of a new workflow.
// Dependencies are declared by name against sibling specs; the state
// machine resolves them to task IDs at build time.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	State       State          `json:"state,omitempty"` // defaults to pending
	Metadata    map[string]any `json:"metadata,omitempty"`
}
