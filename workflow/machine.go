package workflow

import (
	"fmt"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
)

// Build constructs a workflow from a spec. Task dependencies are
// declared by sibling name and resolved to task IDs here. The returned
// workflow is active with its current-task pointer on the first task
// in declaration order whose dependencies are already satisfied.
func Build(spec Spec) (*Workflow, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: workflow name is required", handoff.ErrInvalidInput)
	}
	if len(spec.Tasks) == 0 {
		return nil, fmt.Errorf("%w: workflow requires at least one task", handoff.ErrInvalidInput)
	}

	wf := &Workflow{
		Entity:      handoff.NewEntity(),
		ID:          id.NewWorkflowID(),
		Name:        spec.Name,
		Description: spec.Description,
		Status:      StatusActive,
		Tasks:       make(map[id.TaskID]*task.Task, len(spec.Tasks)),
		Order:       make([]id.TaskID, 0, len(spec.Tasks)),
		Metadata:    spec.Metadata,
	}

	byName := make(map[string]id.TaskID, len(spec.Tasks))
	for _, ts := range spec.Tasks {
		if ts.Name == "" {
			return nil, fmt.Errorf("%w: task name is required", handoff.ErrInvalidInput)
		}
		if _, dup := byName[ts.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate task name %q", handoff.ErrInvalidInput, ts.Name)
		}
		state := ts.State
		if state == "" {
			state = task.StatePending
		}
		if !state.Valid() {
			return nil, fmt.Errorf("%w: unknown task state %q", handoff.ErrInvalidInput, ts.State)
		}
		t := &task.Task{
			Entity:      handoff.NewEntity(),
			ID:          id.NewTaskID(),
			Name:        ts.Name,
			Description: ts.Description,
			State:       state,
			Metadata:    ts.Metadata,
		}
		byName[ts.Name] = t.ID
		wf.Tasks[t.ID] = t
		wf.Order = append(wf.Order, t.ID)
	}

	// Second pass: resolve dependency names now that every sibling has
	// an ID.
	for i, ts := range spec.Tasks {
		t := wf.Tasks[wf.Order[i]]
		for _, dep := range ts.DependsOn {
			depID, ok := byName[dep]
			if !ok {
				return nil, fmt.Errorf("%w: task %q depends on unknown task %q", handoff.ErrInvalidInput, ts.Name, dep)
			}
			if depID == t.ID {
				return nil, fmt.Errorf("%w: task %q depends on itself", handoff.ErrInvalidInput, ts.Name)
			}
			t.Dependencies = append(t.Dependencies, depID)
		}
	}

	if err := checkAcyclic(wf); err != nil {
		return nil, err
	}

	// A task seeded past pending must already have its dependencies
	// satisfied.
	for _, t := range wf.TasksInOrder() {
		if t.State == task.StateInProgress || t.State == task.StateReview {
			if met, _ := DependenciesMet(wf, t.ID); !met {
				return nil, fmt.Errorf("%w: task %q starts %s with unmet dependencies", handoff.ErrInvalidInput, t.Name, t.State)
			}
		}
	}

	advance(wf)
	return wf, nil
}

// checkAcyclic verifies the dependency graph has no cycles.
func checkAcyclic(wf *Workflow) error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	mark := make(map[id.TaskID]int, len(wf.Tasks))

	var visit func(tid id.TaskID) error
	visit = func(tid id.TaskID) error {
		switch mark[tid] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: dependency cycle through task %q", handoff.ErrInvalidInput, wf.Tasks[tid].Name)
		}
		mark[tid] = visiting
		for _, dep := range wf.Tasks[tid].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		mark[tid] = done
		return nil
	}

	for _, tid := range wf.Order {
		if err := visit(tid); err != nil {
			return err
		}
	}
	return nil
}

// DependenciesMet reports whether every dependency of the given task is
// completed, and returns the IDs of those still outstanding.
func DependenciesMet(wf *Workflow, taskID id.TaskID) (bool, []id.TaskID) {
	t := wf.Tasks[taskID]
	if t == nil {
		return false, nil
	}
	var unmet []id.TaskID
	for _, dep := range t.Dependencies {
		d := wf.Tasks[dep]
		if d == nil || d.State != task.StateCompleted {
			unmet = append(unmet, dep)
		}
	}
	return len(unmet) == 0, unmet
}

// Assign sets the agent on a task. Assignment is only meaningful before
// the task completes. The input workflow is not mutated; the change is
// applied to a clone.
func Assign(wf *Workflow, taskID id.TaskID, agent string) (*Workflow, error) {
	if agent == "" {
		return nil, fmt.Errorf("%w: agent is required", handoff.ErrInvalidInput)
	}
	t := wf.Tasks[taskID]
	if t == nil {
		return nil, fmt.Errorf("%w: %s", handoff.ErrTaskNotFound, taskID)
	}
	if t.State == task.StateCompleted {
		return nil, fmt.Errorf("%w: task %q is completed", handoff.ErrInvalidTransition, t.Name)
	}
	next := wf.Clone()
	nt := next.Tasks[taskID]
	nt.AssignedAgent = agent
	nt.Touch()
	next.Touch()
	return next, nil
}

// Transition applies a state change to a task. The input workflow is
// not mutated; all changes, including dependency gating, current-task
// pointer maintenance, and workflow advancement, are applied to a clone
// which is returned on success.
func Transition(wf *Workflow, taskID id.TaskID, to task.State) (*Workflow, error) {
	t := wf.Tasks[taskID]
	if t == nil {
		return nil, fmt.Errorf("%w: %s", handoff.ErrTaskNotFound, taskID)
	}
	if wf.Status == StatusPaused {
		return nil, fmt.Errorf("%w: workflow %q is paused", handoff.ErrInvalidTransition, wf.Name)
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown state %q", handoff.ErrInvalidInput, to)
	}
	if !task.CanTransition(t.State, to) {
		return nil, fmt.Errorf("%w: task %q cannot move %s -> %s", handoff.ErrInvalidTransition, t.Name, t.State, to)
	}
	if to == task.StateInProgress {
		if met, unmet := DependenciesMet(wf, taskID); !met {
			return nil, fmt.Errorf("%w: task %q has %d incomplete dependencies", handoff.ErrDependencyUnmet, t.Name, len(unmet))
		}
	}

	next := wf.Clone()
	nt := next.Tasks[taskID]

	// The current-task pointer tracks only a pending task; clear it as
	// soon as that task leaves pending.
	if nt.State == task.StatePending && next.CurrentTaskID != nil && *next.CurrentTaskID == taskID {
		next.CurrentTaskID = nil
	}

	nt.State = to
	nt.Touch()
	next.Touch()

	if to == task.StateCompleted {
		advance(next)
	}
	return next, nil
}

// advance recomputes the workflow's current-task pointer and status.
// The pointer lands on the first pending task in creation order whose
// dependencies are all completed; when no task remains incomplete the
// workflow itself completes.
func advance(wf *Workflow) {
	wf.CurrentTaskID = nil
	allDone := true
	for _, tid := range wf.Order {
		t := wf.Tasks[tid]
		if t.State == task.StateCompleted {
			continue
		}
		allDone = false
		if wf.CurrentTaskID == nil && t.State == task.StatePending {
			if met, _ := DependenciesMet(wf, tid); met {
				cur := tid
				wf.CurrentTaskID = &cur
			}
		}
	}
	if allDone {
		wf.Status = StatusCompleted
	}
}
