package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ── Workflow scanning ─────────────────────────────────────────────

const workflowColumns = `id, name, description, status, current_task_id, metadata, created_at, updated_at`

// scanWorkflow reads one workflow row; tasks are attached by the caller.
func scanWorkflow(row rowScanner) (*workflow.Workflow, error) {
	var (
		rawID     string
		rawCur    *string
		rawStatus string
		metadata  []byte
		wf        workflow.Workflow
	)

	err := row.Scan(
		&rawID, &wf.Name, &wf.Description, &rawStatus, &rawCur,
		&metadata, &wf.CreatedAt, &wf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.ID, err = id.ParseWorkflowID(rawID)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: parse workflow id %q: %w", rawID, err)
	}
	wf.Status = workflow.Status(rawStatus)
	wf.Metadata = jsonToAnyMap(metadata)
	wf.Tasks = make(map[id.TaskID]*task.Task)

	if rawCur != nil && *rawCur != "" {
		cur, curErr := id.ParseTaskID(*rawCur)
		if curErr != nil {
			return nil, fmt.Errorf("handoff/postgres: parse current task id %q: %w", *rawCur, curErr)
		}
		wf.CurrentTaskID = &cur
	}

	return &wf, nil
}

// ── Task scanning ─────────────────────────────────────────────────

const taskColumns = `id, name, description, state, assigned_agent, dependencies, metadata, created_at, updated_at`

func scanTask(row rowScanner) (*task.Task, error) {
	var (
		rawID    string
		rawState string
		deps     []byte
		metadata []byte
		t        task.Task
	)

	err := row.Scan(
		&rawID, &t.Name, &t.Description, &rawState, &t.AssignedAgent,
		&deps, &metadata, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ID, err = id.ParseTaskID(rawID)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: parse task id %q: %w", rawID, err)
	}
	t.State = task.State(rawState)
	t.Metadata = jsonToAnyMap(metadata)

	for _, raw := range jsonToStrings(deps) {
		dep, depErr := id.ParseTaskID(raw)
		if depErr != nil {
			return nil, fmt.Errorf("handoff/postgres: parse dependency id %q: %w", raw, depErr)
		}
		t.Dependencies = append(t.Dependencies, dep)
	}

	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]*task.Task, error) {
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ── Transition scanning ───────────────────────────────────────────

const transitionColumns = `id, workflow_id, task_id, from_state, to_state, agent_id, reason, created_at, updated_at`

func scanTransition(row rowScanner) (*audit.Transition, error) {
	var (
		rawID   string
		rawWfID string
		rawTkID string
		rawFrom string
		rawTo   string
		tr      audit.Transition
	)

	err := row.Scan(
		&rawID, &rawWfID, &rawTkID, &rawFrom, &rawTo,
		&tr.Agent, &tr.Reason, &tr.CreatedAt, &tr.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	tr.ID, err = id.ParseTransitionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: parse transition id %q: %w", rawID, err)
	}
	tr.WorkflowID, err = id.ParseWorkflowID(rawWfID)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: parse workflow id %q: %w", rawWfID, err)
	}
	tr.TaskID, err = id.ParseTaskID(rawTkID)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: parse task id %q: %w", rawTkID, err)
	}
	tr.From = task.State(rawFrom)
	tr.To = task.State(rawTo)

	return &tr, nil
}

func collectTransitions(rows pgx.Rows) ([]*audit.Transition, error) {
	defer rows.Close()

	trail := make([]*audit.Transition, 0)
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		trail = append(trail, tr)
	}
	return trail, rows.Err()
}

// ── Agent scanning ────────────────────────────────────────────────

const agentColumns = `id, name, status, connected_at, last_seen, metadata, created_at, updated_at`

func scanAgent(row rowScanner) (*agent.Agent, error) {
	var (
		rawStatus string
		metadata  []byte
		a         agent.Agent
	)

	err := row.Scan(
		&a.ID, &a.Name, &rawStatus, &a.ConnectedAt, &a.LastSeen,
		&metadata, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = agent.Status(rawStatus)
	a.Metadata = jsonToMap(metadata)

	return &a, nil
}

// taskInsertArgs flattens a task into the argument list shared by the
// batched insert paths.
func taskInsertArgs(workflowID id.WorkflowID, position int, t *task.Task) []any {
	deps := make([]string, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		deps = append(deps, d.String())
	}
	return []any{
		t.ID.String(), workflowID.String(), position, t.Name, t.Description,
		string(t.State), t.AssignedAgent, stringsToJSON(deps),
		anyMapToJSON(t.Metadata), t.CreatedAt, t.UpdatedAt,
	}
}
