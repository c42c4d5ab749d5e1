package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// SaveWorkflow persists a workflow together with all of its tasks in a
// single transaction.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("handoff/postgres: begin save workflow: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var cur *string
	if wf.CurrentTaskID != nil {
		v := wf.CurrentTaskID.String()
		cur = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO handoff_workflows (
			id, name, description, status, current_task_id, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		wf.ID.String(), wf.Name, wf.Description, string(wf.Status), cur,
		anyMapToJSON(wf.Metadata), wf.CreatedAt, wf.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return handoff.ErrWorkflowExists
		}
		return fmt.Errorf("handoff/postgres: save workflow: %w", err)
	}

	for pos, taskID := range wf.Order {
		t := wf.Tasks[taskID]
		if t == nil {
			return fmt.Errorf("handoff/postgres: save workflow: task %s missing from set", taskID)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO handoff_tasks (
				id, workflow_id, position, name, description,
				state, assigned_agent, dependencies, metadata,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			taskInsertArgs(wf.ID, pos, t)...,
		)
		if err != nil {
			return fmt.Errorf("handoff/postgres: save workflow tasks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("handoff/postgres: commit save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID, tasks included.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+workflowColumns+` FROM handoff_workflows WHERE id = $1`,
		workflowID.String(),
	)

	wf, err := scanWorkflow(row)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("handoff/postgres: get workflow: %w", err)
	}

	if err := s.loadTasks(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// loadTasks attaches a workflow's tasks in position order.
func (s *Store) loadTasks(ctx context.Context, wf *workflow.Workflow) error {
	rows, err := s.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM handoff_tasks
		WHERE workflow_id = $1
		ORDER BY position ASC`,
		wf.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: load tasks: %w", err)
	}

	tasks, err := collectTasks(rows)
	if err != nil {
		return fmt.Errorf("handoff/postgres: load tasks: %w", err)
	}

	wf.Order = make([]id.TaskID, 0, len(tasks))
	for _, t := range tasks {
		wf.Order = append(wf.Order, t.ID)
		wf.Tasks[t.ID] = t
	}
	return nil
}

// ListWorkflows returns workflows matching the given options.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	var (
		conds []string
		args  []any
	)
	if opts.Status != "" {
		args = append(args, string(opts.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + workflowColumns + ` FROM handoff_workflows`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at ASC`

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return s.queryWorkflows(ctx, query, args...)
}

// ListActive returns every workflow that has not completed.
func (s *Store) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	return s.queryWorkflows(ctx,
		`SELECT `+workflowColumns+` FROM handoff_workflows
		WHERE status != $1
		ORDER BY created_at ASC`,
		string(workflow.StatusCompleted),
	)
}

func (s *Store) queryWorkflows(ctx context.Context, query string, args ...any) ([]*workflow.Workflow, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list workflows: %w", err)
	}

	var workflows []*workflow.Workflow
	for rows.Next() {
		wf, scanErr := scanWorkflow(rows)
		if scanErr != nil {
			rows.Close()
			return nil, fmt.Errorf("handoff/postgres: list workflows: %w", scanErr)
		}
		workflows = append(workflows, wf)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("handoff/postgres: list workflows: %w", err)
	}

	for _, wf := range workflows {
		if err := s.loadTasks(ctx, wf); err != nil {
			return nil, err
		}
	}
	return workflows, nil
}

// UpdateTask persists changes to a single task row. Position and
// dependencies are fixed at creation and never updated.
func (s *Store) UpdateTask(ctx context.Context, workflowID id.WorkflowID, t *task.Task) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE handoff_tasks SET
			state = $3, assigned_agent = $4, metadata = $5, updated_at = NOW()
		WHERE id = $1 AND workflow_id = $2`,
		t.ID.String(), workflowID.String(),
		string(t.State), t.AssignedAgent, anyMapToJSON(t.Metadata),
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return handoff.ErrTaskNotFound
	}
	return nil
}

// UpdateWorkflowStatus persists the workflow's status and current-task
// pointer. A nil currentTaskID clears the pointer.
func (s *Store) UpdateWorkflowStatus(ctx context.Context, workflowID id.WorkflowID, status workflow.Status, currentTaskID *id.TaskID) error {
	var cur *string
	if currentTaskID != nil {
		v := currentTaskID.String()
		cur = &v
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE handoff_workflows SET
			status = $2, current_task_id = $3, updated_at = NOW()
		WHERE id = $1`,
		workflowID.String(), string(status), cur,
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: update workflow status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return handoff.ErrWorkflowNotFound
	}
	return nil
}
