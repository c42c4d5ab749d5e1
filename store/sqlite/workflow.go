package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// SaveWorkflow persists a workflow together with all of its tasks.
// Task rows are written first and the workflow row last, so a crash
// mid-save never leaves a visible workflow with a partial task set:
// reads always start from the workflow row. On failure the task rows
// are removed again.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	for pos, taskID := range wf.Order {
		t := wf.Tasks[taskID]
		if t == nil {
			return fmt.Errorf("handoff/sqlite: save workflow: task %s missing from set", taskID)
		}
		if _, err := s.sdb.NewInsert(toTaskModel(wf.ID, pos, t)).Exec(ctx); err != nil {
			s.deleteTasks(ctx, wf.ID)
			if isDuplicateKey(err) {
				return handoff.ErrWorkflowExists
			}
			return fmt.Errorf("handoff/sqlite: save workflow tasks: %w", err)
		}
	}

	if _, err := s.sdb.NewInsert(toWorkflowModel(wf)).Exec(ctx); err != nil {
		s.deleteTasks(ctx, wf.ID)
		if isDuplicateKey(err) {
			return handoff.ErrWorkflowExists
		}
		return fmt.Errorf("handoff/sqlite: save workflow: %w", err)
	}
	return nil
}

// deleteTasks removes all task rows for a workflow. Used to roll back
// a failed save; errors are logged, not returned.
func (s *Store) deleteTasks(ctx context.Context, workflowID id.WorkflowID) {
	_, err := s.sdb.NewDelete((*taskModel)(nil)).
		Where("workflow_id = ?", workflowID.String()).
		Exec(ctx)
	if err != nil {
		s.logger.Warn("rollback of workflow tasks failed",
			"workflow_id", workflowID,
			"error", err,
		)
	}
}

// GetWorkflow retrieves a workflow by ID, tasks included.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", workflowID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("handoff/sqlite: get workflow: %w", err)
	}

	wf, err := fromWorkflowModel(m)
	if err != nil {
		return nil, err
	}
	if err := s.loadTasks(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// loadTasks attaches a workflow's tasks in position order.
func (s *Store) loadTasks(ctx context.Context, wf *workflow.Workflow) error {
	var models []taskModel
	err := s.sdb.NewSelect(&models).
		Where("workflow_id = ?", wf.ID.String()).
		OrderExpr("position ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: load tasks: %w", err)
	}

	wf.Order = make([]id.TaskID, 0, len(models))
	wf.Tasks = make(map[id.TaskID]*task.Task, len(models))
	for i := range models {
		t, convErr := fromTaskModel(&models[i])
		if convErr != nil {
			return convErr
		}
		wf.Order = append(wf.Order, t.ID)
		wf.Tasks[t.ID] = t
	}
	return nil
}

// ListWorkflows returns workflows matching the given options.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	var models []workflowModel
	q := s.sdb.NewSelect(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	q = q.OrderExpr("created_at ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("handoff/sqlite: list workflows: %w", err)
	}

	return s.hydrate(ctx, models)
}

// ListActive returns every workflow that has not completed.
func (s *Store) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	var models []workflowModel
	err := s.sdb.NewSelect(&models).
		Where("status != ?", string(workflow.StatusCompleted)).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: list active workflows: %w", err)
	}

	return s.hydrate(ctx, models)
}

func (s *Store) hydrate(ctx context.Context, models []workflowModel) ([]*workflow.Workflow, error) {
	workflows := make([]*workflow.Workflow, 0, len(models))
	for i := range models {
		wf, err := fromWorkflowModel(&models[i])
		if err != nil {
			return nil, err
		}
		if err := s.loadTasks(ctx, wf); err != nil {
			return nil, err
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// UpdateTask persists changes to a single task row. Position and
// dependencies are fixed at creation and never updated.
func (s *Store) UpdateTask(ctx context.Context, workflowID id.WorkflowID, t *task.Task) error {
	res, err := s.sdb.NewUpdate((*taskModel)(nil)).
		Set("state = ?", string(t.State)).
		Set("assigned_agent = ?", t.AssignedAgent).
		Set("metadata = ?", anyMapToJSON(t.Metadata)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", t.ID.String()).
		Where("workflow_id = ?", workflowID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: update task: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
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

	res, err := s.sdb.NewUpdate((*workflowModel)(nil)).
		Set("status = ?", string(status)).
		Set("current_task_id = ?", cur).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", workflowID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: update workflow status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return handoff.ErrWorkflowNotFound
	}
	return nil
}
