package bunstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// SaveWorkflow persists a workflow together with all of its tasks in a
// single transaction.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(toWorkflowModel(wf)).Exec(ctx); err != nil {
			return err
		}
		for pos, taskID := range wf.Order {
			t := wf.Tasks[taskID]
			if t == nil {
				return fmt.Errorf("task %s missing from set", taskID)
			}
			if _, err := tx.NewInsert().Model(toTaskModel(wf.ID, pos, t)).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicateKey(err) {
			return handoff.ErrWorkflowExists
		}
		return fmt.Errorf("handoff/bun: save workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID, tasks included.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", workflowID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("handoff/bun: get workflow: %w", err)
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
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", wf.ID.String()).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: load tasks: %w", err)
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
	q := s.db.NewSelect().Model(&models)

	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}

	q = q.Order("created_at ASC")

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("handoff/bun: list workflows: %w", err)
	}

	return s.hydrate(ctx, models)
}

// ListActive returns every workflow that has not completed.
func (s *Store) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	var models []workflowModel
	err := s.db.NewSelect().Model(&models).
		Where("status != ?", string(workflow.StatusCompleted)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: list active workflows: %w", err)
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
	res, err := s.db.NewUpdate().Model((*taskModel)(nil)).
		Set("state = ?", string(t.State)).
		Set("assigned_agent = ?", t.AssignedAgent).
		Set("metadata = ?", anyMapToJSON(t.Metadata)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", t.ID.String()).
		Where("workflow_id = ?", workflowID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: update task: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // pg driver always returns nil
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

	res, err := s.db.NewUpdate().Model((*workflowModel)(nil)).
		Set("status = ?", string(status)).
		Set("current_task_id = ?", cur).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", workflowID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: update workflow status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // pg driver always returns nil
	if rows == 0 {
		return handoff.ErrWorkflowNotFound
	}
	return nil
}
