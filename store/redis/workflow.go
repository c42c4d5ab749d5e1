package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// SaveWorkflow stores the workflow, tasks included, as one JSON value.
// SETNX gives the duplicate guard; a workflow is either fully visible
// or absent, so the save is atomic by construction.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	wfID := wf.ID.String()
	payload, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("handoff/redis: marshal workflow: %w", err)
	}

	ok, err := s.client.SetNX(ctx, workflowKey(wfID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("handoff/redis: save workflow: %w", err)
	}
	if !ok {
		return handoff.ErrWorkflowExists
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, workflowIDsKey, goredis.Z{
		Score:  float64(wf.CreatedAt.UnixNano()),
		Member: wfID,
	})
	if wf.Status != workflow.StatusCompleted {
		pipe.SAdd(ctx, activeWorkflowsKey, wfID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("handoff/redis: index workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID, tasks included.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	return s.getWorkflow(ctx, workflowID.String())
}

func (s *Store) getWorkflow(ctx context.Context, wfID string) (*workflow.Workflow, error) {
	raw, err := s.client.Get(ctx, workflowKey(wfID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, handoff.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("handoff/redis: get workflow: %w", err)
	}

	wf := new(workflow.Workflow)
	if err := json.Unmarshal(raw, wf); err != nil {
		return nil, fmt.Errorf("handoff/redis: unmarshal workflow %s: %w", wfID, err)
	}
	return wf, nil
}

// ListWorkflows returns workflows matching the given options in
// creation order.
func (s *Store) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	ids, err := s.client.ZRange(ctx, workflowIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("handoff/redis: list workflow ids: %w", err)
	}

	var workflows []*workflow.Workflow
	skipped := 0
	for _, wfID := range ids {
		wf, getErr := s.getWorkflow(ctx, wfID)
		if getErr != nil {
			if getErr == handoff.ErrWorkflowNotFound {
				continue
			}
			return nil, getErr
		}
		if opts.Status != "" && wf.Status != opts.Status {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		workflows = append(workflows, wf)
		if opts.Limit > 0 && len(workflows) >= opts.Limit {
			break
		}
	}
	return workflows, nil
}

// ListActive returns every workflow that has not completed.
func (s *Store) ListActive(ctx context.Context) ([]*workflow.Workflow, error) {
	ids, err := s.client.SMembers(ctx, activeWorkflowsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("handoff/redis: list active ids: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(ids))
	for _, wfID := range ids {
		wf, getErr := s.getWorkflow(ctx, wfID)
		if getErr != nil {
			if getErr == handoff.ErrWorkflowNotFound {
				continue
			}
			return nil, getErr
		}
		workflows = append(workflows, wf)
	}
	return workflows, nil
}

// UpdateTask persists changes to a single task inside the workflow
// value. Coordinator-level per-workflow locking serializes writers, so
// the read-modify-write here does not race.
func (s *Store) UpdateTask(ctx context.Context, workflowID id.WorkflowID, t *task.Task) error {
	wf, err := s.getWorkflow(ctx, workflowID.String())
	if err != nil {
		return err
	}
	if _, ok := wf.Tasks[t.ID]; !ok {
		return handoff.ErrTaskNotFound
	}

	cp := t.Clone()
	cp.UpdatedAt = time.Now().UTC()
	wf.Tasks[t.ID] = cp

	return s.putWorkflow(ctx, wf)
}

// UpdateWorkflowStatus persists the workflow's status and current-task
// pointer. A nil currentTaskID clears the pointer.
func (s *Store) UpdateWorkflowStatus(ctx context.Context, workflowID id.WorkflowID, status workflow.Status, currentTaskID *id.TaskID) error {
	wf, err := s.getWorkflow(ctx, workflowID.String())
	if err != nil {
		return err
	}

	wf.Status = status
	wf.CurrentTaskID = nil
	if currentTaskID != nil {
		cur := *currentTaskID
		wf.CurrentTaskID = &cur
	}
	wf.UpdatedAt = time.Now().UTC()

	if err := s.putWorkflow(ctx, wf); err != nil {
		return err
	}

	wfID := workflowID.String()
	if status == workflow.StatusCompleted {
		if err := s.client.SRem(ctx, activeWorkflowsKey, wfID).Err(); err != nil {
			return fmt.Errorf("handoff/redis: deindex workflow: %w", err)
		}
	}
	return nil
}

func (s *Store) putWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	payload, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("handoff/redis: marshal workflow: %w", err)
	}
	if err := s.client.Set(ctx, workflowKey(wf.ID.String()), payload, 0).Err(); err != nil {
		return fmt.Errorf("handoff/redis: put workflow: %w", err)
	}
	return nil
}
