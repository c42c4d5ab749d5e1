package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
)

// AppendTransition pushes the record onto both the workflow and task
// trail lists in one transaction. RPUSH preserves append order.
func (s *Store) AppendTransition(ctx context.Context, tr *audit.Transition) error {
	payload, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("handoff/redis: marshal transition: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, workflowTrailKey(tr.WorkflowID.String()), payload)
	pipe.RPush(ctx, taskTrailKey(tr.TaskID.String()), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("handoff/redis: append transition: %w", err)
	}
	return nil
}

// ListTaskTransitions returns the full trail for one task, most-recent
// first.
func (s *Store) ListTaskTransitions(ctx context.Context, taskID id.TaskID) ([]*audit.Transition, error) {
	return s.listTrail(ctx, taskTrailKey(taskID.String()))
}

// ListWorkflowTransitions returns the full trail for one workflow,
// most-recent first.
func (s *Store) ListWorkflowTransitions(ctx context.Context, workflowID id.WorkflowID) ([]*audit.Transition, error) {
	return s.listTrail(ctx, workflowTrailKey(workflowID.String()))
}

// listTrail reads a whole RPUSH list and walks it back to front, so
// the newest entry comes out first.
func (s *Store) listTrail(ctx context.Context, key string) ([]*audit.Transition, error) {
	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("handoff/redis: list trail: %w", err)
	}

	trail := make([]*audit.Transition, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		tr := new(audit.Transition)
		if err := json.Unmarshal([]byte(raw[i]), tr); err != nil {
			return nil, fmt.Errorf("handoff/redis: unmarshal transition: %w", err)
		}
		trail = append(trail, tr)
	}
	return trail, nil
}
