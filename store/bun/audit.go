package bunstore

import (
	"context"
	"fmt"

	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
)

// AppendTransition persists a transition record.
func (s *Store) AppendTransition(ctx context.Context, tr *audit.Transition) error {
	if _, err := s.db.NewInsert().Model(toTransitionModel(tr)).Exec(ctx); err != nil {
		return fmt.Errorf("handoff/bun: append transition: %w", err)
	}
	return nil
}

// ListTaskTransitions returns the full trail for one task,
// most-recent first.
func (s *Store) ListTaskTransitions(ctx context.Context, taskID id.TaskID) ([]*audit.Transition, error) {
	var models []transitionModel
	err := s.db.NewSelect().Model(&models).
		Where("task_id = ?", taskID.String()).
		Order("seq DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: list task transitions: %w", err)
	}
	return convertTransitions(models)
}

// ListWorkflowTransitions returns the full trail for one workflow,
// most-recent first.
func (s *Store) ListWorkflowTransitions(ctx context.Context, workflowID id.WorkflowID) ([]*audit.Transition, error) {
	var models []transitionModel
	err := s.db.NewSelect().Model(&models).
		Where("workflow_id = ?", workflowID.String()).
		Order("seq DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: list workflow transitions: %w", err)
	}
	return convertTransitions(models)
}

func convertTransitions(models []transitionModel) ([]*audit.Transition, error) {
	trail := make([]*audit.Transition, 0, len(models))
	for i := range models {
		tr, err := fromTransitionModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("handoff/bun: convert transition: %w", err)
		}
		trail = append(trail, tr)
	}
	return trail, nil
}
