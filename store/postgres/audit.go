package postgres

import (
	"context"
	"fmt"

	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
)

// AppendTransition persists a transition record.
func (s *Store) AppendTransition(ctx context.Context, tr *audit.Transition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO handoff_transitions (
			id, workflow_id, task_id, from_state, to_state,
			agent_id, reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tr.ID.String(), tr.WorkflowID.String(), tr.TaskID.String(),
		string(tr.From), string(tr.To), tr.Agent, tr.Reason,
		tr.CreatedAt, tr.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: append transition: %w", err)
	}
	return nil
}

// ListTaskTransitions returns the full trail for one task,
// most-recent first.
func (s *Store) ListTaskTransitions(ctx context.Context, taskID id.TaskID) ([]*audit.Transition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transitionColumns+` FROM handoff_transitions
		WHERE task_id = $1
		ORDER BY seq DESC`,
		taskID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list task transitions: %w", err)
	}
	trail, err := collectTransitions(rows)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list task transitions: %w", err)
	}
	return trail, nil
}

// ListWorkflowTransitions returns the full trail for one workflow,
// most-recent first.
func (s *Store) ListWorkflowTransitions(ctx context.Context, workflowID id.WorkflowID) ([]*audit.Transition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transitionColumns+` FROM handoff_transitions
		WHERE workflow_id = $1
		ORDER BY seq DESC`,
		workflowID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list workflow transitions: %w", err)
	}
	trail, err := collectTransitions(rows)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list workflow transitions: %w", err)
	}
	return trail, nil
}
