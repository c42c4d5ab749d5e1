package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
)

// SaveAgent persists an agent, inserting or replacing by ID.
func (s *Store) SaveAgent(ctx context.Context, a *agent.Agent) error {
	m := toAgentModel(a)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("status = EXCLUDED.status").
		Set("connected_at = EXCLUDED.connected_at").
		Set("last_seen = EXCLUDED.last_seen").
		Set("metadata = EXCLUDED.metadata").
		Set("updated_at = ?", time.Now().UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: save agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	m := new(agentModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", agentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrAgentNotFound
		}
		return nil, fmt.Errorf("handoff/bun: get agent: %w", err)
	}
	return fromAgentModel(m), nil
}

// ListAgents returns every registered agent.
func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	var models []agentModel
	err := s.db.NewSelect().Model(&models).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: list agents: %w", err)
	}

	agents := make([]*agent.Agent, 0, len(models))
	for i := range models {
		agents = append(agents, fromAgentModel(&models[i]))
	}
	return agents, nil
}

// UpdateAgentStatus sets an agent's connection status.
func (s *Store) UpdateAgentStatus(ctx context.Context, agentID string, status agent.Status) error {
	res, err := s.db.NewUpdate().Model((*agentModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: update agent status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // pg driver always returns nil
	if rows == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}

// Heartbeat records a liveness signal for an agent.
func (s *Store) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*agentModel)(nil)).
		Set("last_seen = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/bun: heartbeat agent: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // pg driver always returns nil
	if rows == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}
