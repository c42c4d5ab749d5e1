package sqlite

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

	res, err := s.sdb.NewUpdate((*agentModel)(nil)).
		Set("name = ?", m.Name).
		Set("status = ?", m.Status).
		Set("connected_at = ?", m.ConnectedAt).
		Set("last_seen = ?", m.LastSeen).
		Set("metadata = ?", m.Metadata).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", m.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: save agent: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows > 0 {
		return nil
	}

	if _, err := s.sdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("handoff/sqlite: save agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	m := new(agentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", agentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrAgentNotFound
		}
		return nil, fmt.Errorf("handoff/sqlite: get agent: %w", err)
	}
	return fromAgentModel(m), nil
}

// ListAgents returns every registered agent.
func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	var models []agentModel
	err := s.sdb.NewSelect(&models).
		OrderExpr("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: list agents: %w", err)
	}

	agents := make([]*agent.Agent, 0, len(models))
	for i := range models {
		agents = append(agents, fromAgentModel(&models[i]))
	}
	return agents, nil
}

// UpdateAgentStatus sets an agent's connection status.
func (s *Store) UpdateAgentStatus(ctx context.Context, agentID string, status agent.Status) error {
	res, err := s.sdb.NewUpdate((*agentModel)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: update agent status: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}

// Heartbeat records a liveness signal for an agent.
func (s *Store) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	res, err := s.sdb.NewUpdate((*agentModel)(nil)).
		Set("last_seen = ?", at.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", agentID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("handoff/sqlite: heartbeat agent: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}
