package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
)

// SaveAgent persists an agent, inserting or replacing by ID.
func (s *Store) SaveAgent(ctx context.Context, a *agent.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO handoff_agents (
			id, name, status, connected_at, last_seen, metadata,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			connected_at = EXCLUDED.connected_at,
			last_seen = EXCLUDED.last_seen,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()`,
		a.ID, a.Name, string(a.Status), a.ConnectedAt, a.LastSeen,
		mapToJSON(a.Metadata), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: save agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM handoff_agents WHERE id = $1`,
		agentID,
	)

	a, err := scanAgent(row)
	if err != nil {
		if isNoRows(err) {
			return nil, handoff.ErrAgentNotFound
		}
		return nil, fmt.Errorf("handoff/postgres: get agent: %w", err)
	}
	return a, nil
}

// ListAgents returns every registered agent.
func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+agentColumns+` FROM handoff_agents ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("handoff/postgres: list agents: %w", err)
	}
	defer rows.Close()

	var agents []*agent.Agent
	for rows.Next() {
		a, scanErr := scanAgent(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("handoff/postgres: list agents: %w", scanErr)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

// UpdateAgentStatus sets an agent's connection status.
func (s *Store) UpdateAgentStatus(ctx context.Context, agentID string, status agent.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE handoff_agents SET status = $2, updated_at = NOW()
		WHERE id = $1`,
		agentID, string(status),
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: update agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}

// Heartbeat records a liveness signal for an agent.
func (s *Store) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE handoff_agents SET last_seen = $2, updated_at = NOW()
		WHERE id = $1`,
		agentID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("handoff/postgres: heartbeat agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return handoff.ErrAgentNotFound
	}
	return nil
}
