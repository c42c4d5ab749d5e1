package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
)

// SaveAgent persists an agent, inserting or replacing by ID.
func (s *Store) SaveAgent(ctx context.Context, a *agent.Agent) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("handoff/redis: marshal agent: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, agentKey(a.ID), payload, 0)
	pipe.ZAdd(ctx, agentIDsKey, goredis.Z{
		Score:  float64(a.CreatedAt.UnixNano()),
		Member: a.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("handoff/redis: save agent: %w", err)
	}
	return nil
}

// GetAgent retrieves an agent by ID.
func (s *Store) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	raw, err := s.client.Get(ctx, agentKey(agentID)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, handoff.ErrAgentNotFound
		}
		return nil, fmt.Errorf("handoff/redis: get agent: %w", err)
	}

	a := new(agent.Agent)
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("handoff/redis: unmarshal agent %s: %w", agentID, err)
	}
	return a, nil
}

// ListAgents returns every registered agent in registration order.
func (s *Store) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	ids, err := s.client.ZRange(ctx, agentIDsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("handoff/redis: list agent ids: %w", err)
	}

	agents := make([]*agent.Agent, 0, len(ids))
	for _, agentID := range ids {
		a, getErr := s.GetAgent(ctx, agentID)
		if getErr != nil {
			if getErr == handoff.ErrAgentNotFound {
				continue
			}
			return nil, getErr
		}
		agents = append(agents, a)
	}
	return agents, nil
}

// UpdateAgentStatus sets an agent's connection status.
func (s *Store) UpdateAgentStatus(ctx context.Context, agentID string, status agent.Status) error {
	a, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return s.putAgent(ctx, a)
}

// Heartbeat records a liveness signal for an agent.
func (s *Store) Heartbeat(ctx context.Context, agentID string, at time.Time) error {
	a, err := s.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	a.LastSeen = at.UTC()
	a.UpdatedAt = time.Now().UTC()
	return s.putAgent(ctx, a)
}

func (s *Store) putAgent(ctx context.Context, a *agent.Agent) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("handoff/redis: marshal agent: %w", err)
	}
	if err := s.client.Set(ctx, agentKey(a.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("handoff/redis: put agent: %w", err)
	}
	return nil
}
