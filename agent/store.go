package agent

import (
	"context"
	"time"
)

// Store defines the persistence contract for the agent registry.
type Store interface {
	// SaveAgent persists an agent, inserting or replacing by ID.
	SaveAgent(ctx context.Context, a *Agent) error

	// GetAgent retrieves an agent by ID.
	GetAgent(ctx context.Context, agentID string) (*Agent, error)

	// ListAgents returns every registered agent.
	ListAgents(ctx context.Context) ([]*Agent, error)

	// UpdateAgentStatus sets an agent's connection status.
	UpdateAgentStatus(ctx context.Context, agentID string, status Status) error

	// Heartbeat records a liveness signal for an agent.
	Heartbeat(ctx context.Context, agentID string, at time.Time) error
}
