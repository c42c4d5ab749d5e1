package client

import (
	"context"
	"encoding/json"

	"github.com/xraph/handoff/push"
)

// RegisterAgent announces an agent as online. The server binds the agent
// to this connection: dropping the connection blocks the agent's
// in-progress tasks so another agent can pick them up.
func (c *Client) RegisterAgent(ctx context.Context, agentID, name string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodAgentRegister, push.AgentRegisterRequest{
		AgentID: agentID,
		Name:    name,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Heartbeat refreshes the agent's liveness deadline.
func (c *Client) Heartbeat(ctx context.Context, agentID string) error {
	_, err := c.request(ctx, push.MethodAgentHeartbeat, push.AgentHeartbeatRequest{
		AgentID: agentID,
	})
	return err
}

// AgentTasks lists the open tasks assigned to the agent across all
// active workflows.
func (c *Client) AgentTasks(ctx context.Context, agentID string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodAgentTasks, push.AgentTasksRequest{
		AgentID: agentID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}
