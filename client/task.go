package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/handoff/push"
)

// AssignTask assigns a task to an agent.
func (c *Client) AssignTask(ctx context.Context, workflowID, taskID, agentID string) error {
	_, err := c.request(ctx, push.MethodTaskAssign, push.TaskAssignRequest{
		TaskRef: push.TaskRef{WorkflowID: workflowID, TaskID: taskID},
		AgentID: agentID,
	})
	return err
}

// StartTask moves a task from pending to in_progress. The coordinator
// rejects the start while any dependency is incomplete.
func (c *Client) StartTask(ctx context.Context, workflowID, taskID string) error {
	_, err := c.request(ctx, push.MethodTaskStart, push.TaskRef{
		WorkflowID: workflowID, TaskID: taskID,
	})
	return err
}

// CompleteTask marks a task completed, advancing the workflow.
func (c *Client) CompleteTask(ctx context.Context, workflowID, taskID string) error {
	_, err := c.request(ctx, push.MethodTaskComplete, push.TaskCompleteRequest{
		TaskRef: push.TaskRef{WorkflowID: workflowID, TaskID: taskID},
	})
	return err
}

// CompleteTaskWithData completes a task and attaches handoff data for
// the next task's agent. The data rides on the completed task's
// metadata and on the handoff event.
func (c *Client) CompleteTaskWithData(ctx context.Context, workflowID, taskID string, data map[string]any) error {
	_, err := c.request(ctx, push.MethodTaskComplete, push.TaskCompleteRequest{
		TaskRef:     push.TaskRef{WorkflowID: workflowID, TaskID: taskID},
		HandoffData: data,
	})
	return err
}

// BlockTask marks a task as blocked with an optional reason.
func (c *Client) BlockTask(ctx context.Context, workflowID, taskID, reason string) error {
	_, err := c.request(ctx, push.MethodTaskBlock, push.TaskBlockRequest{
		TaskRef: push.TaskRef{WorkflowID: workflowID, TaskID: taskID},
		Reason:  reason,
	})
	return err
}

// TransitionTask moves a task to an explicit state.
func (c *Client) TransitionTask(ctx context.Context, workflowID, taskID, to, reason string) error {
	_, err := c.request(ctx, push.MethodTaskTransition, push.TaskTransitionRequest{
		TaskRef: push.TaskRef{WorkflowID: workflowID, TaskID: taskID},
		To:      to,
		Reason:  reason,
	})
	return err
}

// CanStart reports whether a task's dependencies are all completed.
func (c *Client) CanStart(ctx context.Context, workflowID, taskID string) (*push.CanStartResponse, error) {
	resp, err := c.request(ctx, push.MethodTaskCanStart, push.TaskRef{
		WorkflowID: workflowID, TaskID: taskID,
	})
	if err != nil {
		return nil, err
	}

	var result push.CanStartResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}
