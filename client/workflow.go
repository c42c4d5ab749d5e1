package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/task"
)

// WorkflowResult contains the result of creating a workflow.
type WorkflowResult struct {
	WorkflowID    string `json:"workflow_id"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}

// CreateWorkflow creates a workflow on the remote coordinator from a
// named task pipeline. Dependencies reference other tasks by name.
func (c *Client) CreateWorkflow(ctx context.Context, name string, tasks []task.Spec, opts ...WorkflowOption) (*WorkflowResult, error) {
	req := push.WorkflowCreateRequest{
		Name:  name,
		Tasks: tasks,
	}
	for _, opt := range opts {
		opt(&req)
	}

	resp, reqErr := c.request(ctx, push.MethodWorkflowCreate, req)
	if reqErr != nil {
		return nil, reqErr
	}

	var result WorkflowResult
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}

// GetWorkflow retrieves a workflow by ID.
func (c *Client) GetWorkflow(ctx context.Context, workflowID string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodWorkflowGet, push.WorkflowGetRequest{
		WorkflowID: workflowID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetWorkflowStatus retrieves the progress summary for a workflow.
func (c *Client) GetWorkflowStatus(ctx context.Context, workflowID string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodWorkflowStatus, push.WorkflowGetRequest{
		WorkflowID: workflowID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ListWorkflows lists workflows, optionally filtered by status.
func (c *Client) ListWorkflows(ctx context.Context, status string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodWorkflowList, push.WorkflowListRequest{
		Status: status,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PauseWorkflow holds an active workflow. Task transitions on it are
// rejected until ResumeWorkflow is called.
func (c *Client) PauseWorkflow(ctx context.Context, workflowID string) error {
	_, err := c.request(ctx, push.MethodWorkflowPause, push.WorkflowGetRequest{
		WorkflowID: workflowID,
	})
	return err
}

// ResumeWorkflow returns a paused workflow to active.
func (c *Client) ResumeWorkflow(ctx context.Context, workflowID string) error {
	_, err := c.request(ctx, push.MethodWorkflowResume, push.WorkflowGetRequest{
		WorkflowID: workflowID,
	})
	return err
}

// GetTrail retrieves the transition trail for a workflow. Pass a
// non-empty taskID to narrow the trail to a single task.
func (c *Client) GetTrail(ctx context.Context, workflowID, taskID string) (json.RawMessage, error) {
	resp, err := c.request(ctx, push.MethodWorkflowTrail, push.WorkflowTrailRequest{
		WorkflowID: workflowID,
		TaskID:     taskID,
	})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// WorkflowOption configures a workflow create request.
type WorkflowOption func(*push.WorkflowCreateRequest)

// WithDescription sets the workflow description.
func WithDescription(desc string) WorkflowOption {
	return func(r *push.WorkflowCreateRequest) { r.Description = desc }
}

// WithMetadata attaches metadata to the workflow.
func WithMetadata(md map[string]any) WorkflowOption {
	return func(r *push.WorkflowCreateRequest) { r.Metadata = md }
}
