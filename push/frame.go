// Package push implements the Handoff Push Protocol (HPP) — a frame-based
// protocol that lets agents drive workflows and receive lifecycle events in
// real time. It is transported over WebSocket (primary), SSE (read-only
// fallback), and HTTP (one-shot RPC).
package push

import (
	"encoding/json"
	"time"

	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the HPP message envelope. Every message exchanged over
// the protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "task.complete").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific payload.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Channel identifies the subscription channel for event/subscribe frames.
	Channel string `json:"channel,omitempty" msgpack:"channel,omitempty"`

	// Credits replenishes flow-control credits (backpressure).
	Credits int `json:"credits,omitempty" msgpack:"credits,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// ── Well-known methods ──────────────────────────────

const (
	// Auth methods.
	MethodAuth = "auth"

	// Agent methods.
	MethodAgentRegister  = "agent.register"
	MethodAgentHeartbeat = "agent.heartbeat"
	MethodAgentTasks     = "agent.tasks"

	// Workflow methods.
	MethodWorkflowCreate = "workflow.create"
	MethodWorkflowGet    = "workflow.get"
	MethodWorkflowStatus = "workflow.status"
	MethodWorkflowList   = "workflow.list"
	MethodWorkflowTrail  = "workflow.trail"
	MethodWorkflowPause  = "workflow.pause"
	MethodWorkflowResume = "workflow.resume"

	// Task methods.
	MethodTaskAssign     = "task.assign"
	MethodTaskStart      = "task.start"
	MethodTaskComplete   = "task.complete"
	MethodTaskBlock      = "task.block"
	MethodTaskTransition = "task.transition"
	MethodTaskCanStart   = "task.can_start"

	// Subscription methods.
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"

	// Admin methods.
	MethodStats = "stats"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeConflict       = 409
	ErrCodeInternal       = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients to authenticate.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication.
type AuthResponse struct {
	Format    string `json:"format"`
	SessionID string `json:"session_id"`
}

// AgentRegisterRequest announces an agent as online. Registering over a
// WebSocket binds the agent to the connection: a dropped socket releases
// the agent's in-progress work automatically.
type AgentRegisterRequest struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
}

// AgentHeartbeatRequest refreshes an agent's liveness deadline.
type AgentHeartbeatRequest struct {
	AgentID string `json:"agent_id"`
}

// AgentTasksRequest lists the open tasks assigned to an agent.
type AgentTasksRequest struct {
	AgentID string `json:"agent_id"`
}

// WorkflowCreateRequest creates a new workflow from a task pipeline spec.
type WorkflowCreateRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Tasks       []task.Spec    `json:"tasks"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Spec converts the request into a workflow build spec.
func (r *WorkflowCreateRequest) Spec() workflow.Spec {
	return workflow.Spec{
		Name:        r.Name,
		Description: r.Description,
		Tasks:       r.Tasks,
		Metadata:    r.Metadata,
	}
}

// WorkflowCreateResponse confirms workflow creation.
type WorkflowCreateResponse struct {
	WorkflowID    string `json:"workflow_id"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}

// WorkflowGetRequest retrieves a workflow by ID.
type WorkflowGetRequest struct {
	WorkflowID string `json:"workflow_id"`
}

// WorkflowListRequest lists workflows with optional filters.
type WorkflowListRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// WorkflowTrailRequest retrieves the transition trail for a workflow,
// or for a single task when TaskID is set.
type WorkflowTrailRequest struct {
	WorkflowID string `json:"workflow_id"`
	TaskID     string `json:"task_id,omitempty"`
}

// TaskRef addresses a task within a workflow. It is the request payload
// for task.start, task.complete, and task.can_start.
type TaskRef struct {
	WorkflowID string `json:"workflow_id"`
	TaskID     string `json:"task_id"`
}

// TaskAssignRequest assigns a task to an agent.
type TaskAssignRequest struct {
	TaskRef
	AgentID string `json:"agent_id"`
}

// TaskCompleteRequest completes a task, optionally carrying handoff
// data for the next task's agent.
type TaskCompleteRequest struct {
	TaskRef
	HandoffData map[string]any `json:"handoff_data,omitempty"`
}

// TaskBlockRequest marks a task as blocked.
type TaskBlockRequest struct {
	TaskRef
	Reason string `json:"reason,omitempty"`
}

// TaskTransitionRequest moves a task to an explicit state.
type TaskTransitionRequest struct {
	TaskRef
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// CanStartResponse reports whether a task's dependencies are satisfied.
type CanStartResponse struct {
	CanStart  bool     `json:"can_start"`
	UnmetDeps []string `json:"unmet_deps,omitempty"`
}

// SubscribeRequest subscribes to a topic channel.
type SubscribeRequest struct {
	Channel string `json:"channel"`
	Credits int    `json:"credits,omitempty"` // Initial credits (0 = use default)
}

// UnsubscribeRequest removes a subscription.
type UnsubscribeRequest struct {
	Channel string `json:"channel"`
}

// NewRequestFrame creates a new request frame.
func NewRequestFrame(id, method string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request.
func NewResponseFrame(correlID string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame for a subscription channel.
func NewEventFrame(channel string, data any) (*Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameEvent,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GenerateFrameID returns a new unique frame ID.
// Uses a timestamp with nanosecond precision for performance.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
