package relayhook

import (
	"context"
	"time"

	"github.com/xraph/relay"
	"github.com/xraph/relay/event"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/ext"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.WorkflowCreated   = (*Extension)(nil)
	_ ext.WorkflowCompleted = (*Extension)(nil)
	_ ext.TaskAssigned      = (*Extension)(nil)
	_ ext.TaskStarted       = (*Extension)(nil)
	_ ext.TaskTransitioned  = (*Extension)(nil)
	_ ext.TaskCompleted     = (*Extension)(nil)
	_ ext.TaskBlocked       = (*Extension)(nil)
	_ ext.TaskHandoff       = (*Extension)(nil)
	_ ext.AgentConnected    = (*Extension)(nil)
	_ ext.AgentDisconnected = (*Extension)(nil)
)

// Extension bridges Handoff lifecycle events to Relay for webhook
// delivery. Each lifecycle hook emits a typed event via [relay.Relay.Send].
type Extension struct {
	relay    *relay.Relay
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New creates an Extension that emits Handoff lifecycle events
// through the provided Relay instance.
func New(r *relay.Relay, opts ...Option) *Extension {
	h := &Extension{relay: r}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "relay-hook" }

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowCreated implements ext.WorkflowCreated.
func (h *Extension) OnWorkflowCreated(ctx context.Context, wf *workflow.Workflow) error {
	return h.send(ctx, EventWorkflowCreated, newWorkflowPayload(wf))
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (h *Extension) OnWorkflowCompleted(ctx context.Context, wf *workflow.Workflow, elapsed time.Duration) error {
	return h.send(ctx, EventWorkflowCompleted, &workflowCompletedPayload{
		workflowPayload: *newWorkflowPayload(wf),
		ElapsedMs:       elapsed.Milliseconds(),
	})
}

// ── Task lifecycle hooks ────────────────────────────

// OnTaskAssigned implements ext.TaskAssigned.
func (h *Extension) OnTaskAssigned(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return h.send(ctx, EventTaskAssigned, newTaskPayload(wf, t))
}

// OnTaskStarted implements ext.TaskStarted.
func (h *Extension) OnTaskStarted(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return h.send(ctx, EventTaskStarted, newTaskPayload(wf, t))
}

// OnTaskTransitioned implements ext.TaskTransitioned.
func (h *Extension) OnTaskTransitioned(ctx context.Context, wf *workflow.Workflow, t *task.Task, from, to task.State) error {
	return h.send(ctx, EventTaskTransitioned, &taskTransitionedPayload{
		taskPayload: *newTaskPayload(wf, t),
		FromState:   string(from),
		ToState:     string(to),
	})
}

// OnTaskCompleted implements ext.TaskCompleted.
func (h *Extension) OnTaskCompleted(ctx context.Context, wf *workflow.Workflow, t *task.Task, elapsed time.Duration) error {
	return h.send(ctx, EventTaskCompleted, &taskCompletedPayload{
		taskPayload: *newTaskPayload(wf, t),
		ElapsedMs:   elapsed.Milliseconds(),
	})
}

// OnTaskBlocked implements ext.TaskBlocked.
func (h *Extension) OnTaskBlocked(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return h.send(ctx, EventTaskBlocked, newTaskPayload(wf, t))
}

// OnTaskHandoff implements ext.TaskHandoff.
func (h *Extension) OnTaskHandoff(ctx context.Context, wf *workflow.Workflow, completed, next *task.Task) error {
	return h.send(ctx, EventTaskHandoff, &taskHandoffPayload{
		WorkflowID:      wf.ID.String(),
		WorkflowName:    wf.Name,
		CompletedTaskID: completed.ID.String(),
		NextTaskID:      next.ID.String(),
		NextTaskName:    next.Name,
	})
}

// ── Agent lifecycle hooks ───────────────────────────

// OnAgentConnected implements ext.AgentConnected.
func (h *Extension) OnAgentConnected(ctx context.Context, a *agent.Agent) error {
	return h.send(ctx, EventAgentConnected, &agentPayload{
		AgentID:   a.ID,
		AgentName: a.Name,
		Status:    string(a.Status),
	})
}

// OnAgentDisconnected implements ext.AgentDisconnected.
func (h *Extension) OnAgentDisconnected(ctx context.Context, agentID string, blocked []id.TaskID) error {
	blockedIDs := make([]string, len(blocked))
	for i, tid := range blocked {
		blockedIDs[i] = tid.String()
	}
	return h.send(ctx, EventAgentDisconnected, &agentDisconnectedPayload{
		AgentID:      agentID,
		BlockedTasks: blockedIDs,
	})
}

// ── Internal helpers ────────────────────────────────

// send emits an event through Relay if the event type is enabled.
func (h *Extension) send(ctx context.Context, eventType string, defaultData any) error {
	if h.enabled != nil && !h.enabled[eventType] {
		return nil
	}

	data := defaultData
	if fn, ok := h.payloads[eventType]; ok {
		custom, err := fn(defaultData)
		if err != nil {
			return err
		}
		data = custom
	}

	return h.relay.Send(ctx, &event.Event{
		Type: eventType,
		Data: data,
	})
}

// ── Default payload types ───────────────────────────

type workflowPayload struct {
	WorkflowID    string `json:"workflow_id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}

func newWorkflowPayload(wf *workflow.Workflow) *workflowPayload {
	p := &workflowPayload{
		WorkflowID: wf.ID.String(),
		Name:       wf.Name,
		Status:     string(wf.Status),
	}
	if wf.CurrentTaskID != nil {
		p.CurrentTaskID = wf.CurrentTaskID.String()
	}
	return p
}

type workflowCompletedPayload struct {
	workflowPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type taskPayload struct {
	WorkflowID    string `json:"workflow_id"`
	TaskID        string `json:"task_id"`
	TaskName      string `json:"task_name"`
	State         string `json:"state"`
	AssignedAgent string `json:"assigned_agent,omitempty"`
}

func newTaskPayload(wf *workflow.Workflow, t *task.Task) *taskPayload {
	return &taskPayload{
		WorkflowID:    wf.ID.String(),
		TaskID:        t.ID.String(),
		TaskName:      t.Name,
		State:         string(t.State),
		AssignedAgent: t.AssignedAgent,
	}
}

type taskTransitionedPayload struct {
	taskPayload
	FromState string `json:"from_state"`
	ToState   string `json:"to_state"`
}

type taskCompletedPayload struct {
	taskPayload
	ElapsedMs int64 `json:"elapsed_ms"`
}

type taskHandoffPayload struct {
	WorkflowID      string `json:"workflow_id"`
	WorkflowName    string `json:"workflow_name"`
	CompletedTaskID string `json:"completed_task_id"`
	NextTaskID      string `json:"next_task_id"`
	NextTaskName    string `json:"next_task_name"`
}

type agentPayload struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name,omitempty"`
	Status    string `json:"status"`
}

type agentDisconnectedPayload struct {
	AgentID      string   `json:"agent_id"`
	BlockedTasks []string `json:"blocked_tasks"`
}
