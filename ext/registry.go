package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type workflowCreatedEntry struct {
	name string
	hook WorkflowCreated
}

type workflowCompletedEntry struct {
	name string
	hook WorkflowCompleted
}

type taskAssignedEntry struct {
	name string
	hook TaskAssigned
}

type taskStartedEntry struct {
	name string
	hook TaskStarted
}

type taskTransitionedEntry struct {
	name string
	hook TaskTransitioned
}

type taskCompletedEntry struct {
	name string
	hook TaskCompleted
}

type taskBlockedEntry struct {
	name string
	hook TaskBlocked
}

type taskHandoffEntry struct {
	name string
	hook TaskHandoff
}

type agentConnectedEntry struct {
	name string
	hook AgentConnected
}

type agentDisconnectedEntry struct {
	name string
	hook AgentDisconnected
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	workflowCreated   []workflowCreatedEntry
	workflowCompleted []workflowCompletedEntry
	taskAssigned      []taskAssignedEntry
	taskStarted       []taskStartedEntry
	taskTransitioned  []taskTransitionedEntry
	taskCompleted     []taskCompletedEntry
	taskBlocked       []taskBlockedEntry
	taskHandoff       []taskHandoffEntry
	agentConnected    []agentConnectedEntry
	agentDisconnected []agentDisconnectedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(WorkflowCreated); ok {
		r.workflowCreated = append(r.workflowCreated, workflowCreatedEntry{name, h})
	}
	if h, ok := e.(WorkflowCompleted); ok {
		r.workflowCompleted = append(r.workflowCompleted, workflowCompletedEntry{name, h})
	}
	if h, ok := e.(TaskAssigned); ok {
		r.taskAssigned = append(r.taskAssigned, taskAssignedEntry{name, h})
	}
	if h, ok := e.(TaskStarted); ok {
		r.taskStarted = append(r.taskStarted, taskStartedEntry{name, h})
	}
	if h, ok := e.(TaskTransitioned); ok {
		r.taskTransitioned = append(r.taskTransitioned, taskTransitionedEntry{name, h})
	}
	if h, ok := e.(TaskCompleted); ok {
		r.taskCompleted = append(r.taskCompleted, taskCompletedEntry{name, h})
	}
	if h, ok := e.(TaskBlocked); ok {
		r.taskBlocked = append(r.taskBlocked, taskBlockedEntry{name, h})
	}
	if h, ok := e.(TaskHandoff); ok {
		r.taskHandoff = append(r.taskHandoff, taskHandoffEntry{name, h})
	}
	if h, ok := e.(AgentConnected); ok {
		r.agentConnected = append(r.agentConnected, agentConnectedEntry{name, h})
	}
	if h, ok := e.(AgentDisconnected); ok {
		r.agentDisconnected = append(r.agentDisconnected, agentDisconnectedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Workflow event emitters
// ──────────────────────────────────────────────────

// EmitWorkflowCreated notifies all extensions that implement WorkflowCreated.
func (r *Registry) EmitWorkflowCreated(ctx context.Context, wf *workflow.Workflow) {
	for _, e := range r.workflowCreated {
		if err := e.hook.OnWorkflowCreated(ctx, wf); err != nil {
			r.logHookError("OnWorkflowCreated", e.name, err)
		}
	}
}

// EmitWorkflowCompleted notifies all extensions that implement WorkflowCompleted.
func (r *Registry) EmitWorkflowCompleted(ctx context.Context, wf *workflow.Workflow, elapsed time.Duration) {
	for _, e := range r.workflowCompleted {
		if err := e.hook.OnWorkflowCompleted(ctx, wf, elapsed); err != nil {
			r.logHookError("OnWorkflowCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Task event emitters
// ──────────────────────────────────────────────────

// EmitTaskAssigned notifies all extensions that implement TaskAssigned.
func (r *Registry) EmitTaskAssigned(ctx context.Context, wf *workflow.Workflow, t *task.Task) {
	for _, e := range r.taskAssigned {
		if err := e.hook.OnTaskAssigned(ctx, wf, t); err != nil {
			r.logHookError("OnTaskAssigned", e.name, err)
		}
	}
}

// EmitTaskStarted notifies all extensions that implement TaskStarted.
func (r *Registry) EmitTaskStarted(ctx context.Context, wf *workflow.Workflow, t *task.Task) {
	for _, e := range r.taskStarted {
		if err := e.hook.OnTaskStarted(ctx, wf, t); err != nil {
			r.logHookError("OnTaskStarted", e.name, err)
		}
	}
}

// EmitTaskTransitioned notifies all extensions that implement TaskTransitioned.
func (r *Registry) EmitTaskTransitioned(ctx context.Context, wf *workflow.Workflow, t *task.Task, from, to task.State) {
	for _, e := range r.taskTransitioned {
		if err := e.hook.OnTaskTransitioned(ctx, wf, t, from, to); err != nil {
			r.logHookError("OnTaskTransitioned", e.name, err)
		}
	}
}

// EmitTaskCompleted notifies all extensions that implement TaskCompleted.
func (r *Registry) EmitTaskCompleted(ctx context.Context, wf *workflow.Workflow, t *task.Task, elapsed time.Duration) {
	for _, e := range r.taskCompleted {
		if err := e.hook.OnTaskCompleted(ctx, wf, t, elapsed); err != nil {
			r.logHookError("OnTaskCompleted", e.name, err)
		}
	}
}

// EmitTaskBlocked notifies all extensions that implement TaskBlocked.
func (r *Registry) EmitTaskBlocked(ctx context.Context, wf *workflow.Workflow, t *task.Task) {
	for _, e := range r.taskBlocked {
		if err := e.hook.OnTaskBlocked(ctx, wf, t); err != nil {
			r.logHookError("OnTaskBlocked", e.name, err)
		}
	}
}

// EmitTaskHandoff notifies all extensions that implement TaskHandoff.
func (r *Registry) EmitTaskHandoff(ctx context.Context, wf *workflow.Workflow, completed, next *task.Task) {
	for _, e := range r.taskHandoff {
		if err := e.hook.OnTaskHandoff(ctx, wf, completed, next); err != nil {
			r.logHookError("OnTaskHandoff", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Agent and coordinator event emitters
// ──────────────────────────────────────────────────

// EmitAgentConnected notifies all extensions that implement AgentConnected.
func (r *Registry) EmitAgentConnected(ctx context.Context, a *agent.Agent) {
	for _, e := range r.agentConnected {
		if err := e.hook.OnAgentConnected(ctx, a); err != nil {
			r.logHookError("OnAgentConnected", e.name, err)
		}
	}
}

// EmitAgentDisconnected notifies all extensions that implement AgentDisconnected.
func (r *Registry) EmitAgentDisconnected(ctx context.Context, agentID string, blocked []id.TaskID) {
	for _, e := range r.agentDisconnected {
		if err := e.hook.OnAgentDisconnected(ctx, agentID, blocked); err != nil {
			r.logHookError("OnAgentDisconnected", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated — they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
