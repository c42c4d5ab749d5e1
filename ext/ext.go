// Package ext defines the extension system for Handoff.
// Extensions are notified of lifecycle events (workflow created, task
// completed, agent disconnected, etc.) and can react to them — logging,
// metrics, tracing, audit trails.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Workflow lifecycle hooks
// ──────────────────────────────────────────────────

// WorkflowCreated is called after a workflow is persisted.
type WorkflowCreated interface {
	OnWorkflowCreated(ctx context.Context, wf *workflow.Workflow) error
}

// WorkflowCompleted is called when the last task of a workflow
// completes.
type WorkflowCompleted interface {
	OnWorkflowCompleted(ctx context.Context, wf *workflow.Workflow, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Task lifecycle hooks
// ──────────────────────────────────────────────────

// TaskAssigned is called after a task is assigned to an agent.
type TaskAssigned interface {
	OnTaskAssigned(ctx context.Context, wf *workflow.Workflow, t *task.Task) error
}

// TaskStarted is called when a task enters in_progress.
type TaskStarted interface {
	OnTaskStarted(ctx context.Context, wf *workflow.Workflow, t *task.Task) error
}

// TaskTransitioned is called on every task state change, after the
// more specific hook for that change.
type TaskTransitioned interface {
	OnTaskTransitioned(ctx context.Context, wf *workflow.Workflow, t *task.Task, from, to task.State) error
}

// TaskCompleted is called when a task completes.
type TaskCompleted interface {
	OnTaskCompleted(ctx context.Context, wf *workflow.Workflow, t *task.Task, elapsed time.Duration) error
}

// TaskBlocked is called when a task enters blocked.
type TaskBlocked interface {
	OnTaskBlocked(ctx context.Context, wf *workflow.Workflow, t *task.Task) error
}

// TaskHandoff is called when a completion moves the workflow's
// current-task pointer to a newly eligible task.
type TaskHandoff interface {
	OnTaskHandoff(ctx context.Context, wf *workflow.Workflow, completed, next *task.Task) error
}

// ──────────────────────────────────────────────────
// Agent and coordinator hooks
// ──────────────────────────────────────────────────

// AgentConnected is called after an agent registers or reconnects.
type AgentConnected interface {
	OnAgentConnected(ctx context.Context, a *agent.Agent) error
}

// AgentDisconnected is called after an agent disconnects or goes stale.
// blocked lists the in-flight tasks that were moved to blocked.
type AgentDisconnected interface {
	OnAgentDisconnected(ctx context.Context, agentID string, blocked []id.TaskID) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
