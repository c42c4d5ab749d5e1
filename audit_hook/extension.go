package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

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

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
// Callers provide a RecorderFunc adapter that bridges to their audit backend.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
//
// Example bridging to Chronicle:
//
//	audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    b := chronicle.Info(ctx, evt.Action, evt.Resource, evt.ResourceID).
//	        Category(evt.Category).
//	        Outcome(evt.Outcome)
//	    for k, v := range evt.Metadata {
//	        b = b.Meta(k, v)
//	    }
//	    return b.Record()
//	})
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants (mirror chronicle/audit).
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants (mirror chronicle/audit).
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges Handoff lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowCreated implements ext.WorkflowCreated.
func (e *Extension) OnWorkflowCreated(ctx context.Context, wf *workflow.Workflow) error {
	return e.record(ctx, ActionWorkflowCreated, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, wf.ID.String(), CategoryWorkflow, nil,
		"workflow_name", wf.Name,
		"task_count", len(wf.Tasks),
	)
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (e *Extension) OnWorkflowCompleted(ctx context.Context, wf *workflow.Workflow, elapsed time.Duration) error {
	return e.record(ctx, ActionWorkflowCompleted, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, wf.ID.String(), CategoryWorkflow, nil,
		"workflow_name", wf.Name,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ── Task lifecycle hooks ────────────────────────────

// OnTaskAssigned implements ext.TaskAssigned.
func (e *Extension) OnTaskAssigned(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return e.record(ctx, ActionTaskAssigned, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"workflow_id", wf.ID.String(),
		"task_name", t.Name,
		"assigned_agent", t.AssignedAgent,
	)
}

// OnTaskStarted implements ext.TaskStarted.
func (e *Extension) OnTaskStarted(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return e.record(ctx, ActionTaskStarted, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"workflow_id", wf.ID.String(),
		"task_name", t.Name,
		"assigned_agent", t.AssignedAgent,
	)
}

// OnTaskTransitioned implements ext.TaskTransitioned.
func (e *Extension) OnTaskTransitioned(ctx context.Context, wf *workflow.Workflow, t *task.Task, from, to task.State) error {
	return e.record(ctx, ActionTaskTransitioned, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"workflow_id", wf.ID.String(),
		"task_name", t.Name,
		"from_state", string(from),
		"to_state", string(to),
	)
}

// OnTaskCompleted implements ext.TaskCompleted.
func (e *Extension) OnTaskCompleted(ctx context.Context, wf *workflow.Workflow, t *task.Task, elapsed time.Duration) error {
	return e.record(ctx, ActionTaskCompleted, SeverityInfo, OutcomeSuccess,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"workflow_id", wf.ID.String(),
		"task_name", t.Name,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTaskBlocked implements ext.TaskBlocked.
func (e *Extension) OnTaskBlocked(ctx context.Context, wf *workflow.Workflow, t *task.Task) error {
	return e.record(ctx, ActionTaskBlocked, SeverityWarning, OutcomeFailure,
		ResourceTask, t.ID.String(), CategoryTask, nil,
		"workflow_id", wf.ID.String(),
		"task_name", t.Name,
		"assigned_agent", t.AssignedAgent,
	)
}

// OnTaskHandoff implements ext.TaskHandoff.
func (e *Extension) OnTaskHandoff(ctx context.Context, wf *workflow.Workflow, completed, next *task.Task) error {
	return e.record(ctx, ActionTaskHandoff, SeverityInfo, OutcomeSuccess,
		ResourceWorkflow, wf.ID.String(), CategoryWorkflow, nil,
		"workflow_name", wf.Name,
		"completed_task", completed.Name,
		"next_task", next.Name,
	)
}

// ── Agent lifecycle hooks ───────────────────────────

// OnAgentConnected implements ext.AgentConnected.
func (e *Extension) OnAgentConnected(ctx context.Context, a *agent.Agent) error {
	return e.record(ctx, ActionAgentConnected, SeverityInfo, OutcomeSuccess,
		ResourceAgent, a.ID, CategoryAgent, nil,
		"agent_name", a.Name,
	)
}

// OnAgentDisconnected implements ext.AgentDisconnected.
func (e *Extension) OnAgentDisconnected(ctx context.Context, agentID string, blocked []id.TaskID) error {
	blockedIDs := make([]string, len(blocked))
	for i, tid := range blocked {
		blockedIDs[i] = tid.String()
	}
	return e.record(ctx, ActionAgentDisconnected, SeverityWarning, OutcomeFailure,
		ResourceAgent, agentID, CategoryAgent, nil,
		"blocked_tasks", blockedIDs,
		"blocked_count", len(blocked),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
