// Package observability provides a metrics extension that counts
// lifecycle events via the go-utils MetricFactory.
package observability

import (
	"context"
	"time"

	gu "github.com/xraph/go-utils/metrics"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/ext"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.WorkflowCreated   = (*MetricsExtension)(nil)
	_ ext.WorkflowCompleted = (*MetricsExtension)(nil)
	_ ext.TaskAssigned      = (*MetricsExtension)(nil)
	_ ext.TaskStarted       = (*MetricsExtension)(nil)
	_ ext.TaskCompleted     = (*MetricsExtension)(nil)
	_ ext.TaskBlocked       = (*MetricsExtension)(nil)
	_ ext.TaskHandoff       = (*MetricsExtension)(nil)
	_ ext.AgentConnected    = (*MetricsExtension)(nil)
	_ ext.AgentDisconnected = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle metrics via go-utils
// MetricFactory. Register it as a Handoff extension to automatically
// track workflow creation, task throughput, blocking rates, handoffs,
// and agent churn.
type MetricsExtension struct {
	WorkflowCreated   gu.Counter
	WorkflowCompleted gu.Counter
	TaskAssigned      gu.Counter
	TaskStarted       gu.Counter
	TaskCompleted     gu.Counter
	TaskBlocked       gu.Counter
	TaskHandoff       gu.Counter
	AgentConnected    gu.Counter
	AgentDisconnected gu.Counter
}

// NewMetricsExtension creates a MetricsExtension using a default metrics collector.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithFactory(gu.NewMetricsCollector("handoff/observability"))
}

// NewMetricsExtensionWithFactory creates a MetricsExtension with the provided MetricFactory.
// Use fapp.Metrics() in forge extensions, or gu.NewMetricsCollector for testing.
func NewMetricsExtensionWithFactory(factory gu.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		WorkflowCreated:   factory.Counter("handoff.workflow.created"),
		WorkflowCompleted: factory.Counter("handoff.workflow.completed"),
		TaskAssigned:      factory.Counter("handoff.task.assigned"),
		TaskStarted:       factory.Counter("handoff.task.started"),
		TaskCompleted:     factory.Counter("handoff.task.completed"),
		TaskBlocked:       factory.Counter("handoff.task.blocked"),
		TaskHandoff:       factory.Counter("handoff.task.handoff"),
		AgentConnected:    factory.Counter("handoff.agent.connected"),
		AgentDisconnected: factory.Counter("handoff.agent.disconnected"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Workflow lifecycle hooks ────────────────────────

// OnWorkflowCreated implements ext.WorkflowCreated.
func (m *MetricsExtension) OnWorkflowCreated(_ context.Context, _ *workflow.Workflow) error {
	m.WorkflowCreated.Inc()
	return nil
}

// OnWorkflowCompleted implements ext.WorkflowCompleted.
func (m *MetricsExtension) OnWorkflowCompleted(_ context.Context, _ *workflow.Workflow, _ time.Duration) error {
	m.WorkflowCompleted.Inc()
	return nil
}

// ── Task lifecycle hooks ────────────────────────────

// OnTaskAssigned implements ext.TaskAssigned.
func (m *MetricsExtension) OnTaskAssigned(_ context.Context, _ *workflow.Workflow, _ *task.Task) error {
	m.TaskAssigned.Inc()
	return nil
}

// OnTaskStarted implements ext.TaskStarted.
func (m *MetricsExtension) OnTaskStarted(_ context.Context, _ *workflow.Workflow, _ *task.Task) error {
	m.TaskStarted.Inc()
	return nil
}

// OnTaskCompleted implements ext.TaskCompleted.
func (m *MetricsExtension) OnTaskCompleted(_ context.Context, _ *workflow.Workflow, _ *task.Task, _ time.Duration) error {
	m.TaskCompleted.Inc()
	return nil
}

// OnTaskBlocked implements ext.TaskBlocked.
func (m *MetricsExtension) OnTaskBlocked(_ context.Context, _ *workflow.Workflow, _ *task.Task) error {
	m.TaskBlocked.Inc()
	return nil
}

// OnTaskHandoff implements ext.TaskHandoff.
func (m *MetricsExtension) OnTaskHandoff(_ context.Context, _ *workflow.Workflow, _, _ *task.Task) error {
	m.TaskHandoff.Inc()
	return nil
}

// ── Agent lifecycle hooks ───────────────────────────

// OnAgentConnected implements ext.AgentConnected.
func (m *MetricsExtension) OnAgentConnected(_ context.Context, _ *agent.Agent) error {
	m.AgentConnected.Inc()
	return nil
}

// OnAgentDisconnected implements ext.AgentDisconnected.
func (m *MetricsExtension) OnAgentDisconnected(_ context.Context, _ string, _ []id.TaskID) error {
	m.AgentDisconnected.Inc()
	return nil
}
