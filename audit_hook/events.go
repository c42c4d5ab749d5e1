package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionWorkflowCreated   = "workflow.created"
	ActionWorkflowCompleted = "workflow.completed"
	ActionTaskAssigned      = "task.assigned"
	ActionTaskStarted       = "task.started"
	ActionTaskTransitioned  = "task.transitioned"
	ActionTaskCompleted     = "task.completed"
	ActionTaskBlocked       = "task.blocked"
	ActionTaskHandoff       = "task.handoff"
	ActionAgentConnected    = "agent.connected"
	ActionAgentDisconnected = "agent.disconnected"
)

// Audit event categories group related actions.
const (
	CategoryWorkflow = "handoff.workflow"
	CategoryTask     = "handoff.task"
	CategoryAgent    = "handoff.agent"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceWorkflow = "workflow"
	ResourceTask     = "task"
	ResourceAgent    = "agent"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionWorkflowCreated,
		ActionWorkflowCompleted,
		ActionTaskAssigned,
		ActionTaskStarted,
		ActionTaskTransitioned,
		ActionTaskCompleted,
		ActionTaskBlocked,
		ActionTaskHandoff,
		ActionAgentConnected,
		ActionAgentDisconnected,
	}
}
