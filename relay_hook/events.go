package relayhook

import (
	"context"

	"github.com/xraph/relay"
	"github.com/xraph/relay/catalog"
)

// Handoff lifecycle event types. Each constant maps to one ext lifecycle
// hook and is used as the event.Event.Type when sending via Relay.
const (
	EventWorkflowCreated   = "handoff.workflow.created"
	EventWorkflowCompleted = "handoff.workflow.completed"
	EventTaskAssigned      = "handoff.task.assigned"
	EventTaskStarted       = "handoff.task.started"
	EventTaskTransitioned  = "handoff.task.transitioned"
	EventTaskCompleted     = "handoff.task.completed"
	EventTaskBlocked       = "handoff.task.blocked"
	EventTaskHandoff       = "handoff.task.handoff"
	EventAgentConnected    = "handoff.agent.connected"
	EventAgentDisconnected = "handoff.agent.disconnected"
)

// AllDefinitions returns webhook definitions for all Handoff lifecycle
// event types. Pass these to relay.RegisterEventType to populate the catalog.
func AllDefinitions() []catalog.WebhookDefinition {
	return []catalog.WebhookDefinition{
		// ── Workflow events ─────────────────────────────
		{
			Name:        EventWorkflowCreated,
			Description: "Fired when a workflow is created and persisted.",
			Group:       "workflows",
			Version:     "2025-01-01",
		},
		{
			Name:        EventWorkflowCompleted,
			Description: "Fired when the last task of a workflow completes.",
			Group:       "workflows",
			Version:     "2025-01-01",
		},
		// ── Task events ─────────────────────────────────
		{
			Name:        EventTaskAssigned,
			Description: "Fired when a task is assigned to an agent.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		{
			Name:        EventTaskStarted,
			Description: "Fired when an agent begins working a task.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		{
			Name:        EventTaskTransitioned,
			Description: "Fired on every task state change.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		{
			Name:        EventTaskCompleted,
			Description: "Fired when a task finishes successfully.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		{
			Name:        EventTaskBlocked,
			Description: "Fired when a task becomes blocked.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		{
			Name:        EventTaskHandoff,
			Description: "Fired when a completion advances the workflow to the next eligible task.",
			Group:       "tasks",
			Version:     "2025-01-01",
		},
		// ── Agent events ────────────────────────────────
		{
			Name:        EventAgentConnected,
			Description: "Fired when an agent registers or reconnects.",
			Group:       "agents",
			Version:     "2025-01-01",
		},
		{
			Name:        EventAgentDisconnected,
			Description: "Fired when an agent disconnects or its heartbeat goes stale.",
			Group:       "agents",
			Version:     "2025-01-01",
		},
	}
}

// RegisterAll registers all Handoff webhook event types in the Relay catalog.
// Call this once during application startup before sending events.
func RegisterAll(ctx context.Context, r *relay.Relay) error {
	for _, def := range AllDefinitions() {
		if _, err := r.RegisterEventType(ctx, def); err != nil {
			return err
		}
	}
	return nil
}
