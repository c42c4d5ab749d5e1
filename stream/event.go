// Package stream provides a real-time event broker for Handoff lifecycle
// events. It bridges the ext.Extension system to connected clients via
// topic-based pub/sub.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Workflow events.
	EventWorkflowCreated   EventType = "workflow.created"
	EventWorkflowCompleted EventType = "workflow.completed"

	// Task events.
	EventTaskAssigned     EventType = "task.assigned"
	EventTaskStarted      EventType = "task.started"
	EventTaskTransitioned EventType = "task.transitioned"
	EventTaskCompleted    EventType = "task.completed"
	EventTaskBlocked      EventType = "task.blocked"
	EventTaskHandoff      EventType = "task.handoff"

	// Agent events.
	EventAgentConnected    EventType = "agent.connected"
	EventAgentDisconnected EventType = "agent.disconnected"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the channel this event was published on.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// WorkflowEventData is the payload for workflow lifecycle events.
type WorkflowEventData struct {
	WorkflowID    string `json:"workflow_id"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
	ElapsedMs     int64  `json:"elapsed_ms,omitempty"`
}

// TaskEventData is the payload for task lifecycle events.
type TaskEventData struct {
	WorkflowID string `json:"workflow_id"`
	TaskID     string `json:"task_id"`
	TaskName   string `json:"task_name"`
	State      string `json:"state"`
	FromState  string `json:"from_state,omitempty"`
	Agent      string `json:"agent,omitempty"`
	// NextTaskID is set on handoff events: the task the workflow's
	// pointer moved to.
	NextTaskID   string `json:"next_task_id,omitempty"`
	NextTaskName string `json:"next_task_name,omitempty"`
	ElapsedMs    int64  `json:"elapsed_ms,omitempty"`
}

// AgentEventData is the payload for agent lifecycle events.
type AgentEventData struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
	// BlockedTasks lists tasks moved to blocked when the agent
	// disconnected.
	BlockedTasks []string `json:"blocked_tasks,omitempty"`
}
