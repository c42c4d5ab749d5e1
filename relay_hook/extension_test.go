package relayhook_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/relay"
	revent "github.com/xraph/relay/event"
	"github.com/xraph/relay/store/memory"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/ext"
	"github.com/xraph/handoff/id"
	rh "github.com/xraph/handoff/relay_hook"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// ── Helpers ─────────────────────────────────────────

func newTestRelay(t *testing.T) *relay.Relay {
	t.Helper()
	r, err := relay.New(relay.WithStore(memory.New()))
	if err != nil {
		t.Fatalf("failed to create relay: %v", err)
	}
	if err := rh.RegisterAll(context.Background(), r); err != nil {
		t.Fatalf("failed to register event types: %v", err)
	}
	return r
}

// newTestWorkflow builds a two-task pipeline and returns the workflow
// plus its tasks in declaration order.
func newTestWorkflow(t *testing.T) (*workflow.Workflow, *task.Task, *task.Task) {
	t.Helper()
	wf, err := workflow.Build(workflow.Spec{
		Name: "release",
		Tasks: []task.Spec{
			{Name: "design"},
			{Name: "build", DependsOn: []string{"design"}},
		},
	})
	if err != nil {
		t.Fatalf("failed to build workflow: %v", err)
	}
	first := wf.Tasks[wf.Order[0]]
	second := wf.Tasks[wf.Order[1]]
	return wf, first, second
}

func newTestAgent() *agent.Agent {
	return &agent.Agent{
		ID:     "agent-researcher",
		Name:   "Researcher",
		Status: agent.StatusOnline,
	}
}

// lastEvent retrieves the most recent event from the relay store with the
// given type. It fails the test if no matching event is found.
func lastEvent(t *testing.T, r *relay.Relay, eventType string) *revent.Event {
	t.Helper()
	events, err := r.Store().ListEvents(context.Background(), revent.ListOpts{
		Type:  eventType,
		Limit: 1,
	})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) == 0 {
		t.Fatalf("no %s event found", eventType)
	}
	return events[0]
}

func countEvents(t *testing.T, r *relay.Relay, eventType string) int {
	t.Helper()
	events, err := r.Store().ListEvents(context.Background(), revent.ListOpts{
		Type:  eventType,
		Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	return len(events)
}

// ── Tests ───────────────────────────────────────────

func TestRelayHookExtension_Name(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	if h.Name() != "relay-hook" {
		t.Errorf("expected name %q, got %q", "relay-hook", h.Name())
	}
}

func TestRelayHookExtension_WorkflowCreated(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, _, _ := newTestWorkflow(t)

	if err := h.OnWorkflowCreated(context.Background(), wf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventWorkflowCreated)
}

func TestRelayHookExtension_WorkflowCompleted(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, _, _ := newTestWorkflow(t)

	if err := h.OnWorkflowCompleted(context.Background(), wf, 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventWorkflowCompleted)
}

func TestRelayHookExtension_TaskAssigned(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, _ := newTestWorkflow(t)
	design.AssignedAgent = "agent-1"

	if err := h.OnTaskAssigned(context.Background(), wf, design); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskAssigned)
}

func TestRelayHookExtension_TaskStarted(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, _ := newTestWorkflow(t)

	if err := h.OnTaskStarted(context.Background(), wf, design); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskStarted)
}

func TestRelayHookExtension_TaskTransitioned(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, _ := newTestWorkflow(t)

	err := h.OnTaskTransitioned(context.Background(), wf, design,
		task.StatePending, task.StateInProgress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskTransitioned)
}

func TestRelayHookExtension_TaskCompleted(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, _ := newTestWorkflow(t)

	if err := h.OnTaskCompleted(context.Background(), wf, design, 150*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskCompleted)
}

func TestRelayHookExtension_TaskBlocked(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, _ := newTestWorkflow(t)

	if err := h.OnTaskBlocked(context.Background(), wf, design); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskBlocked)
}

func TestRelayHookExtension_TaskHandoff(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	wf, design, build := newTestWorkflow(t)

	if err := h.OnTaskHandoff(context.Background(), wf, design, build); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskHandoff)
}

func TestRelayHookExtension_AgentConnected(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)

	if err := h.OnAgentConnected(context.Background(), newTestAgent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventAgentConnected)
}

func TestRelayHookExtension_AgentDisconnected(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	blocked := []id.TaskID{id.NewTaskID(), id.NewTaskID()}

	if err := h.OnAgentDisconnected(context.Background(), "agent-1", blocked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventAgentDisconnected)
}

func TestRelayHookExtension_WithEvents_FiltersDisabled(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r, rh.WithEvents(rh.EventTaskCompleted))

	ctx := context.Background()
	wf, design, _ := newTestWorkflow(t)

	// Started is NOT in the enabled set — should be silently skipped.
	if err := h.OnTaskStarted(ctx, wf, design); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := countEvents(t, r, rh.EventTaskStarted); n != 0 {
		t.Errorf("expected 0 started events (disabled), got %d", n)
	}

	// Completed IS enabled — should be sent.
	if err := h.OnTaskCompleted(ctx, wf, design, 50*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := countEvents(t, r, rh.EventTaskCompleted); n != 1 {
		t.Errorf("expected 1 completed event, got %d", n)
	}
}

func TestRelayHookExtension_WithPayloadFunc(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r, rh.WithPayloadFunc(rh.EventTaskCompleted, func(args any) (any, error) {
		return map[string]string{"custom": "payload"}, nil
	}))

	wf, design, _ := newTestWorkflow(t)
	if err := h.OnTaskCompleted(context.Background(), wf, design, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lastEvent(t, r, rh.EventTaskCompleted)
}

func TestRelayHookExtension_ViaRegistry(t *testing.T) {
	r := newTestRelay(t)
	h := rh.New(r)
	logger := slog.Default()

	reg := ext.NewRegistry(logger)
	reg.Register(h)

	ctx := context.Background()
	wf, design, build := newTestWorkflow(t)
	a := newTestAgent()

	reg.EmitWorkflowCreated(ctx, wf)
	reg.EmitWorkflowCompleted(ctx, wf, 2*time.Second)
	reg.EmitTaskAssigned(ctx, wf, design)
	reg.EmitTaskStarted(ctx, wf, design)
	reg.EmitTaskTransitioned(ctx, wf, design, task.StatePending, task.StateInProgress)
	reg.EmitTaskCompleted(ctx, wf, design, time.Second)
	reg.EmitTaskBlocked(ctx, wf, build)
	reg.EmitTaskHandoff(ctx, wf, design, build)
	reg.EmitAgentConnected(ctx, a)
	reg.EmitAgentDisconnected(ctx, a.ID, []id.TaskID{design.ID})

	// Verify all 10 event types were persisted.
	allTypes := []string{
		rh.EventWorkflowCreated,
		rh.EventWorkflowCompleted,
		rh.EventTaskAssigned,
		rh.EventTaskStarted,
		rh.EventTaskTransitioned,
		rh.EventTaskCompleted,
		rh.EventTaskBlocked,
		rh.EventTaskHandoff,
		rh.EventAgentConnected,
		rh.EventAgentDisconnected,
	}

	for _, et := range allTypes {
		if n := countEvents(t, r, et); n != 1 {
			t.Errorf("%s: want 1 event, got %d", et, n)
		}
	}
}
