package push

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/store/memory"
	"github.com/xraph/handoff/stream"
	"github.com/xraph/handoff/task"
)

// ── Test Helpers ──────────────────────────────────────

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestHandler creates a handler backed by a real coordinator on an
// in-memory store, with the stream broker wired in as an extension.
func setupTestHandler(t *testing.T) (*Handler, *coordinator.Coordinator, *stream.Broker) {
	t.Helper()

	broker := stream.NewBroker(testLogger())
	coord, err := coordinator.New(
		coordinator.WithStore(memory.New()),
		coordinator.WithLogger(testLogger()),
		coordinator.WithExtension(broker),
	)
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	if err := coord.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(func() { _ = coord.Shutdown(context.Background()) })

	return NewHandler(coord, broker, testLogger()), coord, broker
}

func testConn() *Connection {
	return NewConnection("c-1", &Identity{Subject: "test", Scopes: []string{ScopeAll}}, &JSONCodec{})
}

// mustJSON marshals to JSON or panics.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// createPipeline creates a three-task workflow via the handler and
// returns the created response.
func createPipeline(t *testing.T, h *Handler) WorkflowCreateResponse {
	t.Helper()

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-create", Type: FrameRequest, Method: MethodWorkflowCreate,
		Data: mustJSON(WorkflowCreateRequest{
			Name: "release",
			Tasks: []task.Spec{
				{Name: "design"},
				{Name: "build", DependsOn: []string{"design"}},
				{Name: "ship", DependsOn: []string{"build"}},
			},
		}),
	}, testConn())
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want %q, error = %v", resp.Type, FrameResponse, resp.Error)
	}

	var result WorkflowCreateResponse
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return result
}

// taskIDByName resolves a task ID from a workflow fetched via the handler.
func taskIDByName(t *testing.T, h *Handler, workflowID, name string) string {
	t.Helper()

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-get", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: workflowID}),
	}, testConn())
	if resp.Type != FrameResponse {
		t.Fatalf("workflow.get failed: %v", resp.Error)
	}

	var wf struct {
		Tasks map[string]struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(resp.Data, &wf); err != nil {
		t.Fatalf("unmarshal workflow: %v", err)
	}
	for _, tk := range wf.Tasks {
		if tk.Name == name {
			return tk.ID
		}
	}
	t.Fatalf("task %q not found", name)
	return ""
}

// ── Workflow methods ──────────────────────────────────

func TestHandler_WorkflowCreate(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	result := createPipeline(t, h)
	if result.WorkflowID == "" {
		t.Error("expected non-empty workflow_id")
	}
	if result.Status != "active" {
		t.Errorf("status = %q, want active", result.Status)
	}
}

func TestHandler_WorkflowCreateInvalid(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-1", Type: FrameRequest, Method: MethodWorkflowCreate,
		Data: mustJSON(WorkflowCreateRequest{Name: ""}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_WorkflowGet(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-get", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: created.WorkflowID}),
	}, testConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want %q, error = %v", resp.Type, FrameResponse, resp.Error)
	}
	if resp.CorrelID != "req-get" {
		t.Errorf("CorrelID = %q, want req-get", resp.CorrelID)
	}

	var wf map[string]any
	if err := json.Unmarshal(resp.Data, &wf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if wf["name"] != "release" {
		t.Errorf("name = %v, want release", wf["name"])
	}
}

func TestHandler_WorkflowGetInvalidID(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-1", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: "not-an-id"}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_WorkflowGetNotFound(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-1", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: id.NewWorkflowID().String()}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestHandler_WorkflowStatus(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-status", Type: FrameRequest, Method: MethodWorkflowStatus,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: created.WorkflowID}),
	}, testConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want %q, error = %v", resp.Type, FrameResponse, resp.Error)
	}

	var st struct {
		Status string `json:"status"`
		Counts struct {
			Pending int `json:"pending"`
		} `json:"counts"`
	}
	if err := json.Unmarshal(resp.Data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Status != "active" {
		t.Errorf("status = %q, want active", st.Status)
	}
	if st.Counts.Pending != 3 {
		t.Errorf("pending = %d, want 3", st.Counts.Pending)
	}
}

func TestHandler_WorkflowList(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	createPipeline(t, h)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-list", Type: FrameRequest, Method: MethodWorkflowList,
		Data: mustJSON(WorkflowListRequest{Status: "active"}),
	}, testConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want %q, error = %v", resp.Type, FrameResponse, resp.Error)
	}

	var workflows []map[string]any
	if err := json.Unmarshal(resp.Data, &workflows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(workflows) != 1 {
		t.Errorf("workflows = %d, want 1", len(workflows))
	}
}

func TestHandler_WorkflowPauseResume(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	conn := testConn()

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-pause", Type: FrameRequest, Method: MethodWorkflowPause,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: created.WorkflowID}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("pause: Type = %q, error = %v", resp.Type, resp.Error)
	}

	// Task transitions bounce while paused.
	resp = h.Handle(context.Background(), &Frame{
		ID: "req-start", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(TaskRef{WorkflowID: created.WorkflowID, TaskID: designID}),
	}, conn)
	if resp.Type != FrameErr || resp.Error.Code != ErrCodeBadRequest {
		t.Fatalf("start while paused: Type = %q, error = %v", resp.Type, resp.Error)
	}

	resp = h.Handle(context.Background(), &Frame{
		ID: "req-resume", Type: FrameRequest, Method: MethodWorkflowResume,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: created.WorkflowID}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("resume: Type = %q, error = %v", resp.Type, resp.Error)
	}

	resp = h.Handle(context.Background(), &Frame{
		ID: "req-start-2", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(TaskRef{WorkflowID: created.WorkflowID, TaskID: designID}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("start after resume: Type = %q, error = %v", resp.Type, resp.Error)
	}
}

// ── Task methods ──────────────────────────────────────

func TestHandler_TaskLifecycle(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	conn := testConn()
	ref := TaskRef{WorkflowID: created.WorkflowID, TaskID: designID}

	// Assign.
	resp := h.Handle(context.Background(), &Frame{
		ID: "req-assign", Type: FrameRequest, Method: MethodTaskAssign,
		Data: mustJSON(TaskAssignRequest{TaskRef: ref, AgentID: "agent-1"}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("assign: Type = %q, error = %v", resp.Type, resp.Error)
	}

	// Start.
	resp = h.Handle(context.Background(), &Frame{
		ID: "req-start", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(ref),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("start: Type = %q, error = %v", resp.Type, resp.Error)
	}

	// Complete.
	resp = h.Handle(context.Background(), &Frame{
		ID: "req-complete", Type: FrameRequest, Method: MethodTaskComplete,
		Data: mustJSON(ref),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("complete: Type = %q, error = %v", resp.Type, resp.Error)
	}

	// The trail records every hop.
	resp = h.Handle(context.Background(), &Frame{
		ID: "req-trail", Type: FrameRequest, Method: MethodWorkflowTrail,
		Data: mustJSON(WorkflowTrailRequest{WorkflowID: created.WorkflowID, TaskID: designID}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("trail: Type = %q, error = %v", resp.Type, resp.Error)
	}

	var trail []struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.Unmarshal(resp.Data, &trail); err != nil {
		t.Fatalf("unmarshal trail: %v", err)
	}
	if len(trail) != 2 {
		t.Fatalf("trail entries = %d, want 2", len(trail))
	}
	if trail[0].To != "completed" || trail[1].To != "in_progress" {
		t.Errorf("trail = %+v, want newest first", trail)
	}
}

func TestHandler_TaskCompleteWithHandoffData(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	conn := testConn()
	ref := TaskRef{WorkflowID: created.WorkflowID, TaskID: designID}

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-start", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(ref),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("start: Type = %q, error = %v", resp.Type, resp.Error)
	}

	resp = h.Handle(context.Background(), &Frame{
		ID: "req-complete", Type: FrameRequest, Method: MethodTaskComplete,
		Data: mustJSON(TaskCompleteRequest{
			TaskRef:     ref,
			HandoffData: map[string]any{"artifact": "design-doc"},
		}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("complete: Type = %q, error = %v", resp.Type, resp.Error)
	}

	// The data rides on the completed task's metadata.
	resp = h.Handle(context.Background(), &Frame{
		ID: "req-get", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: mustJSON(WorkflowGetRequest{WorkflowID: created.WorkflowID}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("get: Type = %q, error = %v", resp.Type, resp.Error)
	}
	var wf struct {
		Tasks map[string]struct {
			Name     string         `json:"name"`
			Metadata map[string]any `json:"metadata"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(resp.Data, &wf); err != nil {
		t.Fatalf("unmarshal workflow: %v", err)
	}
	for _, tk := range wf.Tasks {
		if tk.Name != "design" {
			continue
		}
		carried, ok := tk.Metadata["handoff"].(map[string]any)
		if !ok || carried["artifact"] != "design-doc" {
			t.Errorf("handoff metadata = %v", tk.Metadata)
		}
		return
	}
	t.Fatal("design task not found")
}

func TestHandler_TaskStartDependencyUnmet(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	buildID := taskIDByName(t, h, created.WorkflowID, "build")

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-start", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(TaskRef{WorkflowID: created.WorkflowID, TaskID: buildID}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_TaskCanStart(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")
	buildID := taskIDByName(t, h, created.WorkflowID, "build")

	check := func(taskID string) CanStartResponse {
		resp := h.Handle(context.Background(), &Frame{
			ID: "req-can", Type: FrameRequest, Method: MethodTaskCanStart,
			Data: mustJSON(TaskRef{WorkflowID: created.WorkflowID, TaskID: taskID}),
		}, testConn())
		if resp.Type != FrameResponse {
			t.Fatalf("can_start: Type = %q, error = %v", resp.Type, resp.Error)
		}
		var result CanStartResponse
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return result
	}

	if got := check(designID); !got.CanStart {
		t.Error("design should be startable")
	}
	got := check(buildID)
	if got.CanStart {
		t.Error("build should not be startable before design completes")
	}
	if len(got.UnmetDeps) != 1 || got.UnmetDeps[0] != designID {
		t.Errorf("UnmetDeps = %v, want [%s]", got.UnmetDeps, designID)
	}
}

func TestHandler_TaskTransitionInvalidState(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-1", Type: FrameRequest, Method: MethodTaskTransition,
		Data: mustJSON(TaskTransitionRequest{
			TaskRef: TaskRef{WorkflowID: created.WorkflowID, TaskID: designID},
			To:      "exploded",
		}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_TaskBlock(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	conn := testConn()
	ref := TaskRef{WorkflowID: created.WorkflowID, TaskID: designID}

	h.Handle(context.Background(), &Frame{
		ID: "req-start", Type: FrameRequest, Method: MethodTaskStart,
		Data: mustJSON(ref),
	}, conn)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-block", Type: FrameRequest, Method: MethodTaskBlock,
		Data: mustJSON(TaskBlockRequest{TaskRef: ref, Reason: "waiting on review"}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("block: Type = %q, error = %v", resp.Type, resp.Error)
	}

	var result map[string]string
	_ = json.Unmarshal(resp.Data, &result)
	if result["status"] != "blocked" {
		t.Errorf("status = %q, want blocked", result["status"])
	}
}

// ── Agent methods ─────────────────────────────────────

func TestHandler_AgentRegisterAndHeartbeat(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	conn := testConn()

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-reg", Type: FrameRequest, Method: MethodAgentRegister,
		Data: mustJSON(AgentRegisterRequest{AgentID: "agent-researcher", Name: "Researcher"}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("register: Type = %q, error = %v", resp.Type, resp.Error)
	}

	var a map[string]any
	if err := json.Unmarshal(resp.Data, &a); err != nil {
		t.Fatalf("unmarshal agent: %v", err)
	}
	if a["id"] != "agent-researcher" {
		t.Errorf("id = %v, want agent-researcher", a["id"])
	}

	resp = h.Handle(context.Background(), &Frame{
		ID: "req-hb", Type: FrameRequest, Method: MethodAgentHeartbeat,
		Data: mustJSON(AgentHeartbeatRequest{AgentID: "agent-researcher"}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("heartbeat: Type = %q, error = %v", resp.Type, resp.Error)
	}
}

func TestHandler_AgentRegisterMissingID(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-reg", Type: FrameRequest, Method: MethodAgentRegister,
		Data: mustJSON(AgentRegisterRequest{Name: "no id"}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_AgentHeartbeatUnknown(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-hb", Type: FrameRequest, Method: MethodAgentHeartbeat,
		Data: mustJSON(AgentHeartbeatRequest{AgentID: "ghost"}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeNotFound)
	}
}

func TestHandler_AgentTasks(t *testing.T) {
	h, _, _ := setupTestHandler(t)
	created := createPipeline(t, h)
	designID := taskIDByName(t, h, created.WorkflowID, "design")

	conn := testConn()
	h.Handle(context.Background(), &Frame{
		ID: "req-reg", Type: FrameRequest, Method: MethodAgentRegister,
		Data: mustJSON(AgentRegisterRequest{AgentID: "agent-1"}),
	}, conn)
	h.Handle(context.Background(), &Frame{
		ID: "req-assign", Type: FrameRequest, Method: MethodTaskAssign,
		Data: mustJSON(TaskAssignRequest{
			TaskRef: TaskRef{WorkflowID: created.WorkflowID, TaskID: designID},
			AgentID: "agent-1",
		}),
	}, conn)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-tasks", Type: FrameRequest, Method: MethodAgentTasks,
		Data: mustJSON(AgentTasksRequest{AgentID: "agent-1"}),
	}, conn)
	if resp.Type != FrameResponse {
		t.Fatalf("agent.tasks: Type = %q, error = %v", resp.Type, resp.Error)
	}

	var tasks []map[string]any
	if err := json.Unmarshal(resp.Data, &tasks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(tasks))
	}
}

// ── Subscription methods ──────────────────────────────

func TestHandler_HandleSubscribe(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-1", Type: FrameRequest, Method: MethodSubscribe,
		Data: mustJSON(SubscribeRequest{Channel: "workflows"}),
	}, testConn())
	if resp == nil {
		t.Fatal("expected response")
	}
	if resp.Type != FrameResponse {
		t.Errorf("Type = %q, want %q", resp.Type, FrameResponse)
	}

	var result map[string]string
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result["channel"] != "workflows" {
		t.Errorf("channel = %q, want workflows", result["channel"])
	}
	if result["status"] != "subscribed" {
		t.Errorf("status = %q, want subscribed", result["status"])
	}
}

func TestHandler_HandleSubscribeInvalidTopic(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-2", Type: FrameRequest, Method: MethodSubscribe,
		Data: mustJSON(SubscribeRequest{Channel: "invalid"}),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeBadRequest {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeBadRequest)
	}
}

func TestHandler_HandleUnknownMethod(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-3", Type: FrameRequest, Method: "nonexistent.method",
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
	if resp.Error.Code != ErrCodeMethodNotFound {
		t.Errorf("Error.Code = %d, want %d", resp.Error.Code, ErrCodeMethodNotFound)
	}
}

func TestHandler_HandleBadJSON(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-4", Type: FrameRequest, Method: MethodWorkflowGet,
		Data: json.RawMessage(`{invalid json}`),
	}, testConn())
	if resp.Type != FrameErr {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameErr)
	}
}

func TestHandler_Stats(t *testing.T) {
	h, _, _ := setupTestHandler(t)

	resp := h.Handle(context.Background(), &Frame{
		ID: "req-stats", Type: FrameRequest, Method: MethodStats,
	}, testConn())
	if resp.Type != FrameResponse {
		t.Fatalf("Type = %q, want %q", resp.Type, FrameResponse)
	}

	var stats map[string]any
	if err := json.Unmarshal(resp.Data, &stats); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := stats["broker"]; !ok {
		t.Error("expected broker stats")
	}
}
