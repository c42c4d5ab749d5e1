package client_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	forgetesting "github.com/xraph/forge/testing"

	"github.com/xraph/handoff/backoff"
	"github.com/xraph/handoff/client"
	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/push"
	"github.com/xraph/handoff/store/memory"
	"github.com/xraph/handoff/stream"
	"github.com/xraph/handoff/task"
)

// ── Test Helpers ──────────────────────────────────────

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupClientTest creates a full Forge app with push routes on an httptest
// server, then dials a Go client. Returns the client, coordinator, and a
// cleanup function.
func setupClientTest(t *testing.T) (*client.Client, *coordinator.Coordinator, func()) {
	t.Helper()

	logger := testLogger()

	// 1. Build a coordinator on a memory store with the stream broker.
	broker := stream.NewBroker(logger)
	coord, err := coordinator.New(
		coordinator.WithStore(memory.New()),
		coordinator.WithLogger(logger),
		coordinator.WithExtension(broker),
	)
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	if err := coord.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// 2. Create push handler and server.
	handler := push.NewHandler(coord, broker, logger)
	pushServer := push.NewServer(coord, broker, handler,
		push.WithAuth(push.NewAPIKeyAuthenticator(push.APIKeyEntry{
			Token: "test-token",
			Identity: push.Identity{
				Subject: "test-agent",
				Scopes:  []string{push.ScopeAll},
			},
		})),
		push.WithLogger(logger),
	)

	// 3. Create Forge test app and register push routes.
	fapp := forgetesting.NewTestApp("client-test-app", "0.1.0")
	pushServer.RegisterRoutes(fapp.Router())

	// 4. Start an httptest server backed by the forge router.
	ts := httptest.NewServer(fapp.Router())

	// 5. Dial the Go client to the WS endpoint.
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/push"
	c, dialErr := client.DialContext(context.Background(), wsURL,
		client.WithToken("test-token"),
		client.WithLogger(logger),
		client.WithReconnect(3, backoff.NewConstant(10*time.Millisecond)),
	)
	if dialErr != nil {
		ts.Close()
		t.Fatalf("DialContext: %v", dialErr)
	}

	cleanup := func() {
		_ = c.Close()
		ts.Close()
		_ = coord.Shutdown(context.Background())
	}

	return c, coord, cleanup
}

func pipelineTasks() []task.Spec {
	return []task.Spec{
		{Name: "design"},
		{Name: "build", DependsOn: []string{"design"}},
		{Name: "ship", DependsOn: []string{"build"}},
	}
}

// createPipeline creates a workflow and resolves its task IDs by name.
func createPipeline(t *testing.T, c *client.Client) (*client.WorkflowResult, map[string]string) {
	t.Helper()

	result, err := c.CreateWorkflow(context.Background(), "release", pipelineTasks())
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	raw, getErr := c.GetWorkflow(context.Background(), result.WorkflowID)
	if getErr != nil {
		t.Fatalf("GetWorkflow: %v", getErr)
	}

	var wf struct {
		Tasks map[string]struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"tasks"`
	}
	if jsonErr := json.Unmarshal(raw, &wf); jsonErr != nil {
		t.Fatalf("unmarshal workflow: %v", jsonErr)
	}

	ids := make(map[string]string, len(wf.Tasks))
	for _, tk := range wf.Tasks {
		ids[tk.Name] = tk.ID
	}
	return result, ids
}

// ── Connection Tests ──────────────────────────────────

func TestClient_DialAndClose(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	// Session ID should be assigned after auth.
	if c.SessionID() == "" {
		t.Error("expected non-empty session ID after dial")
	}

	// Close should not error.
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClient_DialAuthFailure(t *testing.T) {
	logger := testLogger()

	broker := stream.NewBroker(logger)
	coord, err := coordinator.New(
		coordinator.WithStore(memory.New()),
		coordinator.WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("coordinator.New: %v", err)
	}
	if err := coord.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	defer func() { _ = coord.Shutdown(context.Background()) }()

	handler := push.NewHandler(coord, broker, logger)
	pushServer := push.NewServer(coord, broker, handler,
		push.WithAuth(push.NewAPIKeyAuthenticator(push.APIKeyEntry{
			Token: "valid-token",
			Identity: push.Identity{
				Subject: "agent",
				Scopes:  []string{push.ScopeAll},
			},
		})),
		push.WithLogger(logger),
	)

	fapp := forgetesting.NewTestApp("auth-fail-test", "0.1.0")
	pushServer.RegisterRoutes(fapp.Router())
	ts := httptest.NewServer(fapp.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/push"
	_, dialErr := client.DialContext(context.Background(), wsURL,
		client.WithToken("wrong-token"),
		client.WithLogger(logger),
	)
	if dialErr == nil {
		t.Fatal("expected error for invalid token")
	}
	if !strings.Contains(dialErr.Error(), "auth") {
		t.Errorf("error = %q, want to contain 'auth'", dialErr.Error())
	}
}

// ── Workflow Tests ────────────────────────────────────

func TestClient_CreateWorkflow(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, err := c.CreateWorkflow(context.Background(), "release", pipelineTasks(),
		client.WithDescription("cut a release"),
	)
	if err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	if result.WorkflowID == "" {
		t.Error("expected non-empty workflow_id")
	}
	if result.Status != "active" {
		t.Errorf("status = %q, want active", result.Status)
	}
}

func TestClient_GetWorkflow(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, _ := createPipeline(t, c)

	raw, err := c.GetWorkflow(context.Background(), result.WorkflowID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}

	var resp map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &resp); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if resp["id"] != result.WorkflowID {
		t.Errorf("response id = %v, want %q", resp["id"], result.WorkflowID)
	}
	if resp["name"] != "release" {
		t.Errorf("name = %v, want release", resp["name"])
	}
}

func TestClient_GetWorkflowStatus(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, _ := createPipeline(t, c)

	raw, err := c.GetWorkflowStatus(context.Background(), result.WorkflowID)
	if err != nil {
		t.Fatalf("GetWorkflowStatus: %v", err)
	}

	var st struct {
		Counts struct {
			Total int `json:"total"`
		} `json:"counts"`
	}
	if jsonErr := json.Unmarshal(raw, &st); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if st.Counts.Total != 3 {
		t.Errorf("total = %d, want 3", st.Counts.Total)
	}
}

func TestClient_ListWorkflows(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	createPipeline(t, c)

	raw, err := c.ListWorkflows(context.Background(), "active")
	if err != nil {
		t.Fatalf("ListWorkflows: %v", err)
	}

	var workflows []map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &workflows); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if len(workflows) != 1 {
		t.Errorf("workflows = %d, want 1", len(workflows))
	}
}

// ── Task Tests ────────────────────────────────────────

func TestClient_TaskLifecycle(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	if err := c.AssignTask(ctx, result.WorkflowID, ids["design"], "agent-1"); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}
	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if err := c.CompleteTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	// The trail records both hops.
	raw, err := c.GetTrail(ctx, result.WorkflowID, ids["design"])
	if err != nil {
		t.Fatalf("GetTrail: %v", err)
	}
	var trail []map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &trail); jsonErr != nil {
		t.Fatalf("unmarshal trail: %v", jsonErr)
	}
	if len(trail) != 2 {
		t.Errorf("trail entries = %d, want 2", len(trail))
	}
}

func TestClient_PauseResumeWorkflow(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	if err := c.PauseWorkflow(ctx, result.WorkflowID); err != nil {
		t.Fatalf("PauseWorkflow: %v", err)
	}
	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err == nil {
		t.Fatal("expected error starting task on paused workflow")
	}
	if err := c.ResumeWorkflow(ctx, result.WorkflowID); err != nil {
		t.Fatalf("ResumeWorkflow: %v", err)
	}
	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("StartTask after resume: %v", err)
	}
}

func TestClient_CompleteTaskWithData(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	data := map[string]any{"artifact": "design-doc"}
	if err := c.CompleteTaskWithData(ctx, result.WorkflowID, ids["design"], data); err != nil {
		t.Fatalf("CompleteTaskWithData: %v", err)
	}

	raw, err := c.GetWorkflow(ctx, result.WorkflowID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	var wf struct {
		Tasks map[string]struct {
			Name     string         `json:"name"`
			Metadata map[string]any `json:"metadata"`
		} `json:"tasks"`
	}
	if jsonErr := json.Unmarshal(raw, &wf); jsonErr != nil {
		t.Fatalf("unmarshal workflow: %v", jsonErr)
	}
	found := false
	for _, tk := range wf.Tasks {
		if tk.Name != "design" {
			continue
		}
		found = true
		carried, ok := tk.Metadata["handoff"].(map[string]any)
		if !ok || carried["artifact"] != "design-doc" {
			t.Errorf("handoff metadata = %v", tk.Metadata)
		}
	}
	if !found {
		t.Fatal("design task not found")
	}
}

func TestClient_StartTask_DependencyUnmet(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)

	err := c.StartTask(context.Background(), result.WorkflowID, ids["build"])
	if err == nil {
		t.Fatal("expected error starting task with unmet dependency")
	}
}

func TestClient_CanStart(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	got, err := c.CanStart(ctx, result.WorkflowID, ids["design"])
	if err != nil {
		t.Fatalf("CanStart: %v", err)
	}
	if !got.CanStart {
		t.Error("design should be startable")
	}

	got, err = c.CanStart(ctx, result.WorkflowID, ids["build"])
	if err != nil {
		t.Fatalf("CanStart: %v", err)
	}
	if got.CanStart {
		t.Error("build should not be startable before design completes")
	}
	if len(got.UnmetDeps) != 1 {
		t.Errorf("UnmetDeps = %v, want one entry", got.UnmetDeps)
	}
}

func TestClient_BlockTask(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if err := c.BlockTask(ctx, result.WorkflowID, ids["design"], "waiting on input"); err != nil {
		t.Fatalf("BlockTask: %v", err)
	}
}

// ── Agent Tests ───────────────────────────────────────

func TestClient_RegisterAgentAndHeartbeat(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	ctx := context.Background()

	raw, err := c.RegisterAgent(ctx, "agent-researcher", "Researcher")
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	var a map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &a); jsonErr != nil {
		t.Fatalf("unmarshal agent: %v", jsonErr)
	}
	if a["id"] != "agent-researcher" {
		t.Errorf("id = %v, want agent-researcher", a["id"])
	}

	if hbErr := c.Heartbeat(ctx, "agent-researcher"); hbErr != nil {
		t.Fatalf("Heartbeat: %v", hbErr)
	}
}

func TestClient_AgentTasks(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	if _, err := c.RegisterAgent(ctx, "agent-1", ""); err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}
	if err := c.AssignTask(ctx, result.WorkflowID, ids["design"], "agent-1"); err != nil {
		t.Fatalf("AssignTask: %v", err)
	}

	raw, err := c.AgentTasks(ctx, "agent-1")
	if err != nil {
		t.Fatalf("AgentTasks: %v", err)
	}
	var tasks []map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &tasks); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if len(tasks) != 1 {
		t.Errorf("tasks = %d, want 1", len(tasks))
	}
}

// ── Subscription Tests ────────────────────────────────

func TestClient_SubscribeAndUnsubscribe(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	// Subscribe to a channel.
	ch, err := c.Subscribe(context.Background(), "workflows")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if ch == nil {
		t.Fatal("expected non-nil channel")
	}

	// Unsubscribe.
	if unsubErr := c.Unsubscribe(context.Background(), "workflows"); unsubErr != nil {
		t.Fatalf("Unsubscribe: %v", unsubErr)
	}
}

func TestClient_Watch(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	// Watch uses Subscribe("workflow:<workflowID>").
	ch, watchErr := c.Watch(ctx, result.WorkflowID)
	if watchErr != nil {
		t.Fatalf("Watch: %v", watchErr)
	}
	if ch == nil {
		t.Fatal("expected non-nil watch channel")
	}

	// Completing a task hands off to the next one, which publishes on
	// the workflow topic.
	if err := c.StartTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("StartTask: %v", err)
	}
	if err := c.CompleteTask(ctx, result.WorkflowID, ids["design"]); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	select {
	case evt := <-ch:
		if evt == nil {
			t.Fatal("expected non-nil event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow event")
	}
}

func TestClient_SubscribeTasksChannel(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	ch, err := c.Subscribe(ctx, "tasks")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if startErr := c.StartTask(ctx, result.WorkflowID, ids["design"]); startErr != nil {
		t.Fatalf("StartTask: %v", startErr)
	}

	select {
	case evt := <-ch:
		if !strings.HasPrefix(string(evt.Type), "task.") {
			t.Errorf("event type = %s, want task.* event", evt.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for task event")
	}
}

// ── Stats Test ────────────────────────────────────────

func TestClient_Stats(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	raw, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	var stats map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &stats); jsonErr != nil {
		t.Fatalf("stats unmarshal: %v", jsonErr)
	}
	if _, ok := stats["broker"]; !ok {
		t.Error("expected broker stats")
	}
}

// ── Error Handling Tests ──────────────────────────────

func TestClient_GetWorkflow_NotFound(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	_, err := c.GetWorkflow(context.Background(), "nonexistent-workflow-id")
	if err == nil {
		t.Fatal("expected error for nonexistent workflow")
	}
}

func TestClient_Heartbeat_UnknownAgent(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	err := c.Heartbeat(context.Background(), "ghost")
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

// ── Context Cancellation Tests ────────────────────────

func TestClient_ContextTimeout(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	// Create a context that's already expired.
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()
	time.Sleep(5 * time.Millisecond) // Ensure timeout fires.

	_, err := c.CreateWorkflow(ctx, "any", pipelineTasks())
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

// ── Full Pipeline E2E Test ────────────────────────────

func TestClient_PipelineE2E(t *testing.T) {
	c, _, cleanup := setupClientTest(t)
	defer cleanup()

	result, ids := createPipeline(t, c)
	ctx := context.Background()

	// Drive every task through its lifecycle in dependency order.
	for _, name := range []string{"design", "build", "ship"} {
		if err := c.StartTask(ctx, result.WorkflowID, ids[name]); err != nil {
			t.Fatalf("StartTask(%s): %v", name, err)
		}
		if err := c.CompleteTask(ctx, result.WorkflowID, ids[name]); err != nil {
			t.Fatalf("CompleteTask(%s): %v", name, err)
		}
	}

	// The workflow should be completed.
	raw, err := c.GetWorkflow(ctx, result.WorkflowID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	var wf map[string]interface{}
	if jsonErr := json.Unmarshal(raw, &wf); jsonErr != nil {
		t.Fatalf("unmarshal: %v", jsonErr)
	}
	if wf["status"] != "completed" {
		t.Errorf("status = %v, want completed", wf["status"])
	}
}
