//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	bunstore "github.com/xraph/handoff/store/bun"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// setupTestStore creates a Postgres container and returns a connected Bun Store.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("handoff_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	db := bun.NewDB(sqldb, pgdialect.New())

	t.Cleanup(func() {
		_ = db.Close()
	})

	store := bunstore.New(db, bunstore.WithLogger(slog.Default()))

	if migErr := store.Migrate(ctx); migErr != nil {
		t.Fatalf("migrate: %v", migErr)
	}

	return store
}

func buildWorkflow(t *testing.T) *workflow.Workflow {
	t.Helper()

	wf, err := workflow.Build(workflow.Spec{
		Name: "release",
		Tasks: []task.Spec{
			{Name: "design"},
			{Name: "build", DependsOn: []string{"design"}},
			{Name: "ship", DependsOn: []string{"build"}},
		},
	})
	if err != nil {
		t.Fatalf("build workflow: %v", err)
	}
	return wf
}

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestStore_Ping(t *testing.T) {
	s := setupTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
}

func TestStore_MigrateIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	// Second migrate should be a no-op.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Workflow Store tests
// ──────────────────────────────────────────────────

func TestWorkflowStore_SaveAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wf := buildWorkflow(t)
	if err := s.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	if got.Name != "release" {
		t.Errorf("name = %q, want %q", got.Name, "release")
	}
	if len(got.Order) != 3 {
		t.Fatalf("len(Order) = %d, want 3", len(got.Order))
	}
	for i, taskID := range wf.Order {
		if got.Order[i] != taskID {
			t.Errorf("Order[%d] = %s, want %s", i, got.Order[i], taskID)
		}
	}
	if got.CurrentTaskID == nil || *got.CurrentTaskID != wf.Order[0] {
		t.Errorf("CurrentTaskID = %v, want %s", got.CurrentTaskID, wf.Order[0])
	}
	built := got.Tasks[got.Order[1]]
	if len(built.Dependencies) != 1 || built.Dependencies[0] != got.Order[0] {
		t.Errorf("dependencies not round-tripped: %v", built.Dependencies)
	}
}

func TestWorkflowStore_DuplicateSave(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wf := buildWorkflow(t)
	if err := s.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.SaveWorkflow(ctx, wf); !errors.Is(err, handoff.ErrWorkflowExists) {
		t.Errorf("second save err = %v, want ErrWorkflowExists", err)
	}
}

func TestWorkflowStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	wf := buildWorkflow(t)
	_, err := s.GetWorkflow(context.Background(), wf.ID)
	if !errors.Is(err, handoff.ErrWorkflowNotFound) {
		t.Errorf("err = %v, want ErrWorkflowNotFound", err)
	}
}

func TestWorkflowStore_UpdateTaskAndStatus(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wf := buildWorkflow(t)
	if err := s.SaveWorkflow(ctx, wf); err != nil {
		t.Fatalf("save workflow: %v", err)
	}

	first := wf.Tasks[wf.Order[0]].Clone()
	first.State = task.StateInProgress
	first.AssignedAgent = "agent-1"
	if err := s.UpdateTask(ctx, wf.ID, first); err != nil {
		t.Fatalf("update task: %v", err)
	}
	if err := s.UpdateWorkflowStatus(ctx, wf.ID, workflow.StatusActive, nil); err != nil {
		t.Fatalf("update workflow status: %v", err)
	}

	got, err := s.GetWorkflow(ctx, wf.ID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	gotTask := got.Tasks[first.ID]
	if gotTask.State != task.StateInProgress {
		t.Errorf("state = %s, want in_progress", gotTask.State)
	}
	if gotTask.AssignedAgent != "agent-1" {
		t.Errorf("assigned agent = %q, want agent-1", gotTask.AssignedAgent)
	}
	if got.CurrentTaskID != nil {
		t.Errorf("CurrentTaskID = %v, want nil", got.CurrentTaskID)
	}
}

func TestWorkflowStore_ListActive(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	active := buildWorkflow(t)
	done := buildWorkflow(t)
	done.Status = workflow.StatusCompleted
	done.CurrentTaskID = nil

	if err := s.SaveWorkflow(ctx, active); err != nil {
		t.Fatalf("save active: %v", err)
	}
	if err := s.SaveWorkflow(ctx, done); err != nil {
		t.Fatalf("save done: %v", err)
	}

	got, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("ListActive returned %d workflows, want the active one only", len(got))
	}
}

// ──────────────────────────────────────────────────
// Audit Store tests
// ──────────────────────────────────────────────────

func TestAuditStore_AppendAndList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	wf := buildWorkflow(t)
	taskID := wf.Order[0]

	steps := []*audit.Transition{
		audit.New(wf.ID, taskID, "", task.StatePending, ""),
		audit.New(wf.ID, taskID, task.StatePending, task.StateInProgress, "agent-1"),
		audit.New(wf.ID, taskID, task.StateInProgress, task.StateCompleted, "agent-1"),
	}
	for _, tr := range steps {
		if err := s.AppendTransition(ctx, tr); err != nil {
			t.Fatalf("append transition: %v", err)
		}
	}

	trail, err := s.ListTaskTransitions(ctx, taskID)
	if err != nil {
		t.Fatalf("list task transitions: %v", err)
	}
	if len(trail) != 3 {
		t.Fatalf("len(trail) = %d, want 3", len(trail))
	}
	// Most-recent first.
	for i, tr := range trail {
		want := steps[len(steps)-1-i].To
		if tr.To != want {
			t.Errorf("trail[%d].To = %s, want %s", i, tr.To, want)
		}
	}

	wfTrail, err := s.ListWorkflowTransitions(ctx, wf.ID)
	if err != nil {
		t.Fatalf("list workflow transitions: %v", err)
	}
	if len(wfTrail) != 3 {
		t.Errorf("len(wfTrail) = %d, want 3", len(wfTrail))
	}
}

// ──────────────────────────────────────────────────
// Agent Store tests
// ──────────────────────────────────────────────────

func TestAgentStore_SaveGetUpdate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	a := &agent.Agent{
		Entity:      handoff.NewEntity(),
		ID:          "agent-1",
		Name:        "coder",
		Status:      agent.StatusOnline,
		ConnectedAt: now,
		LastSeen:    now,
	}
	if err := s.SaveAgent(ctx, a); err != nil {
		t.Fatalf("save agent: %v", err)
	}

	// Upsert with a new name.
	a.Name = "reviewer"
	if err := s.SaveAgent(ctx, a); err != nil {
		t.Fatalf("upsert agent: %v", err)
	}

	got, err := s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.Name != "reviewer" {
		t.Errorf("name = %q, want reviewer", got.Name)
	}

	later := now.Add(time.Minute)
	if err := s.Heartbeat(ctx, "agent-1", later); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if err := s.UpdateAgentStatus(ctx, "agent-1", agent.StatusOffline); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, err = s.GetAgent(ctx, "agent-1")
	if err != nil {
		t.Fatalf("get agent after update: %v", err)
	}
	if got.Status != agent.StatusOffline {
		t.Errorf("status = %s, want offline", got.Status)
	}
	if !got.LastSeen.After(now) {
		t.Errorf("last seen = %v, want after %v", got.LastSeen, now)
	}
}

func TestAgentStore_Missing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	if _, err := s.GetAgent(ctx, "ghost"); !errors.Is(err, handoff.ErrAgentNotFound) {
		t.Errorf("get err = %v, want ErrAgentNotFound", err)
	}
	if err := s.Heartbeat(ctx, "ghost", time.Now()); !errors.Is(err, handoff.ErrAgentNotFound) {
		t.Errorf("heartbeat err = %v, want ErrAgentNotFound", err)
	}
	if err := s.UpdateAgentStatus(ctx, "ghost", agent.StatusOffline); !errors.Is(err, handoff.ErrAgentNotFound) {
		t.Errorf("update status err = %v, want ErrAgentNotFound", err)
	}
}
