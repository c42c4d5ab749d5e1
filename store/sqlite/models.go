package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// ── Workflow model ────────────────────────────────────────────────

type workflowModel struct {
	grove.BaseModel `grove:"table:handoff_workflows"`

	ID            string    `grove:"id,pk"`
	Name          string    `grove:"name,notnull"`
	Description   string    `grove:"description"`
	Status        string    `grove:"status,notnull,default:'active'"`
	CurrentTaskID *string   `grove:"current_task_id"`
	Metadata      string    `grove:"metadata,notnull,default:'{}'"`
	CreatedAt     time.Time `grove:"created_at,notnull"`
	UpdatedAt     time.Time `grove:"updated_at,notnull"`
}

func toWorkflowModel(wf *workflow.Workflow) *workflowModel {
	m := &workflowModel{
		ID:          wf.ID.String(),
		Name:        wf.Name,
		Description: wf.Description,
		Status:      string(wf.Status),
		Metadata:    anyMapToJSON(wf.Metadata),
		CreatedAt:   wf.CreatedAt,
		UpdatedAt:   wf.UpdatedAt,
	}
	if wf.CurrentTaskID != nil {
		cur := wf.CurrentTaskID.String()
		m.CurrentTaskID = &cur
	}
	return m
}

// fromWorkflowModel converts the workflow row alone; tasks are attached
// by the caller from their own rows.
func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	parsedID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: parse workflow id %q: %w", m.ID, err)
	}

	wf := &workflow.Workflow{
		Entity: handoff.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          parsedID,
		Name:        m.Name,
		Description: m.Description,
		Status:      workflow.Status(m.Status),
		Tasks:       make(map[id.TaskID]*task.Task),
		Metadata:    jsonToAnyMap(m.Metadata),
	}

	if m.CurrentTaskID != nil && *m.CurrentTaskID != "" {
		cur, curErr := id.ParseTaskID(*m.CurrentTaskID)
		if curErr != nil {
			return nil, fmt.Errorf("handoff/sqlite: parse current task id %q: %w", *m.CurrentTaskID, curErr)
		}
		wf.CurrentTaskID = &cur
	}

	return wf, nil
}

// ── Task model ────────────────────────────────────────────────────

type taskModel struct {
	grove.BaseModel `grove:"table:handoff_tasks"`

	ID            string    `grove:"id,pk"`
	WorkflowID    string    `grove:"workflow_id,notnull"`
	Position      int       `grove:"position,notnull"`
	Name          string    `grove:"name,notnull"`
	Description   string    `grove:"description"`
	State         string    `grove:"state,notnull,default:'pending'"`
	AssignedAgent string    `grove:"assigned_agent"`
	Dependencies  string    `grove:"dependencies,notnull,default:'[]'"`
	Metadata      string    `grove:"metadata,notnull,default:'{}'"`
	CreatedAt     time.Time `grove:"created_at,notnull"`
	UpdatedAt     time.Time `grove:"updated_at,notnull"`
}

func toTaskModel(workflowID id.WorkflowID, position int, t *task.Task) *taskModel {
	deps := make([]string, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		deps = append(deps, d.String())
	}
	return &taskModel{
		ID:            t.ID.String(),
		WorkflowID:    workflowID.String(),
		Position:      position,
		Name:          t.Name,
		Description:   t.Description,
		State:         string(t.State),
		AssignedAgent: t.AssignedAgent,
		Dependencies:  stringsToJSON(deps),
		Metadata:      anyMapToJSON(t.Metadata),
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func fromTaskModel(m *taskModel) (*task.Task, error) {
	parsedID, err := id.ParseTaskID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: parse task id %q: %w", m.ID, err)
	}

	var deps []id.TaskID
	for _, raw := range jsonToStrings(m.Dependencies) {
		dep, depErr := id.ParseTaskID(raw)
		if depErr != nil {
			return nil, fmt.Errorf("handoff/sqlite: parse dependency id %q: %w", raw, depErr)
		}
		deps = append(deps, dep)
	}

	return &task.Task{
		Entity: handoff.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            parsedID,
		Name:          m.Name,
		Description:   m.Description,
		State:         task.State(m.State),
		AssignedAgent: m.AssignedAgent,
		Dependencies:  deps,
		Metadata:      jsonToAnyMap(m.Metadata),
	}, nil
}

// ── Transition model ──────────────────────────────────────────────

type transitionModel struct {
	grove.BaseModel `grove:"table:handoff_transitions"`

	ID         string    `grove:"id,pk"`
	WorkflowID string    `grove:"workflow_id,notnull"`
	TaskID     string    `grove:"task_id,notnull"`
	FromState  string    `grove:"from_state"`
	ToState    string    `grove:"to_state,notnull"`
	AgentID    string    `grove:"agent_id"`
	Reason     string    `grove:"reason"`
	CreatedAt  time.Time `grove:"created_at,notnull"`
	UpdatedAt  time.Time `grove:"updated_at,notnull"`
}

func toTransitionModel(tr *audit.Transition) *transitionModel {
	return &transitionModel{
		ID:         tr.ID.String(),
		WorkflowID: tr.WorkflowID.String(),
		TaskID:     tr.TaskID.String(),
		FromState:  string(tr.From),
		ToState:    string(tr.To),
		AgentID:    tr.Agent,
		Reason:     tr.Reason,
		CreatedAt:  tr.CreatedAt,
		UpdatedAt:  tr.UpdatedAt,
	}
}

func fromTransitionModel(m *transitionModel) (*audit.Transition, error) {
	parsedID, err := id.ParseTransitionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: parse transition id %q: %w", m.ID, err)
	}
	workflowID, err := id.ParseWorkflowID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: parse workflow id %q: %w", m.WorkflowID, err)
	}
	taskID, err := id.ParseTaskID(m.TaskID)
	if err != nil {
		return nil, fmt.Errorf("handoff/sqlite: parse task id %q: %w", m.TaskID, err)
	}

	return &audit.Transition{
		Entity: handoff.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:         parsedID,
		WorkflowID: workflowID,
		TaskID:     taskID,
		From:       task.State(m.FromState),
		To:         task.State(m.ToState),
		Agent:      m.AgentID,
		Reason:     m.Reason,
	}, nil
}

// ── Agent model ───────────────────────────────────────────────────

type agentModel struct {
	grove.BaseModel `grove:"table:handoff_agents"`

	ID          string    `grove:"id,pk"`
	Name        string    `grove:"name,notnull"`
	Status      string    `grove:"status,notnull,default:'offline'"`
	ConnectedAt time.Time `grove:"connected_at,notnull"`
	LastSeen    time.Time `grove:"last_seen,notnull"`
	Metadata    string    `grove:"metadata,notnull,default:'{}'"`
	CreatedAt   time.Time `grove:"created_at,notnull"`
	UpdatedAt   time.Time `grove:"updated_at,notnull"`
}

func toAgentModel(a *agent.Agent) *agentModel {
	return &agentModel{
		ID:          a.ID,
		Name:        a.Name,
		Status:      string(a.Status),
		ConnectedAt: a.ConnectedAt,
		LastSeen:    a.LastSeen,
		Metadata:    mapToJSON(a.Metadata),
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

func fromAgentModel(m *agentModel) *agent.Agent {
	return &agent.Agent{
		Entity: handoff.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          m.ID,
		Name:        m.Name,
		Status:      agent.Status(m.Status),
		ConnectedAt: m.ConnectedAt,
		LastSeen:    m.LastSeen,
		Metadata:    jsonToMap(m.Metadata),
	}
}

// ── JSON helpers ──────────────────────────────────────────────────

func stringsToJSON(ss []string) string {
	if ss == nil {
		return "[]"
	}
	b, _ := json.Marshal(ss) //nolint:errcheck // []string never fails
	return string(b)
}

func jsonToStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var ss []string
	_ = json.Unmarshal([]byte(s), &ss) //nolint:errcheck // best effort
	return ss
}

func mapToJSON(m map[string]string) string {
	if m == nil {
		return "{}"
	}
	b, _ := json.Marshal(m) //nolint:errcheck // map[string]string never fails
	return string(b)
}

func jsonToMap(s string) map[string]string {
	if s == "" || s == "{}" {
		return nil
	}
	m := make(map[string]string)
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best effort
	return m
}

func anyMapToJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func jsonToAnyMap(s string) map[string]any {
	if s == "" || s == "{}" {
		return nil
	}
	m := make(map[string]any)
	_ = json.Unmarshal([]byte(s), &m) //nolint:errcheck // best effort
	return m
}
