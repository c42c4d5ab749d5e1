package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// ── Workflow model ────────────────────────────────────────────────

type workflowModel struct {
	bun.BaseModel `bun:"table:handoff_workflows"`

	ID            string    `bun:"id,pk"`
	Name          string    `bun:"name,notnull"`
	Description   string    `bun:"description"`
	Status        string    `bun:"status,notnull,default:'active'"`
	CurrentTaskID *string   `bun:"current_task_id"`
	Metadata      string    `bun:"metadata,notnull,type:jsonb,default:'{}'"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
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
		return nil, fmt.Errorf("handoff/bun: parse workflow id %q: %w", m.ID, err)
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
			return nil, fmt.Errorf("handoff/bun: parse current task id %q: %w", *m.CurrentTaskID, curErr)
		}
		wf.CurrentTaskID = &cur
	}

	return wf, nil
}

// ── Task model ────────────────────────────────────────────────────

type taskModel struct {
	bun.BaseModel `bun:"table:handoff_tasks"`

	ID            string    `bun:"id,pk"`
	WorkflowID    string    `bun:"workflow_id,notnull"`
	Position      int       `bun:"position,notnull"`
	Name          string    `bun:"name,notnull"`
	Description   string    `bun:"description"`
	State         string    `bun:"state,notnull,default:'pending'"`
	AssignedAgent string    `bun:"assigned_agent"`
	Dependencies  string    `bun:"dependencies,notnull,type:jsonb,default:'[]'"`
	Metadata      string    `bun:"metadata,notnull,type:jsonb,default:'{}'"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,notnull,default:current_timestamp"`
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
		return nil, fmt.Errorf("handoff/bun: parse task id %q: %w", m.ID, err)
	}

	var deps []id.TaskID
	for _, raw := range jsonToStrings(m.Dependencies) {
		dep, depErr := id.ParseTaskID(raw)
		if depErr != nil {
			return nil, fmt.Errorf("handoff/bun: parse dependency id %q: %w", raw, depErr)
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
	bun.BaseModel `bun:"table:handoff_transitions"`

	Seq        int64     `bun:"seq,pk,autoincrement"`
	ID         string    `bun:"id,notnull,unique"`
	WorkflowID string    `bun:"workflow_id,notnull"`
	TaskID     string    `bun:"task_id,notnull"`
	FromState  string    `bun:"from_state"`
	ToState    string    `bun:"to_state,notnull"`
	AgentID    string    `bun:"agent_id"`
	Reason     string    `bun:"reason"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,notnull,default:current_timestamp"`
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
		return nil, fmt.Errorf("handoff/bun: parse transition id %q: %w", m.ID, err)
	}
	workflowID, err := id.ParseWorkflowID(m.WorkflowID)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: parse workflow id %q: %w", m.WorkflowID, err)
	}
	taskID, err := id.ParseTaskID(m.TaskID)
	if err != nil {
		return nil, fmt.Errorf("handoff/bun: parse task id %q: %w", m.TaskID, err)
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
	bun.BaseModel `bun:"table:handoff_agents"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull"`
	Status      string    `bun:"status,notnull,default:'offline'"`
	ConnectedAt time.Time `bun:"connected_at,notnull,default:current_timestamp"`
	LastSeen    time.Time `bun:"last_seen,notnull,default:current_timestamp"`
	Metadata    string    `bun:"metadata,notnull,type:jsonb,default:'{}'"`
	CreatedAt   time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,notnull,default:current_timestamp"`
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
