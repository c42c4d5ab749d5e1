// Package memory provides a fully in-memory store backend, intended
// for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ workflow.Store = (*Store)(nil)
	_ audit.Store    = (*Store)(nil)
	_ agent.Store    = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access.
type Store struct {
	mu sync.RWMutex

	workflows map[string]*workflow.Workflow
	// created preserves workflow insertion order for stable listing.
	created     []string
	transitions []*audit.Transition
	agents      map[string]*agent.Agent
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		workflows: make(map[string]*workflow.Workflow),
		agents:    make(map[string]*agent.Agent),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Workflow Store
// ──────────────────────────────────────────────────

// SaveWorkflow persists a new workflow with all of its tasks.
func (m *Store) SaveWorkflow(_ context.Context, wf *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := wf.ID.String()
	if _, exists := m.workflows[key]; exists {
		return handoff.ErrWorkflowExists
	}
	m.workflows[key] = wf.Clone()
	m.created = append(m.created, key)
	return nil
}

// GetWorkflow retrieves a workflow by ID.
func (m *Store) GetWorkflow(_ context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return nil, handoff.ErrWorkflowNotFound
	}
	return wf.Clone(), nil
}

// ListWorkflows returns workflows matching the given options, in
// creation order.
func (m *Store) ListWorkflows(_ context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*workflow.Workflow, 0, len(m.created))
	for _, key := range m.created {
		wf := m.workflows[key]
		if opts.Status != "" && wf.Status != opts.Status {
			continue
		}
		matched = append(matched, wf)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*workflow.Workflow, len(matched))
	for i, wf := range matched {
		out[i] = wf.Clone()
	}
	return out, nil
}

// UpdateTask persists changes to a single task.
func (m *Store) UpdateTask(_ context.Context, workflowID id.WorkflowID, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return handoff.ErrWorkflowNotFound
	}
	if _, ok := wf.Tasks[t.ID]; !ok {
		return handoff.ErrTaskNotFound
	}
	cp := t.Clone()
	cp.UpdatedAt = time.Now().UTC()
	wf.Tasks[t.ID] = cp
	return nil
}

// UpdateWorkflowStatus persists the workflow's status and current-task
// pointer.
func (m *Store) UpdateWorkflowStatus(_ context.Context, workflowID id.WorkflowID, status workflow.Status, currentTaskID *id.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wf, ok := m.workflows[workflowID.String()]
	if !ok {
		return handoff.ErrWorkflowNotFound
	}
	wf.Status = status
	if currentTaskID != nil {
		cur := *currentTaskID
		wf.CurrentTaskID = &cur
	} else {
		wf.CurrentTaskID = nil
	}
	wf.UpdatedAt = time.Now().UTC()
	return nil
}

// ListActive returns every workflow that has not completed.
func (m *Store) ListActive(_ context.Context) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*workflow.Workflow, 0)
	for _, key := range m.created {
		wf := m.workflows[key]
		if wf.Status == workflow.StatusCompleted {
			continue
		}
		out = append(out, wf.Clone())
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Audit Store
// ──────────────────────────────────────────────────

// AppendTransition persists a transition record.
func (m *Store) AppendTransition(_ context.Context, tr *audit.Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *tr
	m.transitions = append(m.transitions, &cp)
	return nil
}

// ListTaskTransitions returns the trail for one task, most-recent
// first.
func (m *Store) ListTaskTransitions(_ context.Context, taskID id.TaskID) ([]*audit.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*audit.Transition, 0)
	for i := len(m.transitions) - 1; i >= 0; i-- {
		if tr := m.transitions[i]; tr.TaskID == taskID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ListWorkflowTransitions returns the trail for one workflow,
// most-recent first.
func (m *Store) ListWorkflowTransitions(_ context.Context, workflowID id.WorkflowID) ([]*audit.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*audit.Transition, 0)
	for i := len(m.transitions) - 1; i >= 0; i-- {
		if tr := m.transitions[i]; tr.WorkflowID == workflowID {
			cp := *tr
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Agent Store
// ──────────────────────────────────────────────────

// SaveAgent persists an agent, inserting or replacing by ID.
func (m *Store) SaveAgent(_ context.Context, a *agent.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agents[a.ID] = a.Clone()
	return nil
}

// GetAgent retrieves an agent by ID.
func (m *Store) GetAgent(_ context.Context, agentID string) (*agent.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.agents[agentID]
	if !ok {
		return nil, handoff.ErrAgentNotFound
	}
	return a.Clone(), nil
}

// ListAgents returns every registered agent sorted by ID.
func (m *Store) ListAgents(_ context.Context) ([]*agent.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*agent.Agent, 0, len(m.agents))
	for _, a := range m.agents {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateAgentStatus sets an agent's connection status.
func (m *Store) UpdateAgentStatus(_ context.Context, agentID string, status agent.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		return handoff.ErrAgentNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Heartbeat records a liveness signal for an agent.
func (m *Store) Heartbeat(_ context.Context, agentID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.agents[agentID]
	if !ok {
		return handoff.ErrAgentNotFound
	}
	a.LastSeen = at
	a.UpdatedAt = time.Now().UTC()
	return nil
}
