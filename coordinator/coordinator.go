// Package coordinator wires all Handoff subsystems together. It owns
// the in-memory workflow state, drives the state machine, writes
// through to the store, and emits lifecycle events to extensions.
//
// This package exists to break the import cycle: the root handoff
// package defines Entity (imported by task, workflow, etc.) and so
// cannot import those packages back. The coordinator package sits above
// all subsystem packages and below the application layer.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/ext"
	"github.com/xraph/handoff/id"
	mw "github.com/xraph/handoff/middleware"
	"github.com/xraph/handoff/store"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Coordinator is the orchestration façade. All workflow and task
// mutation goes through it: reads serve from memory, writes persist
// first and mutate memory only after the store accepts them.
type Coordinator struct {
	store      store.Store
	extensions *ext.Registry
	logger     *slog.Logger
	cfg        handoff.Config

	// workflows is the authoritative in-memory state, keyed by
	// workflow ID string.
	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow

	// locks serializes mutation per workflow.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	monitor     *agent.Monitor
	chain       mw.Middleware
	extraMw     []mw.Middleware
	pendingExts []ext.Extension

	initialized bool
	closed      bool
}

// New creates a Coordinator. A store is required.
func New(opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		logger:    slog.Default(),
		cfg:       handoff.DefaultConfig(),
		workflows: make(map[string]*workflow.Workflow),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.store == nil {
		return nil, handoff.ErrNoStore
	}

	// The registry is built after options so it picks up the final
	// logger.
	c.extensions = ext.NewRegistry(c.logger)
	for _, e := range c.pendingExts {
		c.extensions.Register(e)
	}
	c.pendingExts = nil

	// Default middleware stack: recover → tracing → metrics → logging,
	// then any custom middleware innermost.
	stack := []mw.Middleware{
		mw.Recover(c.logger),
		mw.Tracing(),
		mw.Metrics(),
		mw.Logging(c.logger),
	}
	stack = append(stack, c.extraMw...)
	c.chain = mw.Chain(stack...)

	return c, nil
}

// do runs fn through the middleware chain.
func (c *Coordinator) do(ctx context.Context, op *mw.Op, fn func(ctx context.Context) error) error {
	return c.chain(ctx, op, fn)
}

// lockFor returns the mutation lock for a workflow, creating it on
// first use.
func (c *Coordinator) lockFor(workflowID id.WorkflowID) *sync.Mutex {
	key := workflowID.String()
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

func (c *Coordinator) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return handoff.ErrCoordinatorClosed
	}
	if !c.initialized {
		return handoff.ErrNotInitialized
	}
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Initialize runs store migrations, recovers every active workflow into
// memory, and starts the agent liveness monitor. Recovery failure is
// fatal: the coordinator must not serve requests with partial state.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if err := c.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: migrate: %w", handoff.ErrMigrationFailed, err)
	}

	if err := c.recoverActiveWorkflows(ctx); err != nil {
		return err
	}

	mon, err := agent.NewMonitor(c.store, c.HandleAgentDisconnect, c.logger,
		agent.WithTTL(c.cfg.AgentTTL),
		agent.WithSchedule(fmt.Sprintf("@every %s", c.cfg.SweepInterval)),
	)
	if err != nil {
		return fmt.Errorf("handoff: build agent monitor: %w", err)
	}
	c.monitor = mon
	if err := c.monitor.Start(ctx); err != nil {
		return fmt.Errorf("handoff: start agent monitor: %w", err)
	}

	c.mu.Lock()
	c.initialized = true
	count := len(c.workflows)
	c.mu.Unlock()

	c.logger.Info("coordinator initialized",
		slog.Int("active_workflows", count),
	)
	return nil
}

// recoverActiveWorkflows loads all non-completed workflows from the
// store and validates each before admitting it into memory.
func (c *Coordinator) recoverActiveWorkflows(ctx context.Context) error {
	active, err := c.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("%w: list active workflows: %w", handoff.ErrPersistence, err)
	}

	g, _ := errgroup.WithContext(ctx)
	for _, wf := range active {
		wf := wf
		g.Go(func() error {
			if err := validateRecovered(wf); err != nil {
				return err
			}
			c.mu.Lock()
			c.workflows[wf.ID.String()] = wf
			c.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%w: recovery: %w", handoff.ErrPersistence, err)
	}
	return nil
}

// validateRecovered rejects stored state the state machine could never
// have produced.
func validateRecovered(wf *workflow.Workflow) error {
	if len(wf.Order) != len(wf.Tasks) {
		return fmt.Errorf("workflow %s: order lists %d tasks, store has %d", wf.ID, len(wf.Order), len(wf.Tasks))
	}
	for _, tid := range wf.Order {
		t, ok := wf.Tasks[tid]
		if !ok {
			return fmt.Errorf("workflow %s: ordered task %s missing", wf.ID, tid)
		}
		if !t.State.Valid() {
			return fmt.Errorf("workflow %s: task %s has unknown state %q", wf.ID, tid, t.State)
		}
	}
	if wf.CurrentTaskID != nil {
		t, ok := wf.Tasks[*wf.CurrentTaskID]
		if !ok {
			return fmt.Errorf("workflow %s: current task %s missing", wf.ID, *wf.CurrentTaskID)
		}
		if t.State != task.StatePending {
			return fmt.Errorf("workflow %s: current task %s is %s, want pending", wf.ID, t.ID, t.State)
		}
	}
	return nil
}

// Shutdown stops the monitor, notifies extensions, and closes the
// store.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.monitor != nil {
		if err := c.monitor.Stop(ctx); err != nil {
			c.logger.Error("agent monitor stop error", slog.String("error", err.Error()))
		}
	}
	c.extensions.EmitShutdown(ctx)

	if err := c.store.Close(); err != nil {
		return fmt.Errorf("%w: close store: %w", handoff.ErrPersistence, err)
	}
	c.logger.Info("coordinator shut down")
	return nil
}

// Extensions returns the extension registry.
func (c *Coordinator) Extensions() *ext.Registry { return c.extensions }

// Store returns the underlying store.
func (c *Coordinator) Store() store.Store { return c.store }

// Monitor returns the agent liveness monitor. Nil before Initialize.
func (c *Coordinator) Monitor() *agent.Monitor { return c.monitor }

// ──────────────────────────────────────────────────
// Workflow operations
// ──────────────────────────────────────────────────

// CreateWorkflow builds a workflow from the spec, persists it
// atomically with all tasks, and admits it into memory.
func (c *Coordinator) CreateWorkflow(ctx context.Context, spec workflow.Spec) (*workflow.Workflow, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	var wf *workflow.Workflow
	op := &mw.Op{Name: "workflow.create"}
	err := c.do(ctx, op, func(ctx context.Context) error {
		built, err := workflow.Build(spec)
		if err != nil {
			return err
		}
		op.WorkflowID = built.ID.String()

		if err := c.store.SaveWorkflow(ctx, built); err != nil {
			return fmt.Errorf("%w: save workflow: %w", handoff.ErrPersistence, err)
		}
		// Creation entries give every task a trail from birth. The
		// trail must be able to rebuild state, so a failed append
		// aborts the whole creation.
		for _, t := range built.TasksInOrder() {
			tr := audit.New(built.ID, t.ID, "", t.State, "")
			if err := c.store.AppendTransition(ctx, tr); err != nil {
				return fmt.Errorf("%w: append transition: %w", handoff.ErrPersistence, err)
			}
		}

		c.mu.Lock()
		c.workflows[built.ID.String()] = built
		c.mu.Unlock()

		wf = built.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.extensions.EmitWorkflowCreated(ctx, wf)
	return wf, nil
}

// GetWorkflow returns a workflow from memory, falling back to the store
// for completed workflows that were evicted.
func (c *Coordinator) GetWorkflow(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	wf, ok := c.workflows[workflowID.String()]
	c.mu.RUnlock()
	if ok {
		return wf.Clone(), nil
	}
	wf, err := c.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return wf, nil
}

// ListWorkflows returns workflows from the store.
func (c *Coordinator) ListWorkflows(ctx context.Context, opts workflow.ListOpts) ([]*workflow.Workflow, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.ListWorkflows(ctx, opts)
}

// TaskCounts summarizes how many tasks sit in each state.
type TaskCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Review     int `json:"review"`
	Blocked    int `json:"blocked"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// WorkflowStatus is the progress summary served by status queries.
// It is derived on demand and never stored.
type WorkflowStatus struct {
	WorkflowID    string          `json:"workflow_id"`
	Name          string          `json:"name"`
	Status        workflow.Status `json:"status"`
	CurrentTaskID string          `json:"current_task_id,omitempty"`
	CurrentAgent  string          `json:"current_agent,omitempty"`
	Counts        TaskCounts      `json:"counts"`
	BlockedTasks  []string        `json:"blocked_tasks,omitempty"`
	// Progress is the completed share of the task set, as a
	// percentage.
	Progress float64 `json:"progress"`
}

// GetWorkflowStatus returns a progress summary for a workflow.
func (c *Coordinator) GetWorkflowStatus(ctx context.Context, workflowID id.WorkflowID) (*WorkflowStatus, error) {
	wf, err := c.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	st := &WorkflowStatus{
		WorkflowID: wf.ID.String(),
		Name:       wf.Name,
		Status:     wf.Status,
	}
	if wf.CurrentTaskID != nil {
		st.CurrentTaskID = wf.CurrentTaskID.String()
		st.CurrentAgent = wf.Tasks[*wf.CurrentTaskID].AssignedAgent
	}
	for _, t := range wf.TasksInOrder() {
		st.Counts.Total++
		switch t.State {
		case task.StatePending:
			st.Counts.Pending++
		case task.StateInProgress:
			st.Counts.InProgress++
			if st.CurrentAgent == "" {
				st.CurrentAgent = t.AssignedAgent
			}
		case task.StateReview:
			st.Counts.Review++
		case task.StateBlocked:
			st.Counts.Blocked++
			st.BlockedTasks = append(st.BlockedTasks, t.ID.String())
		case task.StateCompleted:
			st.Counts.Completed++
		}
	}
	if st.Counts.Total > 0 {
		st.Progress = 100 * float64(st.Counts.Completed) / float64(st.Counts.Total)
	}
	return st, nil
}

// PauseWorkflow holds an active workflow. While paused, every task
// transition on it is rejected until ResumeWorkflow is called. Paused
// workflows are still recovered after a restart.
func (c *Coordinator) PauseWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	return c.setWorkflowStatus(ctx, "workflow.pause", workflowID, workflow.StatusActive, workflow.StatusPaused)
}

// ResumeWorkflow returns a paused workflow to active.
func (c *Coordinator) ResumeWorkflow(ctx context.Context, workflowID id.WorkflowID) error {
	return c.setWorkflowStatus(ctx, "workflow.resume", workflowID, workflow.StatusPaused, workflow.StatusActive)
}

func (c *Coordinator) setWorkflowStatus(ctx context.Context, opName string, workflowID id.WorkflowID, from, to workflow.Status) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	op := &mw.Op{Name: opName, WorkflowID: workflowID.String()}
	return c.do(ctx, op, func(ctx context.Context) error {
		lock := c.lockFor(workflowID)
		lock.Lock()
		defer lock.Unlock()

		wf, err := c.current(ctx, workflowID)
		if err != nil {
			return err
		}
		if wf.Status != from {
			return fmt.Errorf("%w: workflow %q is %s, not %s", handoff.ErrInvalidTransition, wf.Name, wf.Status, from)
		}

		next := wf.Clone()
		next.Status = to
		next.Touch()
		if err := c.store.UpdateWorkflowStatus(ctx, workflowID, next.Status, next.CurrentTaskID); err != nil {
			return fmt.Errorf("%w: update workflow: %w", handoff.ErrPersistence, err)
		}
		c.swap(next)
		return nil
	})
}

// ──────────────────────────────────────────────────
// Task operations
// ──────────────────────────────────────────────────

// AssignTask assigns a task to an agent.
func (c *Coordinator) AssignTask(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID, agentID string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	op := &mw.Op{Name: "task.assign", WorkflowID: workflowID.String(), TaskID: taskID.String(), Agent: agentID}
	var assigned *task.Task
	var snapshot *workflow.Workflow
	err := c.do(ctx, op, func(ctx context.Context) error {
		lock := c.lockFor(workflowID)
		lock.Lock()
		defer lock.Unlock()

		wf, err := c.current(ctx, workflowID)
		if err != nil {
			return err
		}
		next, err := workflow.Assign(wf, taskID, agentID)
		if err != nil {
			return err
		}
		if err := c.store.UpdateTask(ctx, workflowID, next.Tasks[taskID]); err != nil {
			return fmt.Errorf("%w: update task: %w", handoff.ErrPersistence, err)
		}
		c.swap(next)
		assigned = next.Tasks[taskID].Clone()
		snapshot = next.Clone()
		return nil
	})
	if err != nil {
		return err
	}

	c.extensions.EmitTaskAssigned(ctx, snapshot, assigned)
	return nil
}

// StartTask moves a task to in_progress, enforcing dependency gating.
func (c *Coordinator) StartTask(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID) error {
	return c.TransitionTask(ctx, workflowID, taskID, task.StateInProgress, "")
}

// CompleteTask moves a task to completed, which may advance the
// workflow or finish it.
func (c *Coordinator) CompleteTask(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID) error {
	return c.transition(ctx, workflowID, taskID, task.StateCompleted, "", nil)
}

// CompleteTaskWithData completes a task and attaches handoff data to
// it. The data is persisted on the completed task's metadata under the
// "handoff" key, so the handoff event delivers it to the next task's
// agent and it survives restarts.
func (c *Coordinator) CompleteTaskWithData(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID, data map[string]any) error {
	return c.transition(ctx, workflowID, taskID, task.StateCompleted, "", data)
}

// BlockTask moves a task to blocked.
func (c *Coordinator) BlockTask(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID, reason string) error {
	return c.TransitionTask(ctx, workflowID, taskID, task.StateBlocked, reason)
}

// TransitionTask applies an arbitrary legal state change to a task.
// The write-through order is fixed: persist the task row, persist the
// workflow row, append the audit record, then swap the new state into
// memory and emit events. A persistence failure leaves memory
// untouched.
func (c *Coordinator) TransitionTask(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID, to task.State, reason string) error {
	return c.transition(ctx, workflowID, taskID, to, reason, nil)
}

func (c *Coordinator) transition(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID, to task.State, reason string, handoffData map[string]any) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	op := &mw.Op{Name: "task.transition", WorkflowID: workflowID.String(), TaskID: taskID.String()}
	var (
		snapshot  *workflow.Workflow
		changed   *task.Task
		from      task.State
		handoffTo *task.Task
	)
	err := c.do(ctx, op, func(ctx context.Context) error {
		lock := c.lockFor(workflowID)
		lock.Lock()
		defer lock.Unlock()

		wf, err := c.current(ctx, workflowID)
		if err != nil {
			return err
		}
		cur := wf.Tasks[taskID]
		if cur == nil {
			return fmt.Errorf("%w: %s", handoff.ErrTaskNotFound, taskID)
		}
		from = cur.State

		next, err := workflow.Transition(wf, taskID, to)
		if err != nil {
			return err
		}

		if handoffData != nil {
			nt := next.Tasks[taskID]
			if nt.Metadata == nil {
				nt.Metadata = make(map[string]any, 1)
			}
			nt.Metadata["handoff"] = handoffData
		}

		if err := c.store.UpdateTask(ctx, workflowID, next.Tasks[taskID]); err != nil {
			return fmt.Errorf("%w: update task: %w", handoff.ErrPersistence, err)
		}
		if err := c.store.UpdateWorkflowStatus(ctx, workflowID, next.Status, next.CurrentTaskID); err != nil {
			return fmt.Errorf("%w: update workflow: %w", handoff.ErrPersistence, err)
		}

		// The audit log must cover every applied transition, so a
		// failed append aborts before memory is touched.
		tr := audit.New(workflowID, taskID, from, to, next.Tasks[taskID].AssignedAgent)
		tr.Reason = reason
		if err := c.store.AppendTransition(ctx, tr); err != nil {
			return fmt.Errorf("%w: append transition: %w", handoff.ErrPersistence, err)
		}

		if next.Status == workflow.StatusCompleted {
			c.evict(workflowID)
		} else {
			c.swap(next)
		}
		snapshot = next.Clone()
		changed = snapshot.Tasks[taskID]
		if to == task.StateCompleted && next.CurrentTaskID != nil {
			handoffTo = snapshot.Tasks[*next.CurrentTaskID]
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.emitTransition(ctx, snapshot, changed, from, to, handoffTo)
	return nil
}

// emitTransition fires the event set for one applied transition.
func (c *Coordinator) emitTransition(ctx context.Context, wf *workflow.Workflow, t *task.Task, from, to task.State, next *task.Task) {
	c.extensions.EmitTaskTransitioned(ctx, wf, t, from, to)
	switch to {
	case task.StateInProgress:
		c.extensions.EmitTaskStarted(ctx, wf, t)
	case task.StateBlocked:
		c.extensions.EmitTaskBlocked(ctx, wf, t)
	case task.StateCompleted:
		c.extensions.EmitTaskCompleted(ctx, wf, t, time.Since(t.CreatedAt))
		if next != nil {
			c.extensions.EmitTaskHandoff(ctx, wf, t, next)
		}
		if wf.Status == workflow.StatusCompleted {
			c.extensions.EmitWorkflowCompleted(ctx, wf, time.Since(wf.CreatedAt))
		}
	}
}

// CanStart reports whether a task could legally move to in_progress
// right now, along with the dependencies still outstanding.
func (c *Coordinator) CanStart(ctx context.Context, workflowID id.WorkflowID, taskID id.TaskID) (bool, []id.TaskID, error) {
	wf, err := c.GetWorkflow(ctx, workflowID)
	if err != nil {
		return false, nil, err
	}
	t := wf.Tasks[taskID]
	if t == nil {
		return false, nil, fmt.Errorf("%w: %s", handoff.ErrTaskNotFound, taskID)
	}
	if !task.CanTransition(t.State, task.StateInProgress) {
		return false, nil, nil
	}
	met, unmet := workflow.DependenciesMet(wf, taskID)
	return met, unmet, nil
}

// AgentTask pairs a task with the workflow it belongs to.
type AgentTask struct {
	WorkflowID   id.WorkflowID `json:"workflow_id"`
	WorkflowName string        `json:"workflow_name"`
	Task         *task.Task    `json:"task"`
}

// GetAgentTasks returns every non-completed task assigned to the agent
// across all active workflows, in workflow task order.
func (c *Coordinator) GetAgentTasks(_ context.Context, agentID string) ([]*AgentTask, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*AgentTask
	for _, wf := range c.workflows {
		for _, t := range wf.TasksInOrder() {
			if t.AssignedAgent != agentID || t.State == task.StateCompleted {
				continue
			}
			out = append(out, &AgentTask{
				WorkflowID:   wf.ID,
				WorkflowName: wf.Name,
				Task:         t.Clone(),
			})
		}
	}
	return out, nil
}

// ListTaskTransitions returns the audit trail for a task.
func (c *Coordinator) ListTaskTransitions(ctx context.Context, taskID id.TaskID) ([]*audit.Transition, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.ListTaskTransitions(ctx, taskID)
}

// ListWorkflowTransitions returns the audit trail for a workflow.
func (c *Coordinator) ListWorkflowTransitions(ctx context.Context, workflowID id.WorkflowID) ([]*audit.Transition, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.ListWorkflowTransitions(ctx, workflowID)
}

// current returns the live in-memory workflow (not a clone). Callers
// must hold the workflow's mutation lock.
func (c *Coordinator) current(ctx context.Context, workflowID id.WorkflowID) (*workflow.Workflow, error) {
	c.mu.RLock()
	wf, ok := c.workflows[workflowID.String()]
	c.mu.RUnlock()
	if ok {
		return wf, nil
	}
	// Evicted (completed) workflows read back from the store so
	// terminal-status checks still apply.
	return c.store.GetWorkflow(ctx, workflowID)
}

// swap installs a new workflow state in memory.
func (c *Coordinator) swap(wf *workflow.Workflow) {
	c.mu.Lock()
	c.workflows[wf.ID.String()] = wf
	c.mu.Unlock()
}

// evict drops a workflow from the active working set, along with its
// mutex. Reads are served from the store afterwards.
func (c *Coordinator) evict(workflowID id.WorkflowID) {
	key := workflowID.String()
	c.mu.Lock()
	delete(c.workflows, key)
	c.mu.Unlock()
	c.locksMu.Lock()
	delete(c.locks, key)
	c.locksMu.Unlock()
}

// ──────────────────────────────────────────────────
// Agent operations
// ──────────────────────────────────────────────────

// RegisterAgent records an agent as online and emits agent:connected.
// Re-registering an existing agent refreshes its connection state.
func (c *Coordinator) RegisterAgent(ctx context.Context, agentID, name string) (*agent.Agent, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent id is required", handoff.ErrInvalidInput)
	}

	now := time.Now().UTC()
	a := &agent.Agent{
		Entity:      handoff.NewEntity(),
		ID:          agentID,
		Name:        name,
		Status:      agent.StatusOnline,
		ConnectedAt: now,
		LastSeen:    now,
	}

	op := &mw.Op{Name: "agent.register", Agent: agentID}
	err := c.do(ctx, op, func(ctx context.Context) error {
		if err := c.store.SaveAgent(ctx, a); err != nil {
			return fmt.Errorf("%w: save agent: %w", handoff.ErrPersistence, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.extensions.EmitAgentConnected(ctx, a)
	return a.Clone(), nil
}

// Heartbeat records agent liveness.
func (c *Coordinator) Heartbeat(ctx context.Context, agentID string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	if err := c.store.Heartbeat(ctx, agentID, time.Now().UTC()); err != nil {
		if errors.Is(err, handoff.ErrAgentNotFound) {
			return err
		}
		return fmt.Errorf("%w: heartbeat: %w", handoff.ErrPersistence, err)
	}
	return nil
}

// GetAgent returns an agent from the registry.
func (c *Coordinator) GetAgent(ctx context.Context, agentID string) (*agent.Agent, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.GetAgent(ctx, agentID)
}

// ListAgents returns every registered agent.
func (c *Coordinator) ListAgents(ctx context.Context) ([]*agent.Agent, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	return c.store.ListAgents(ctx)
}

// HandleAgentDisconnect marks the agent offline and blocks every
// in-flight task it held. Tasks already pending, blocked, or completed
// are untouched.
func (c *Coordinator) HandleAgentDisconnect(ctx context.Context, agentID string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	op := &mw.Op{Name: "agent.disconnect", Agent: agentID}
	var blocked []id.TaskID
	err := c.do(ctx, op, func(ctx context.Context) error {
		if err := c.store.UpdateAgentStatus(ctx, agentID, agent.StatusOffline); err != nil && !errors.Is(err, handoff.ErrAgentNotFound) {
			return fmt.Errorf("%w: mark agent offline: %w", handoff.ErrPersistence, err)
		}

		// Snapshot the affected task IDs, then block each through the
		// normal transition path so persistence and events stay uniform.
		type target struct {
			wfID id.WorkflowID
			tID  id.TaskID
		}
		var targets []target
		c.mu.RLock()
		for _, wf := range c.workflows {
			for _, t := range wf.TasksInOrder() {
				if t.AssignedAgent != agentID {
					continue
				}
				if t.State == task.StateInProgress || t.State == task.StateReview {
					targets = append(targets, target{wf.ID, t.ID})
				}
			}
		}
		c.mu.RUnlock()

		for _, tgt := range targets {
			if err := c.TransitionTask(ctx, tgt.wfID, tgt.tID, task.StateBlocked, "Agent disconnected"); err != nil {
				c.logger.Error("block task on disconnect failed",
					slog.String("task_id", tgt.tID.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			blocked = append(blocked, tgt.tID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.extensions.EmitAgentDisconnected(ctx, agentID, blocked)
	c.logger.Warn("agent disconnected",
		slog.String("agent_id", agentID),
		slog.Int("blocked_tasks", len(blocked)),
	)
	return nil
}
