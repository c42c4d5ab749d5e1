// Package api provides HTTP handlers for the Handoff API.
package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// API wires all Forge-style HTTP handlers together for the handoff system.
type API struct {
	coord  *coordinator.Coordinator
	router forge.Router
}

// New creates an API from a handoff Coordinator.
func New(coord *coordinator.Coordinator, router forge.Router) *API {
	return &API{coord: coord, router: router}
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	if a.router == nil {
		a.router = forge.NewRouter()
	}
	a.RegisterRoutes(a.router)
	return a.router.Handler()
}

// RegisterRoutes registers all handoff API routes into the given Forge
// router with full OpenAPI metadata.
func (a *API) RegisterRoutes(router forge.Router) {
	a.registerWorkflowRoutes(router)
	a.registerTaskRoutes(router)
	a.registerAgentRoutes(router)
}

// registerWorkflowRoutes registers workflow management routes.
func (a *API) registerWorkflowRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("workflows"))

	_ = g.POST("/workflows", a.createWorkflow,
		forge.WithSummary("Create workflow"),
		forge.WithDescription("Creates a workflow from a task graph specification."),
		forge.WithOperationID("createWorkflow"),
		forge.WithRequestSchema(CreateWorkflowRequest{}),
		forge.WithCreatedResponse(&workflow.Workflow{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/workflows", a.listWorkflows,
		forge.WithSummary("List workflows"),
		forge.WithDescription("Returns workflows filtered by status."),
		forge.WithOperationID("listWorkflows"),
		forge.WithRequestSchema(ListWorkflowsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Workflow list", []*workflow.Workflow{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/workflows/:workflowId", a.getWorkflow,
		forge.WithSummary("Get workflow"),
		forge.WithDescription("Returns a workflow with its full task set."),
		forge.WithOperationID("getWorkflow"),
		forge.WithResponseSchema(http.StatusOK, "Workflow details", &workflow.Workflow{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/workflows/:workflowId/status", a.getWorkflowStatus,
		forge.WithSummary("Workflow status"),
		forge.WithDescription("Returns a progress summary with per-state task counts."),
		forge.WithOperationID("getWorkflowStatus"),
		forge.WithResponseSchema(http.StatusOK, "Workflow status", &coordinator.WorkflowStatus{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/pause", a.pauseWorkflow,
		forge.WithSummary("Pause workflow"),
		forge.WithDescription("Holds an active workflow; task transitions are rejected until it is resumed."),
		forge.WithOperationID("pauseWorkflow"),
		forge.WithResponseSchema(http.StatusOK, "Workflow status", &coordinator.WorkflowStatus{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/resume", a.resumeWorkflow,
		forge.WithSummary("Resume workflow"),
		forge.WithDescription("Returns a paused workflow to active."),
		forge.WithOperationID("resumeWorkflow"),
		forge.WithResponseSchema(http.StatusOK, "Workflow status", &coordinator.WorkflowStatus{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/workflows/:workflowId/transitions", a.listTransitions,
		forge.WithSummary("Transition history"),
		forge.WithDescription("Returns the transition trail for a workflow, optionally filtered by task."),
		forge.WithOperationID("listTransitions"),
		forge.WithRequestSchema(ListTransitionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Transition trail", []*audit.Transition{}),
		forge.WithErrorResponses(),
	)
}

// registerTaskRoutes registers task lifecycle routes.
func (a *API) registerTaskRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("tasks"))

	_ = g.POST("/workflows/:workflowId/tasks/:taskId/assign", a.assignTask,
		forge.WithSummary("Assign task"),
		forge.WithDescription("Assigns a task to an agent."),
		forge.WithOperationID("assignTask"),
		forge.WithRequestSchema(AssignTaskRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated task", &task.Task{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/tasks/:taskId/start", a.startTask,
		forge.WithSummary("Start task"),
		forge.WithDescription("Moves a task to in_progress if its dependencies are complete."),
		forge.WithOperationID("startTask"),
		forge.WithResponseSchema(http.StatusOK, "Updated task", &task.Task{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/tasks/:taskId/complete", a.completeTask,
		forge.WithSummary("Complete task"),
		forge.WithDescription("Completes a task and advances the workflow pointer."),
		forge.WithOperationID("completeTask"),
		forge.WithRequestSchema(CompleteTaskRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Completed and next task", CompleteTaskResponse{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/tasks/:taskId/block", a.blockTask,
		forge.WithSummary("Block task"),
		forge.WithDescription("Marks an in-flight task as blocked."),
		forge.WithOperationID("blockTask"),
		forge.WithRequestSchema(BlockTaskRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated task", &task.Task{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/workflows/:workflowId/tasks/:taskId/transition", a.transitionTask,
		forge.WithSummary("Transition task"),
		forge.WithDescription("Moves a task along any legal state-machine edge."),
		forge.WithOperationID("transitionTask"),
		forge.WithRequestSchema(TransitionTaskRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated task", &task.Task{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/workflows/:workflowId/tasks/:taskId/can-start", a.canStartTask,
		forge.WithSummary("Can start"),
		forge.WithDescription("Reports whether a task may enter in_progress, listing unmet dependencies."),
		forge.WithOperationID("canStartTask"),
		forge.WithResponseSchema(http.StatusOK, "Start eligibility", CanStartResponse{}),
		forge.WithErrorResponses(),
	)
}

// registerAgentRoutes registers agent registry routes.
func (a *API) registerAgentRoutes(router forge.Router) {
	g := router.Group("/v1", forge.WithGroupTags("agents"))

	_ = g.POST("/agents", a.registerAgent,
		forge.WithSummary("Register agent"),
		forge.WithDescription("Registers an agent and marks it online."),
		forge.WithOperationID("registerAgent"),
		forge.WithRequestSchema(RegisterAgentRequest{}),
		forge.WithCreatedResponse(&agent.Agent{}),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/agents", a.listAgents,
		forge.WithSummary("List agents"),
		forge.WithDescription("Returns every registered agent."),
		forge.WithOperationID("listAgents"),
		forge.WithResponseSchema(http.StatusOK, "Agent list", []*agent.Agent{}),
		forge.WithErrorResponses(),
	)

	_ = g.POST("/agents/:agentId/heartbeat", a.heartbeatAgent,
		forge.WithSummary("Agent heartbeat"),
		forge.WithDescription("Records a liveness signal for an agent."),
		forge.WithOperationID("heartbeatAgent"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	)

	_ = g.GET("/agents/:agentId/tasks", a.agentTasks,
		forge.WithSummary("Agent tasks"),
		forge.WithDescription("Returns every non-completed task assigned to an agent."),
		forge.WithOperationID("agentTasks"),
		forge.WithResponseSchema(http.StatusOK, "Agent tasks", []*coordinator.AgentTask{}),
		forge.WithErrorResponses(),
	)
}
