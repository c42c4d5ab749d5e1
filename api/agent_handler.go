package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/handoff/agent"
	"github.com/xraph/handoff/coordinator"
)

func (a *API) registerAgent(ctx forge.Context, req *RegisterAgentRequest) (*agent.Agent, error) {
	if req.AgentID == "" {
		return nil, forge.BadRequest("agent_id is required")
	}

	registered, err := a.coord.RegisterAgent(ctx.Context(), req.AgentID, req.Name)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return registered, ctx.JSON(http.StatusCreated, registered)
}

func (a *API) listAgents(ctx forge.Context) error {
	agents, err := a.coord.ListAgents(ctx.Context())
	if err != nil {
		return fmt.Errorf("list agents: %w", err)
	}
	return ctx.JSON(http.StatusOK, agents)
}

func (a *API) heartbeatAgent(ctx forge.Context) error {
	agentID := ctx.Param("agentId")
	if agentID == "" {
		return forge.BadRequest("agent ID is required")
	}

	if err := a.coord.Heartbeat(ctx.Context(), agentID); err != nil {
		return mapStoreError(err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (a *API) agentTasks(ctx forge.Context) error {
	agentID := ctx.Param("agentId")
	if agentID == "" {
		return forge.BadRequest("agent ID is required")
	}

	tasks, err := a.coord.GetAgentTasks(ctx.Context(), agentID)
	if err != nil {
		return mapStoreError(err)
	}
	if tasks == nil {
		tasks = []*coordinator.AgentTask{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}
