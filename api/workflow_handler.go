package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/handoff/audit"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/workflow"
)

func (a *API) createWorkflow(ctx forge.Context, req *CreateWorkflowRequest) (*workflow.Workflow, error) {
	wf, err := a.coord.CreateWorkflow(ctx.Context(), req.Spec())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return wf, ctx.JSON(http.StatusCreated, wf)
}

func (a *API) listWorkflows(ctx forge.Context, req *ListWorkflowsRequest) (*[]*workflow.Workflow, error) {
	// The unfiltered listing is the active set; completed workflows
	// must be asked for by status.
	status := workflow.StatusActive
	if req.Status != "" {
		status = workflow.Status(req.Status)
	}

	workflows, err := a.coord.ListWorkflows(ctx.Context(), workflow.ListOpts{
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
		Status: status,
	})
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	return &workflows, ctx.JSON(http.StatusOK, workflows)
}

func (a *API) getWorkflow(ctx forge.Context) error {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}

	wf, err := a.coord.GetWorkflow(ctx.Context(), workflowID)
	if err != nil {
		return mapStoreError(err)
	}
	return ctx.JSON(http.StatusOK, wf)
}

func (a *API) getWorkflowStatus(ctx forge.Context) error {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}

	status, err := a.coord.GetWorkflowStatus(ctx.Context(), workflowID)
	if err != nil {
		return mapStoreError(err)
	}
	return ctx.JSON(http.StatusOK, status)
}

func (a *API) pauseWorkflow(ctx forge.Context) error {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}

	if err := a.coord.PauseWorkflow(ctx.Context(), workflowID); err != nil {
		return mapStoreError(err)
	}
	status, err := a.coord.GetWorkflowStatus(ctx.Context(), workflowID)
	if err != nil {
		return mapStoreError(err)
	}
	return ctx.JSON(http.StatusOK, status)
}

func (a *API) resumeWorkflow(ctx forge.Context) error {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}

	if err := a.coord.ResumeWorkflow(ctx.Context(), workflowID); err != nil {
		return mapStoreError(err)
	}
	status, err := a.coord.GetWorkflowStatus(ctx.Context(), workflowID)
	if err != nil {
		return mapStoreError(err)
	}
	return ctx.JSON(http.StatusOK, status)
}

func (a *API) listTransitions(ctx forge.Context, req *ListTransitionsRequest) (*[]*audit.Transition, error) {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}

	var trail []*audit.Transition
	if req.TaskID != "" {
		taskID, parseErr := id.ParseTaskID(req.TaskID)
		if parseErr != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid task ID: %v", parseErr))
		}
		trail, err = a.coord.ListTaskTransitions(ctx.Context(), taskID)
	} else {
		trail, err = a.coord.ListWorkflowTransitions(ctx.Context(), workflowID)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	return &trail, ctx.JSON(http.StatusOK, trail)
}
