package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/task"
)

// taskRef parses the workflow and task path parameters shared by every
// task route.
func taskRef(ctx forge.Context) (id.WorkflowID, id.TaskID, error) {
	workflowID, err := id.ParseWorkflowID(ctx.Param("workflowId"))
	if err != nil {
		return id.WorkflowID{}, id.TaskID{}, forge.BadRequest(fmt.Sprintf("invalid workflow ID: %v", err))
	}
	taskID, err := id.ParseTaskID(ctx.Param("taskId"))
	if err != nil {
		return id.WorkflowID{}, id.TaskID{}, forge.BadRequest(fmt.Sprintf("invalid task ID: %v", err))
	}
	return workflowID, taskID, nil
}

// lookupTask reads a task back after a mutation so handlers can return
// the updated record.
func (a *API) lookupTask(ctx forge.Context, workflowID id.WorkflowID, taskID id.TaskID) (*task.Task, error) {
	wf, err := a.coord.GetWorkflow(ctx.Context(), workflowID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	t := wf.Task(taskID)
	if t == nil {
		return nil, mapStoreError(handoff.ErrTaskNotFound)
	}
	return t, nil
}

func (a *API) assignTask(ctx forge.Context, req *AssignTaskRequest) (*task.Task, error) {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.coord.AssignTask(ctx.Context(), workflowID, taskID, req.AgentID); err != nil {
		return nil, mapStoreError(err)
	}
	t, err := a.lookupTask(ctx, workflowID, taskID)
	if err != nil {
		return nil, err
	}
	return t, ctx.JSON(http.StatusOK, t)
}

func (a *API) startTask(ctx forge.Context) error {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return err
	}

	if err := a.coord.StartTask(ctx.Context(), workflowID, taskID); err != nil {
		return mapStoreError(err)
	}
	t, err := a.lookupTask(ctx, workflowID, taskID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, t)
}

func (a *API) completeTask(ctx forge.Context, req *CompleteTaskRequest) (*CompleteTaskResponse, error) {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return nil, err
	}

	if req.HandoffData != nil {
		err = a.coord.CompleteTaskWithData(ctx.Context(), workflowID, taskID, req.HandoffData)
	} else {
		err = a.coord.CompleteTask(ctx.Context(), workflowID, taskID)
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	wf, err := a.coord.GetWorkflow(ctx.Context(), workflowID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	resp := &CompleteTaskResponse{CompletedTask: wf.Task(taskID)}
	if wf.CurrentTaskID != nil {
		resp.NextTask = wf.Task(*wf.CurrentTaskID)
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) blockTask(ctx forge.Context, req *BlockTaskRequest) (*task.Task, error) {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.coord.BlockTask(ctx.Context(), workflowID, taskID, req.Reason); err != nil {
		return nil, mapStoreError(err)
	}
	t, err := a.lookupTask(ctx, workflowID, taskID)
	if err != nil {
		return nil, err
	}
	return t, ctx.JSON(http.StatusOK, t)
}

func (a *API) transitionTask(ctx forge.Context, req *TransitionTaskRequest) (*task.Task, error) {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return nil, err
	}

	to := task.State(req.To)
	if !to.Valid() {
		return nil, forge.BadRequest(fmt.Sprintf("invalid target state: %q", req.To))
	}

	if err := a.coord.TransitionTask(ctx.Context(), workflowID, taskID, to, req.Reason); err != nil {
		return nil, mapStoreError(err)
	}
	t, err := a.lookupTask(ctx, workflowID, taskID)
	if err != nil {
		return nil, err
	}
	return t, ctx.JSON(http.StatusOK, t)
}

func (a *API) canStartTask(ctx forge.Context) error {
	workflowID, taskID, err := taskRef(ctx)
	if err != nil {
		return err
	}

	ok, unmet, err := a.coord.CanStart(ctx.Context(), workflowID, taskID)
	if err != nil {
		return mapStoreError(err)
	}

	resp := CanStartResponse{CanStart: ok}
	for _, dep := range unmet {
		resp.UnmetDeps = append(resp.UnmetDeps, dep.String())
	}
	return ctx.JSON(http.StatusOK, resp)
}
