package push

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/xraph/handoff"
	"github.com/xraph/handoff/coordinator"
	"github.com/xraph/handoff/id"
	"github.com/xraph/handoff/stream"
	"github.com/xraph/handoff/task"
	"github.com/xraph/handoff/workflow"
)

// Handler dispatches HPP frames to coordinator operations.
type Handler struct {
	coord  *coordinator.Coordinator
	broker *stream.Broker
	logger *slog.Logger
}

// NewHandler creates a new HPP method handler.
func NewHandler(coord *coordinator.Coordinator, broker *stream.Broker, logger *slog.Logger) *Handler {
	return &Handler{coord: coord, broker: broker, logger: logger}
}

// Handle processes a single HPP request frame and returns a response.
func (h *Handler) Handle(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	switch frame.Method {
	case MethodAgentRegister:
		return h.handleAgentRegister(ctx, frame)
	case MethodAgentHeartbeat:
		return h.handleAgentHeartbeat(ctx, frame)
	case MethodAgentTasks:
		return h.handleAgentTasks(ctx, frame)
	case MethodWorkflowCreate:
		return h.handleWorkflowCreate(ctx, frame)
	case MethodWorkflowGet:
		return h.handleWorkflowGet(ctx, frame)
	case MethodWorkflowStatus:
		return h.handleWorkflowStatus(ctx, frame)
	case MethodWorkflowList:
		return h.handleWorkflowList(ctx, frame)
	case MethodWorkflowTrail:
		return h.handleWorkflowTrail(ctx, frame)
	case MethodWorkflowPause:
		return h.handleWorkflowPause(ctx, frame)
	case MethodWorkflowResume:
		return h.handleWorkflowResume(ctx, frame)
	case MethodTaskAssign:
		return h.handleTaskAssign(ctx, frame)
	case MethodTaskStart:
		return h.handleTaskStart(ctx, frame)
	case MethodTaskComplete:
		return h.handleTaskComplete(ctx, frame)
	case MethodTaskBlock:
		return h.handleTaskBlock(ctx, frame)
	case MethodTaskTransition:
		return h.handleTaskTransition(ctx, frame)
	case MethodTaskCanStart:
		return h.handleTaskCanStart(ctx, frame)
	case MethodSubscribe:
		return h.handleSubscribe(frame)
	case MethodUnsubscribe:
		return h.handleUnsubscribe(frame)
	case MethodStats:
		return h.handleStats(frame)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

// mustResponseFrame creates a response frame, returning an error frame on marshal failure.
func mustResponseFrame(frameID string, data any) *Frame {
	resp, err := NewResponseFrame(frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

// coordErrorFrame maps coordinator sentinel errors to protocol error codes.
func coordErrorFrame(frameID string, err error) *Frame {
	switch {
	case errors.Is(err, handoff.ErrWorkflowNotFound),
		errors.Is(err, handoff.ErrTaskNotFound),
		errors.Is(err, handoff.ErrAgentNotFound):
		return NewErrorFrame(frameID, ErrCodeNotFound, err.Error())
	case errors.Is(err, handoff.ErrWorkflowExists),
		errors.Is(err, handoff.ErrAgentExists):
		return NewErrorFrame(frameID, ErrCodeConflict, err.Error())
	case errors.Is(err, handoff.ErrInvalidTransition),
		errors.Is(err, handoff.ErrDependencyUnmet),
		errors.Is(err, handoff.ErrInvalidInput):
		return NewErrorFrame(frameID, ErrCodeBadRequest, err.Error())
	default:
		return NewErrorFrame(frameID, ErrCodeInternal, err.Error())
	}
}

func decodeRequest[T any](frame *Frame) (*T, *Frame) {
	var req T
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil, NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
		}
	}
	return &req, nil
}

func parseTaskRef(frameID string, ref TaskRef) (id.WorkflowID, id.TaskID, *Frame) {
	workflowID, err := id.ParseWorkflowID(ref.WorkflowID)
	if err != nil {
		return id.WorkflowID{}, id.TaskID{}, NewErrorFrame(frameID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}
	taskID, err := id.ParseTaskID(ref.TaskID)
	if err != nil {
		return id.WorkflowID{}, id.TaskID{}, NewErrorFrame(frameID, ErrCodeBadRequest, "invalid task ID: "+err.Error())
	}
	return workflowID, taskID, nil
}

// ── Agent methods ───────────────────────────────────

func (h *Handler) handleAgentRegister(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[AgentRegisterRequest](frame)
	if errFrame != nil {
		return errFrame
	}
	if req.AgentID == "" {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "agent_id is required")
	}

	a, err := h.coord.RegisterAgent(ctx, req.AgentID, req.Name)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, a)
}

func (h *Handler) handleAgentHeartbeat(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[AgentHeartbeatRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	if err := h.coord.Heartbeat(ctx, req.AgentID); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "ok"})
}

func (h *Handler) handleAgentTasks(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[AgentTasksRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	tasks, err := h.coord.GetAgentTasks(ctx, req.AgentID)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	if tasks == nil {
		tasks = []*coordinator.AgentTask{}
	}
	return mustResponseFrame(frame.ID, tasks)
}

// ── Workflow methods ────────────────────────────────

func (h *Handler) handleWorkflowCreate(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowCreateRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	wf, err := h.coord.CreateWorkflow(ctx, req.Spec())
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}

	resp := WorkflowCreateResponse{
		WorkflowID: wf.ID.String(),
		Status:     string(wf.Status),
	}
	if wf.CurrentTaskID != nil {
		resp.CurrentTaskID = wf.CurrentTaskID.String()
	}
	return mustResponseFrame(frame.ID, resp)
}

func (h *Handler) handleWorkflowGet(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowGetRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	workflowID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}

	wf, err := h.coord.GetWorkflow(ctx, workflowID)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, wf)
}

func (h *Handler) handleWorkflowStatus(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowGetRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	workflowID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}

	st, err := h.coord.GetWorkflowStatus(ctx, workflowID)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, st)
}

func (h *Handler) handleWorkflowList(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowListRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	workflows, err := h.coord.ListWorkflows(ctx, workflow.ListOpts{
		Status: workflow.Status(req.Status),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	if workflows == nil {
		workflows = []*workflow.Workflow{}
	}
	return mustResponseFrame(frame.ID, workflows)
}

func (h *Handler) handleWorkflowTrail(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowTrailRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	if req.TaskID != "" {
		taskID, err := id.ParseTaskID(req.TaskID)
		if err != nil {
			return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid task ID: "+err.Error())
		}
		trail, err := h.coord.ListTaskTransitions(ctx, taskID)
		if err != nil {
			return coordErrorFrame(frame.ID, err)
		}
		return mustResponseFrame(frame.ID, trail)
	}

	workflowID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}
	trail, err := h.coord.ListWorkflowTransitions(ctx, workflowID)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, trail)
}

func (h *Handler) handleWorkflowPause(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowGetRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	workflowID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}

	if err := h.coord.PauseWorkflow(ctx, workflowID); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "paused"})
}

func (h *Handler) handleWorkflowResume(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[WorkflowGetRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	workflowID, err := id.ParseWorkflowID(req.WorkflowID)
	if err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid workflow ID: "+err.Error())
	}

	if err := h.coord.ResumeWorkflow(ctx, workflowID); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "active"})
}

// ── Task methods ────────────────────────────────────

func (h *Handler) handleTaskAssign(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskAssignRequest](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, req.TaskRef)
	if refErr != nil {
		return refErr
	}

	if err := h.coord.AssignTask(ctx, workflowID, taskID, req.AgentID); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "assigned"})
}

func (h *Handler) handleTaskStart(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskRef](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, *req)
	if refErr != nil {
		return refErr
	}

	if err := h.coord.StartTask(ctx, workflowID, taskID); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "started"})
}

func (h *Handler) handleTaskComplete(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskCompleteRequest](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, req.TaskRef)
	if refErr != nil {
		return refErr
	}

	var err error
	if req.HandoffData != nil {
		err = h.coord.CompleteTaskWithData(ctx, workflowID, taskID, req.HandoffData)
	} else {
		err = h.coord.CompleteTask(ctx, workflowID, taskID)
	}
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "completed"})
}

func (h *Handler) handleTaskBlock(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskBlockRequest](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, req.TaskRef)
	if refErr != nil {
		return refErr
	}

	if err := h.coord.BlockTask(ctx, workflowID, taskID, req.Reason); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": "blocked"})
}

func (h *Handler) handleTaskTransition(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskTransitionRequest](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, req.TaskRef)
	if refErr != nil {
		return refErr
	}

	to := task.State(req.To)
	if !to.Valid() {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid target state: "+req.To)
	}

	if err := h.coord.TransitionTask(ctx, workflowID, taskID, to, req.Reason); err != nil {
		return coordErrorFrame(frame.ID, err)
	}
	return mustResponseFrame(frame.ID, map[string]string{"status": string(to)})
}

func (h *Handler) handleTaskCanStart(ctx context.Context, frame *Frame) *Frame {
	req, errFrame := decodeRequest[TaskRef](frame)
	if errFrame != nil {
		return errFrame
	}
	workflowID, taskID, refErr := parseTaskRef(frame.ID, *req)
	if refErr != nil {
		return refErr
	}

	ok, unmet, err := h.coord.CanStart(ctx, workflowID, taskID)
	if err != nil {
		return coordErrorFrame(frame.ID, err)
	}

	resp := CanStartResponse{CanStart: ok}
	for _, dep := range unmet {
		resp.UnmetDeps = append(resp.UnmetDeps, dep.String())
	}
	return mustResponseFrame(frame.ID, resp)
}

// ── Subscription methods ────────────────────────────

func (h *Handler) handleSubscribe(frame *Frame) *Frame {
	req, errFrame := decodeRequest[SubscribeRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	if err := stream.ValidateTopic(req.Channel); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, err.Error())
	}

	// Actual subscription is done in the server loop after response is sent.
	return mustResponseFrame(frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "subscribed",
	})
}

func (h *Handler) handleUnsubscribe(frame *Frame) *Frame {
	req, errFrame := decodeRequest[UnsubscribeRequest](frame)
	if errFrame != nil {
		return errFrame
	}

	// Actual unsubscription is done in the server loop after response is sent.
	return mustResponseFrame(frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "unsubscribed",
	})
}

func (h *Handler) handleStats(frame *Frame) *Frame {
	stats := map[string]any{
		"broker": h.broker.Stats(),
	}
	return mustResponseFrame(frame.ID, stats)
}
