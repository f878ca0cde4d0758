package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
)

// HandlePlanTool is the unified handler for plan operations.
// Domain failures come back in ToolResult.Error; the returned error is
// reserved for storage failures.
func HandlePlanTool(ctx context.Context, svc *planning.Service, params PlanToolParams) (*ToolResult, error) {
	action := string(params.Action)
	if !params.Action.IsValid() {
		return failed(action, fmt.Sprintf("invalid action %q, must be one of: create, view, step, add, complete, cancel, list", params.Action)), nil
	}
	threadID := strings.TrimSpace(params.ThreadID)
	if threadID == "" {
		return failed(action, "thread_id is required"), nil
	}

	var (
		plan *planning.PlanResponse
		err  error
	)
	switch params.Action {
	case PlanActionCreate:
		plan, err = svc.CreatePlan(ctx, planning.CreatePlanRequest{ThreadID: threadID, Title: params.Title, Steps: params.Steps})

	case PlanActionView:
		plan, err = svc.GetActivePlan(ctx, threadID)
		if err == nil && plan == nil {
			return &ToolResult{Action: action, Content: "No active plan for this thread."}, nil
		}

	case PlanActionList:
		var plans []*planning.PlanResponse
		plans, err = svc.ListPlans(ctx, threadID, params.Status)
		if err == nil {
			return &ToolResult{Action: action, Content: FormatPlanList(plans)}, nil
		}

	default:
		active, aerr := svc.GetActivePlan(ctx, threadID)
		if aerr != nil {
			return toolError(action, aerr)
		}
		if active == nil {
			return failed(action, "no active plan for this thread; create one first"), nil
		}
		plan, err = mutateActive(ctx, svc, active.PlanID, params)
	}
	if err != nil {
		return toolError(action, err)
	}
	return &ToolResult{Action: action, Content: FormatPlan(plan)}, nil
}

func mutateActive(ctx context.Context, svc *planning.Service, planID string, params PlanToolParams) (*planning.PlanResponse, error) {
	switch params.Action {
	case PlanActionStep:
		completed := true
		if params.Completed != nil {
			completed = *params.Completed
		}
		return svc.UpdateStep(ctx, planning.UpdateStepRequest{PlanID: planID, StepNumber: params.StepNumber, Completed: completed})
	case PlanActionAdd:
		return svc.AddStep(ctx, planID, params.Description)
	case PlanActionComplete:
		return svc.CompletePlan(ctx, planID)
	case PlanActionCancel:
		return svc.CancelPlan(ctx, planID)
	default:
		return nil, apperr.NewValidation("action", "unsupported action: "+string(params.Action))
	}
}

// HandleNoteTool is the unified handler for note operations.
func HandleNoteTool(ctx context.Context, svc *notes.Service, params NoteToolParams) (*ToolResult, error) {
	action := string(params.Action)
	if !params.Action.IsValid() {
		return failed(action, fmt.Sprintf("invalid action %q, must be one of: save, search", params.Action)), nil
	}

	switch params.Action {
	case NoteActionSave:
		n, err := svc.SaveNote(ctx, notes.SaveNoteRequest{
			Title: params.Title, Content: params.Content, ThreadID: params.ThreadID, Tags: params.Tags,
		})
		if err != nil {
			return toolError(action, err)
		}
		return &ToolResult{Action: action, Content: fmt.Sprintf("Saved note `%s`: %s", n.ID, n.Title)}, nil
	default:
		found, err := svc.RetrieveNotes(ctx, notes.RetrieveNotesRequest{
			Query: params.Query, Tag: params.Tag, ThreadID: params.ThreadID, Limit: params.Limit,
		})
		if err != nil {
			return toolError(action, err)
		}
		return &ToolResult{Action: action, Content: FormatNotes(found)}, nil
	}
}

func failed(action, msg string) *ToolResult {
	return &ToolResult{Action: action, Error: msg}
}

// toolError turns domain errors into a visible result and passes storage errors through.
func toolError(action string, err error) (*ToolResult, error) {
	if apperr.KindOf(err) == "" || apperr.IsRepository(err) {
		return nil, err
	}
	return failed(action, err.Error()), nil
}
