package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/josephgoksu/deepagent/internal/notes"
	"github.com/josephgoksu/deepagent/internal/planning"
)

type threadKey struct{}

// WithThreadID scopes the planning and note tools to threadID.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadKey{}, threadID)
}

// ThreadIDFrom returns the thread id set by WithThreadID.
func ThreadIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(threadKey{}).(string)
	return id, ok && id != ""
}

func requireThread(ctx context.Context) (string, error) {
	id, ok := ThreadIDFrom(ctx)
	if !ok {
		return "", fmt.Errorf("tool called outside a conversation thread")
	}
	return id, nil
}

// toolResult turns domain failures into text the model can act on.
// Storage failures are returned as errors and abort the tool round.
func toolResult(text string, err error) (string, error) {
	if err == nil {
		return text, nil
	}
	if apperr.IsRepository(err) {
		return "", err
	}
	return "Error: " + err.Error(), nil
}

func parseArgs(argumentsInJSON string, v any) error {
	if strings.TrimSpace(argumentsInJSON) == "" {
		argumentsInJSON = "{}"
	}
	if err := json.Unmarshal([]byte(argumentsInJSON), v); err != nil {
		return fmt.Errorf("parse arguments: %w", err)
	}
	return nil
}

// NewPlanningTools returns the plan and note tools bound to the given services.
// notesSvc may be nil, in which case the note tools are omitted.
func NewPlanningTools(plans *planning.Service, notesSvc *notes.Service) []tool.InvokableTool {
	tools := []tool.InvokableTool{
		&CreatePlanTool{plans: plans},
		&UpdatePlanStepTool{plans: plans},
		&ViewPlanTool{plans: plans},
		&AddPlanStepTool{plans: plans},
	}
	if notesSvc != nil {
		tools = append(tools, &SaveNoteTool{notes: notesSvc}, &SearchNotesTool{notes: notesSvc})
	}
	return tools
}

// CreatePlanTool starts a new plan in the current thread.
type CreatePlanTool struct {
	plans *planning.Service
}

func (t *CreatePlanTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "create_plan",
		Desc: `Create a plan for a complex, multi-step task in this conversation.
Only one plan can be active per conversation; finish or cancel it before starting another.`,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title": {
				Type:     "string",
				Desc:     "The task the plan accomplishes",
				Required: true,
			},
			"steps": {
				Type:     "array",
				ElemInfo: &schema.ParameterInfo{Type: "string"},
				Desc:     "Ordered step descriptions",
				Required: true,
			},
		}),
	}, nil
}

type createPlanArgs struct {
	Title string   `json:"title"`
	Steps []string `json:"steps"`
}

func (t *CreatePlanTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	threadID, err := requireThread(ctx)
	if err != nil {
		return "", err
	}
	var args createPlanArgs
	if err := parseArgs(argumentsInJSON, &args); err != nil {
		return "", err
	}
	p, err := t.plans.CreatePlan(ctx, planning.CreatePlanRequest{ThreadID: threadID, Title: args.Title, Steps: args.Steps})
	if err != nil {
		return toolResult("", err)
	}
	return fmt.Sprintf("Plan created with %d steps for task: %s", len(p.Steps), p.Title), nil
}

// UpdatePlanStepTool marks a step of the active plan complete or incomplete.
type UpdatePlanStepTool struct {
	plans *planning.Service
}

func (t *UpdatePlanStepTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "update_plan_step",
		Desc: "Mark a step of the active plan as completed (default) or incomplete. The plan completes when every step is done.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"step_number": {
				Type:     "integer",
				Desc:     "The step number (1-indexed)",
				Required: true,
			},
			"completed": {
				Type:     "boolean",
				Desc:     "Whether the step is completed (default: true)",
				Required: false,
			},
		}),
	}, nil
}

type updatePlanStepArgs struct {
	StepNumber int   `json:"step_number"`
	Completed  *bool `json:"completed,omitempty"`
}

func (t *UpdatePlanStepTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	threadID, err := requireThread(ctx)
	if err != nil {
		return "", err
	}
	var args updatePlanStepArgs
	if err := parseArgs(argumentsInJSON, &args); err != nil {
		return "", err
	}
	completed := true
	if args.Completed != nil {
		completed = *args.Completed
	}

	active, err := t.plans.ActivePlanFor(ctx, threadID)
	if err != nil {
		return toolResult("", err)
	}
	if active == nil {
		return "No active plan found. Create a plan first.", nil
	}

	p, err := t.plans.UpdateStep(ctx, planning.UpdateStepRequest{PlanID: active.ID, StepNumber: args.StepNumber, Completed: completed})
	if err != nil {
		return toolResult("", err)
	}
	state := "incomplete"
	if completed {
		state = "completed"
	}
	msg := fmt.Sprintf("Step %d marked as %s", args.StepNumber, state)
	if p.Status == planning.PlanStatusCompleted {
		msg += ". All steps done; plan completed."
	}
	return msg, nil
}

// ViewPlanTool renders the active plan.
type ViewPlanTool struct {
	plans *planning.Service
}

func (t *ViewPlanTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name:        "view_plan",
		Desc:        "View the active plan of this conversation and its progress.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *ViewPlanTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	threadID, err := requireThread(ctx)
	if err != nil {
		return "", err
	}
	p, err := t.plans.ActivePlanFor(ctx, threadID)
	if err != nil {
		return toolResult("", err)
	}
	if p == nil {
		return "No active plan found.", nil
	}
	return RenderPlan(p), nil
}

// RenderPlan formats a plan as a compact checklist.
func RenderPlan(p *planning.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\nStatus: %s (%.0f%% complete)\n\nSteps:\n", p.Title, p.Status, p.CompletionPercentage())
	for _, st := range p.Steps {
		mark := "[ ]"
		if st.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(&sb, "%s %d. %s\n", mark, st.StepNumber, st.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// AddPlanStepTool appends a step to the active plan.
type AddPlanStepTool struct {
	plans *planning.Service
}

func (t *AddPlanStepTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "add_plan_step",
		Desc: "Append a new step to the end of the active plan.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"step": {
				Type:     "string",
				Desc:     "The step description",
				Required: true,
			},
		}),
	}, nil
}

type addPlanStepArgs struct {
	Step string `json:"step"`
}

func (t *AddPlanStepTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	threadID, err := requireThread(ctx)
	if err != nil {
		return "", err
	}
	var args addPlanStepArgs
	if err := parseArgs(argumentsInJSON, &args); err != nil {
		return "", err
	}
	active, err := t.plans.ActivePlanFor(ctx, threadID)
	if err != nil {
		return toolResult("", err)
	}
	if active == nil {
		return "No active plan found. Create a plan first.", nil
	}
	p, err := t.plans.AddStep(ctx, active.ID, args.Step)
	if err != nil {
		return toolResult("", err)
	}
	return fmt.Sprintf("Added step %d: %s", len(p.Steps), strings.TrimSpace(args.Step)), nil
}

// SaveNoteTool stores a long-term note tied to the current thread.
type SaveNoteTool struct {
	notes *notes.Service
}

func (t *SaveNoteTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "save_note",
		Desc: "Save information worth remembering across conversations.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"title":   {Type: "string", Desc: "Short title", Required: true},
			"content": {Type: "string", Desc: "The information to remember", Required: true},
			"tags": {
				Type:     "array",
				ElemInfo: &schema.ParameterInfo{Type: "string"},
				Desc:     "Optional tags for later retrieval",
			},
		}),
	}, nil
}

type saveNoteArgs struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`
}

func (t *SaveNoteTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	threadID, _ := ThreadIDFrom(ctx)
	var args saveNoteArgs
	if err := parseArgs(argumentsInJSON, &args); err != nil {
		return "", err
	}
	n, err := t.notes.SaveNote(ctx, notes.SaveNoteRequest{Title: args.Title, Content: args.Content, ThreadID: threadID, Tags: args.Tags})
	if err != nil {
		return toolResult("", err)
	}
	return fmt.Sprintf("Saved note %s: %s", n.ID, n.Title), nil
}

// SearchNotesTool finds notes by text.
type SearchNotesTool struct {
	notes *notes.Service
}

func (t *SearchNotesTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "search_notes",
		Desc: "Search saved notes by words in their title or content.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: "string", Desc: "Text to look for", Required: true},
		}),
	}, nil
}

type searchNotesArgs struct {
	Query string `json:"query"`
}

func (t *SearchNotesTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	var args searchNotesArgs
	if err := parseArgs(argumentsInJSON, &args); err != nil {
		return "", err
	}
	found, err := t.notes.RetrieveNotes(ctx, notes.RetrieveNotesRequest{Query: args.Query})
	if err != nil {
		return toolResult("", err)
	}
	if len(found) == 0 {
		return "No notes found.", nil
	}
	var sb strings.Builder
	for _, n := range found {
		fmt.Fprintf(&sb, "- %s: %s\n", n.Title, n.Content)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// Ensure interface compliance
var (
	_ tool.InvokableTool = (*CreatePlanTool)(nil)
	_ tool.InvokableTool = (*UpdatePlanStepTool)(nil)
	_ tool.InvokableTool = (*ViewPlanTool)(nil)
	_ tool.InvokableTool = (*AddPlanStepTool)(nil)
	_ tool.InvokableTool = (*SaveNoteTool)(nil)
	_ tool.InvokableTool = (*SearchNotesTool)(nil)
)
