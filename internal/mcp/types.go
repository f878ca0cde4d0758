// Package mcp provides types and handlers for the MCP server.
package mcp

// PlanAction defines the valid actions for the unified plan tool.
type PlanAction string

const (
	PlanActionCreate   PlanAction = "create"
	PlanActionView     PlanAction = "view"
	PlanActionStep     PlanAction = "step"
	PlanActionAdd      PlanAction = "add"
	PlanActionComplete PlanAction = "complete"
	PlanActionCancel   PlanAction = "cancel"
	PlanActionList     PlanAction = "list"
)

// ValidPlanActions returns all valid plan actions.
func ValidPlanActions() []PlanAction {
	return []PlanAction{
		PlanActionCreate, PlanActionView, PlanActionStep, PlanActionAdd,
		PlanActionComplete, PlanActionCancel, PlanActionList,
	}
}

// IsValid checks if the action is a valid plan action.
func (a PlanAction) IsValid() bool {
	for _, v := range ValidPlanActions() {
		if a == v {
			return true
		}
	}
	return false
}

// NoteAction defines the valid actions for the unified notes tool.
type NoteAction string

const (
	NoteActionSave   NoteAction = "save"
	NoteActionSearch NoteAction = "search"
)

// IsValid checks if the action is a valid notes action.
func (a NoteAction) IsValid() bool {
	return a == NoteActionSave || a == NoteActionSearch
}

// PlanToolParams defines the parameters for the unified plan tool.
type PlanToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: create, view, step, add, complete, cancel, list
	Action PlanAction `json:"action"`

	// ThreadID scopes the call to one conversation.
	// Required for every action.
	ThreadID string `json:"thread_id"`

	// Title is the plan title.
	// Required for: create
	Title string `json:"title,omitempty"`

	// Steps are the ordered step descriptions.
	// Required for: create
	Steps []string `json:"steps,omitempty"`

	// StepNumber is the 1-based step to update.
	// Required for: step
	StepNumber int `json:"step_number,omitempty"`

	// Completed sets the step state.
	// Optional for: step (default: true)
	Completed *bool `json:"completed,omitempty"`

	// Description is the text of a new step.
	// Required for: add
	Description string `json:"description,omitempty"`

	// Status filters the listing.
	// Optional for: list
	Status string `json:"status,omitempty"`
}

// NoteToolParams defines the parameters for the unified notes tool.
type NoteToolParams struct {
	// Action specifies which operation to perform.
	// Required. One of: save, search
	Action NoteAction `json:"action"`

	Title    string   `json:"title,omitempty"`
	Content  string   `json:"content,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	ThreadID string   `json:"thread_id,omitempty"`

	// Query, Tag or ThreadID select notes for search, in that priority.
	Query string `json:"query,omitempty"`
	Tag   string `json:"tag,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

// ToolResult is the response from a unified tool.
type ToolResult struct {
	Action  string `json:"action"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
