package server

import (
	"time"

	"github.com/josephgoksu/deepagent/internal/planning"
)

// APIError is the body of every non-2xx JSON response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// APIErrorBody wraps APIError as {"error": {...}}.
type APIErrorBody struct {
	Error APIError `json:"error"`
}

// CreateThreadRequest is the payload for POST /conversations. A blank id generates one.
type CreateThreadRequest struct {
	ThreadID string `json:"thread_id"`
}

// RenameThreadRequest is the payload for PUT /conversations/{thread_id}.
type RenameThreadRequest struct {
	Title string `json:"title"`
}

// UpdateStepBody is the payload for PUT /plans/{plan_id}/steps.
type UpdateStepBody struct {
	StepNumber int   `json:"step_number"`
	Completed  *bool `json:"completed"` // defaults to true
}

// AddStepRequest is the payload for POST /plans/{plan_id}/steps.
type AddStepRequest struct {
	Description string `json:"description"`
}

// ActivePlanResponse is returned by GET /plans/active/{thread_id} when the thread has no active plan.
type ActivePlanResponse struct {
	Message string                 `json:"message"`
	Plan    *planning.PlanResponse `json:"plan"`
}

// DeleteResponse confirms a DELETE of a thread or plan.
type DeleteResponse struct {
	Message  string `json:"message"`
	ThreadID string `json:"thread_id,omitempty"`
	PlanID   string `json:"plan_id,omitempty"`
}

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string    `json:"status"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}
