package planning

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/josephgoksu/deepagent/internal/apperr"
)

var validate = validator.New()

// CreatePlanRequest is the input of Service.CreatePlan.
type CreatePlanRequest struct {
	ThreadID string   `json:"thread_id" yaml:"thread_id" validate:"required"`
	Title    string   `json:"title" yaml:"title" validate:"required"`
	Steps    []string `json:"steps" yaml:"steps" validate:"required,min=1"`
}

// Validate trims fields and rejects blank thread, title or step text.
func (r *CreatePlanRequest) Validate() error {
	r.ThreadID = strings.TrimSpace(r.ThreadID)
	r.Title = strings.TrimSpace(r.Title)
	if err := structError(validate.Struct(r)); err != nil {
		return err
	}
	for i, s := range r.Steps {
		if strings.TrimSpace(s) == "" {
			return apperr.NewValidation("steps", fmt.Sprintf("step %d cannot be empty", i+1))
		}
	}
	return nil
}

// UpdateStepRequest is the input of Service.UpdateStep.
type UpdateStepRequest struct {
	PlanID     string `json:"plan_id" validate:"required"`
	StepNumber int    `json:"step_number" validate:"min=1"`
	Completed  bool   `json:"completed"`
}

// Validate rejects a blank plan id or a step number below 1.
func (r *UpdateStepRequest) Validate() error {
	r.PlanID = strings.TrimSpace(r.PlanID)
	return structError(validate.Struct(r))
}

// structError converts validator output into a ValidationError naming the first failing field.
func structError(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.NewValidation("", err.Error())
	}
	fe := verrs[0]
	field := jsonName(fe.Field())
	switch fe.Tag() {
	case "required":
		if field == "steps" {
			return apperr.NewValidation(field, "steps cannot be empty")
		}
		return apperr.NewValidation(field, field+" cannot be empty")
	case "min":
		switch field {
		case "step_number":
			return apperr.NewValidation(field, "step_number must be >= 1")
		case "steps":
			return apperr.NewValidation(field, "steps cannot be empty")
		}
		return apperr.NewValidation(field, field+" must have at least "+fe.Param()+" item(s)")
	default:
		return apperr.NewValidation(field, fmt.Sprintf("%s failed %s validation", field, fe.Tag()))
	}
}

func jsonName(field string) string {
	switch field {
	case "ThreadID":
		return "thread_id"
	case "PlanID":
		return "plan_id"
	case "StepNumber":
		return "step_number"
	default:
		return strings.ToLower(field)
	}
}

// StepDTO is the wire form of a Step.
type StepDTO struct {
	StepNumber  int        `json:"step_number" yaml:"step_number"`
	Description string     `json:"description" yaml:"description"`
	Completed   bool       `json:"completed" yaml:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// PlanResponse is the wire form of a Plan.
type PlanResponse struct {
	PlanID               string     `json:"plan_id" yaml:"plan_id"`
	ThreadID             string     `json:"thread_id" yaml:"thread_id"`
	Title                string     `json:"title" yaml:"title"`
	Status               PlanStatus `json:"status" yaml:"status"`
	Steps                []StepDTO  `json:"steps" yaml:"steps"`
	CompletionPercentage float64    `json:"completion_percentage" yaml:"completion_percentage"`
	CreatedAt            time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" yaml:"updated_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// NewPlanResponse projects p. A nil plan yields nil.
func NewPlanResponse(p *Plan) *PlanResponse {
	if p == nil {
		return nil
	}
	steps := make([]StepDTO, 0, len(p.Steps))
	for _, s := range p.Steps {
		steps = append(steps, StepDTO{
			StepNumber:  s.StepNumber,
			Description: s.Description,
			Completed:   s.Completed,
			CompletedAt: s.CompletedAt,
		})
	}
	return &PlanResponse{
		PlanID:               p.ID,
		ThreadID:             p.ThreadID,
		Title:                p.Title,
		Status:               p.Status,
		Steps:                steps,
		CompletionPercentage: p.CompletionPercentage(),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
		CompletedAt:          p.CompletedAt,
	}
}

// NewPlanResponses projects a list of plans.
func NewPlanResponses(plans []*Plan) []*PlanResponse {
	out := make([]*PlanResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, NewPlanResponse(p))
	}
	return out
}
