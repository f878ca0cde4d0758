// Package planning implements the thread-scoped Plan/Step lifecycle: the aggregate,
// its status machine, the repository contract and the use cases built on them.
package planning

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// Plan is the task breakdown for one conversation thread.
//
// Steps are numbered 1..n in slice order. A thread has at most one ACTIVE plan;
// the repository enforces that. Completion of the last pending step completes the plan.
type Plan struct {
	ID          string     `json:"id"`
	ThreadID    string     `json:"thread_id"`
	Title       string     `json:"title"`
	Status      PlanStatus `json:"status"`
	Steps       []*Step    `json:"steps"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Version is the stored revision the plan was loaded at. UpdatePlan
	// rejects a write whose Version no longer matches storage.
	Version int64 `json:"-"`
}

// NewPlan builds an ACTIVE plan with one step per description, numbered from 1.
func NewPlan(threadID, title string, descriptions []string) (*Plan, error) {
	steps := make([]*Step, 0, len(descriptions))
	for i, d := range descriptions {
		s, err := NewStep(i+1, d)
		if err != nil {
			return nil, apperr.NewValidation("steps", fmt.Sprintf("step %d cannot be empty", i+1))
		}
		steps = append(steps, s)
	}

	ts := now()
	p := &Plan{
		ThreadID:  strings.TrimSpace(threadID),
		Title:     strings.TrimSpace(title),
		Status:    PlanStatusActive,
		Steps:     steps,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// RestorePlan rebuilds a plan loaded from storage and checks its invariants.
func RestorePlan(p *Plan) (*Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks identity fields, status, step numbering and completion consistency.
func (p *Plan) Validate() error {
	if p.ThreadID == "" {
		return apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	if p.Title == "" {
		return apperr.NewValidation("title", "title cannot be empty")
	}
	if !p.Status.IsValid() {
		return apperr.NewValidation("status", "invalid plan status: "+string(p.Status))
	}
	for i, s := range p.Steps {
		if s.StepNumber != i+1 {
			return apperr.NewValidation("steps", fmt.Sprintf("step numbering is not contiguous: position %d has step_number %d", i+1, s.StepNumber))
		}
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if p.Status == PlanStatusCompleted && !p.AreAllStepsCompleted() {
		return apperr.NewValidation("status", "completed plan has pending steps")
	}
	return nil
}

// AddStep appends a step numbered len(steps)+1.
func (p *Plan) AddStep(description string) (*Step, error) {
	if err := p.requireModifiable("add step"); err != nil {
		return nil, err
	}
	s, err := NewStep(len(p.Steps)+1, description)
	if err != nil {
		return nil, err
	}
	p.Steps = append(p.Steps, s)
	p.touch()
	return s, nil
}

// GetStep returns the step at number, or nil when number is out of range.
func (p *Plan) GetStep(number int) *Step {
	if number < 1 || number > len(p.Steps) {
		return nil
	}
	return p.Steps[number-1]
}

// CompleteStep marks a step done. It returns false when the step does not exist.
// Completing the last pending step moves the plan to COMPLETED.
func (p *Plan) CompleteStep(number int) (bool, error) {
	if err := p.requireModifiable("complete step"); err != nil {
		return false, err
	}
	s := p.GetStep(number)
	if s == nil {
		return false, nil
	}
	s.MarkCompleted()
	p.touch()

	if p.AreAllStepsCompleted() {
		if err := p.MarkCompleted(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// SetStepIncomplete reopens a step. It returns false when the step does not exist.
func (p *Plan) SetStepIncomplete(number int) (bool, error) {
	if err := p.requireModifiable("reopen step"); err != nil {
		return false, err
	}
	s := p.GetStep(number)
	if s == nil {
		return false, nil
	}
	s.MarkIncomplete()
	p.touch()
	return true, nil
}

// AreAllStepsCompleted is true when no step is pending, including for zero steps.
func (p *Plan) AreAllStepsCompleted() bool {
	for _, s := range p.Steps {
		if !s.Completed {
			return false
		}
	}
	return true
}

// CompletionPercentage is the share of completed steps in [0, 100]; 100 for zero steps.
func (p *Plan) CompletionPercentage() float64 {
	if len(p.Steps) == 0 {
		return 100.0
	}
	return float64(len(p.CompletedSteps())) / float64(len(p.Steps)) * 100.0
}

// PendingSteps returns the steps not yet completed, in order.
func (p *Plan) PendingSteps() []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if !s.Completed {
			out = append(out, s)
		}
	}
	return out
}

// CompletedSteps returns the completed steps, in order.
func (p *Plan) CompletedSteps() []*Step {
	var out []*Step
	for _, s := range p.Steps {
		if s.Completed {
			out = append(out, s)
		}
	}
	return out
}

// MarkCompleted moves an ACTIVE plan with no pending steps to COMPLETED.
func (p *Plan) MarkCompleted() error {
	if err := p.transition(PlanStatusCompleted); err != nil {
		return err
	}
	if !p.AreAllStepsCompleted() {
		return apperr.NewInvalidState("cannot complete plan %s: %d of %d steps pending", p.ID, len(p.PendingSteps()), len(p.Steps))
	}
	t := now()
	p.Status = PlanStatusCompleted
	p.CompletedAt = &t
	p.UpdatedAt = t
	return nil
}

// Cancel moves an ACTIVE plan to CANCELLED. CompletedAt stays unset.
func (p *Plan) Cancel() error {
	if err := p.transition(PlanStatusCancelled); err != nil {
		return err
	}
	p.Status = PlanStatusCancelled
	p.touch()
	return nil
}

// IsActive reports whether the plan is in progress.
func (p *Plan) IsActive() bool {
	return p.Status == PlanStatusActive
}

func (p *Plan) transition(target PlanStatus) error {
	if !p.Status.CanTransitionTo(target) {
		return apperr.NewInvalidState("plan %s cannot move from %s to %s", p.ID, p.Status, target)
	}
	return nil
}

func (p *Plan) requireModifiable(op string) error {
	if !p.Status.CanBeModified() {
		return apperr.NewInvalidState("cannot %s: plan %s is %s", op, p.ID, p.Status)
	}
	return nil
}

func (p *Plan) touch() {
	p.UpdatedAt = now()
}
