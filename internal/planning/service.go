package planning

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// Service holds the planning use cases. Each call loads, mutates and persists
// one plan; there is no state shared between calls beyond the repository.
type Service struct {
	repo    Repository
	logger  *slog.Logger
	tracker EventTracker
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracker sets the lifecycle event sink. Defaults to a no-op.
func WithTracker(t EventTracker) Option {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// NewService returns a Service backed by repo.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, logger: slog.Default(), tracker: noopTracker{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePlan validates req, rejects a second active plan for the thread and stores a new plan.
func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest) (*PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	active, err := s.repo.HasActivePlan(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ActiveConflict(req.ThreadID)
	}

	p, err := NewPlan(req.ThreadID, req.Title, req.Steps)
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreatePlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan created", "plan_id", created.ID, "thread_id", created.ThreadID, "steps", len(created.Steps))
	s.tracker.Track(EventPlanCreated, map[string]any{"thread_id": created.ThreadID, "plan_id": created.ID, "steps": len(created.Steps)})
	return NewPlanResponse(created), nil
}

// UpdateStep sets the completion state of one step and persists the plan.
func (s *Service) UpdateStep(ctx context.Context, req UpdateStepRequest) (*PlanResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.loadPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if p.GetStep(req.StepNumber) == nil {
		return nil, apperr.NewNotFound("step", stepKey(req.PlanID, req.StepNumber))
	}

	wasActive := p.IsActive()
	if req.Completed {
		_, err = p.CompleteStep(req.StepNumber)
	} else {
		_, err = p.SetStepIncomplete(req.StepNumber)
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdatePlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan step updated",
		"plan_id", updated.ID,
		"step_number", req.StepNumber,
		"completed", req.Completed,
		"completion", updated.CompletionPercentage())
	s.tracker.Track(EventPlanStepUpdated, map[string]any{"thread_id": updated.ThreadID, "plan_id": updated.ID, "completed": req.Completed})
	if wasActive && updated.Status == PlanStatusCompleted {
		s.logger.Info("plan auto-completed", "plan_id", updated.ID, "thread_id", updated.ThreadID)
		s.tracker.Track(EventPlanCompleted, map[string]any{"thread_id": updated.ThreadID, "plan_id": updated.ID, "auto": true, "steps": len(updated.Steps)})
	}
	return NewPlanResponse(updated), nil
}

// GetActivePlan returns the thread's active plan, or nil when there is none.
func (s *Service) GetActivePlan(ctx context.Context, threadID string) (*PlanResponse, error) {
	p, err := s.ActivePlanFor(ctx, threadID)
	if err != nil || p == nil {
		return nil, err
	}
	return NewPlanResponse(p), nil
}

// ActivePlanFor returns the domain plan instead of its projection.
func (s *Service) ActivePlanFor(ctx context.Context, threadID string) (*Plan, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	return s.repo.GetActivePlanByThread(ctx, threadID)
}

// CompletePlan completes a plan explicitly. Precondition failures from the
// aggregate are returned as they are.
func (s *Service) CompletePlan(ctx context.Context, planID string) (*PlanResponse, error) {
	p, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := p.MarkCompleted(); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdatePlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan completed", "plan_id", updated.ID, "thread_id", updated.ThreadID)
	s.tracker.Track(EventPlanCompleted, map[string]any{"thread_id": updated.ThreadID, "plan_id": updated.ID, "auto": false, "steps": len(updated.Steps)})
	return NewPlanResponse(updated), nil
}

// CancelPlan abandons an active plan.
func (s *Service) CancelPlan(ctx context.Context, planID string) (*PlanResponse, error) {
	p, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(); err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdatePlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan cancelled", "plan_id", updated.ID, "thread_id", updated.ThreadID)
	s.tracker.Track(EventPlanCancelled, map[string]any{"thread_id": updated.ThreadID, "plan_id": updated.ID, "steps": len(updated.Steps)})
	return NewPlanResponse(updated), nil
}

// AddStep appends a step to an active plan.
func (s *Service) AddStep(ctx context.Context, planID, description string) (*PlanResponse, error) {
	if strings.TrimSpace(description) == "" {
		return nil, apperr.NewValidation("description", "step description cannot be empty")
	}
	p, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	step, err := p.AddStep(description)
	if err != nil {
		return nil, err
	}
	updated, err := s.repo.UpdatePlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan step added", "plan_id", updated.ID, "step_number", step.StepNumber)
	s.tracker.Track(EventPlanStepAdded, map[string]any{"thread_id": updated.ThreadID, "plan_id": updated.ID, "steps": len(updated.Steps)})
	return NewPlanResponse(updated), nil
}

// GetPlan returns a plan by id.
func (s *Service) GetPlan(ctx context.Context, planID string) (*PlanResponse, error) {
	p, err := s.loadPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return NewPlanResponse(p), nil
}

// ListPlans returns the thread's plans, newest first. An empty status lists all.
func (s *Service) ListPlans(ctx context.Context, threadID, status string) ([]*PlanResponse, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return nil, apperr.NewValidation("thread_id", "thread_id cannot be empty")
	}
	var filter *PlanStatus
	if status != "" {
		st, err := ParsePlanStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}
	plans, err := s.repo.GetPlansByThread(ctx, threadID, filter)
	if err != nil {
		return nil, err
	}
	return NewPlanResponses(plans), nil
}

// DeletePlan removes a plan and its steps.
func (s *Service) DeletePlan(ctx context.Context, planID string) error {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return apperr.NewValidation("plan_id", "plan_id cannot be empty")
	}
	deleted, err := s.repo.DeletePlan(ctx, planID)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NewNotFound("plan", planID)
	}

	s.logger.Info("plan deleted", "plan_id", planID)
	s.tracker.Track(EventPlanDeleted, map[string]any{"plan_id": planID})
	return nil
}

func (s *Service) loadPlan(ctx context.Context, planID string) (*Plan, error) {
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, apperr.NewValidation("plan_id", "plan_id cannot be empty")
	}
	p, err := s.repo.GetPlanByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NewNotFound("plan", planID)
	}
	return p, nil
}

// ActiveConflict is the error returned when threadID already has an active plan.
func ActiveConflict(threadID string) error {
	return apperr.NewConflict("plan", threadID, "thread "+threadID+" already has an active plan")
}

// StaleConflict is the error returned when planID changed after it was loaded.
// The caller should reload the plan and retry.
func StaleConflict(planID string) error {
	return apperr.NewConflict("plan", planID, "plan "+planID+" was modified concurrently; reload and retry")
}

func stepKey(planID string, number int) string {
	return planID + "#" + strconv.Itoa(number)
}
