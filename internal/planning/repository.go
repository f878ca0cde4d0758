package planning

import "context"

// Repository persists plans and their steps.
//
// Lookups return (nil, nil) or false when nothing matches. Storage failures,
// including context deadlines, are returned as *apperr.RepositoryError.
type Repository interface {
	// CreatePlan assigns ids to the plan and its steps and stores them.
	// It returns *apperr.ConflictError when the thread already has an active plan;
	// the check and the insert are atomic.
	CreatePlan(ctx context.Context, p *Plan) (*Plan, error)

	GetPlanByID(ctx context.Context, id string) (*Plan, error)

	// GetActivePlanByThread returns the most recently created active plan.
	GetActivePlanByThread(ctx context.Context, threadID string) (*Plan, error)

	// GetPlansByThread lists plans newest first, optionally filtered by status.
	GetPlansByThread(ctx context.Context, threadID string, status *PlanStatus) ([]*Plan, error)

	// UpdatePlan writes the plan row and its full step collection in one transaction.
	// It returns *apperr.ConflictError when the stored plan no longer has p.Version.
	UpdatePlan(ctx context.Context, p *Plan) (*Plan, error)

	UpdateStep(ctx context.Context, planID string, s *Step) (*Step, error)

	// DeletePlan removes the plan and its steps. It returns false when the plan is absent.
	DeletePlan(ctx context.Context, id string) (bool, error)

	PlanExists(ctx context.Context, id string) (bool, error)
	HasActivePlan(ctx context.Context, threadID string) (bool, error)
}

// EventTracker receives plan lifecycle events. Properties carry raw thread_id and
// plan_id values; telemetry.Client pseudonymizes them before sending.
type EventTracker interface {
	Track(event string, properties map[string]any)
}

type noopTracker struct{}

func (noopTracker) Track(string, map[string]any) {}

// Plan lifecycle event names.
const (
	EventPlanCreated     = "plan_created"
	EventPlanStepUpdated = "plan_step_updated"
	EventPlanStepAdded   = "plan_step_added"
	EventPlanCompleted   = "plan_completed"
	EventPlanCancelled   = "plan_cancelled"
	EventPlanDeleted     = "plan_deleted"
)
