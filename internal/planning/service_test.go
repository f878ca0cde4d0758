package planning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-process Repository used to exercise the use cases.
type memRepo struct {
	mu      sync.Mutex
	plans   map[string]*Plan
	seq     int
	calls   []string
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{plans: make(map[string]*Plan)}
}

func (r *memRepo) record(op string) error {
	r.calls = append(r.calls, op)
	return r.failErr
}

func clonePlan(p *Plan) *Plan {
	c := *p
	c.Steps = make([]*Step, len(p.Steps))
	for i, s := range p.Steps {
		sc := *s
		c.Steps[i] = &sc
	}
	return &c
}

func (r *memRepo) CreatePlan(ctx context.Context, p *Plan) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("create"); err != nil {
		return nil, err
	}
	for _, existing := range r.plans {
		if existing.ThreadID == p.ThreadID && existing.IsActive() {
			return nil, ActiveConflict(p.ThreadID)
		}
	}
	r.seq++
	p.ID = fmt.Sprintf("plan-%d", r.seq)
	for i, s := range p.Steps {
		s.ID = fmt.Sprintf("%s-step-%d", p.ID, i+1)
	}
	r.plans[p.ID] = clonePlan(p)
	return clonePlan(p), nil
}

func (r *memRepo) GetPlanByID(ctx context.Context, id string) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("get"); err != nil {
		return nil, err
	}
	p, ok := r.plans[id]
	if !ok {
		return nil, nil
	}
	return clonePlan(p), nil
}

func (r *memRepo) GetActivePlanByThread(ctx context.Context, threadID string) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.ThreadID == threadID && p.IsActive() {
			return clonePlan(p), nil
		}
	}
	return nil, nil
}

func (r *memRepo) GetPlansByThread(ctx context.Context, threadID string, status *PlanStatus) ([]*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Plan
	for _, p := range r.plans {
		if p.ThreadID != threadID || (status != nil && p.Status != *status) {
			continue
		}
		out = append(out, clonePlan(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memRepo) UpdatePlan(ctx context.Context, p *Plan) (*Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("update"); err != nil {
		return nil, err
	}
	r.plans[p.ID] = clonePlan(p)
	return clonePlan(p), nil
}

func (r *memRepo) UpdateStep(ctx context.Context, planID string, s *Step) (*Step, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.plans[planID]
	sc := *s
	p.Steps[s.StepNumber-1] = &sc
	return s, nil
}

func (r *memRepo) DeletePlan(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return false, nil
	}
	delete(r.plans, id)
	return true, nil
}

func (r *memRepo) PlanExists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.plans[id]
	return ok, nil
}

func (r *memRepo) HasActivePlan(ctx context.Context, threadID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.record("has_active"); err != nil {
		return false, err
	}
	for _, p := range r.plans {
		if p.ThreadID == threadID && p.IsActive() {
			return true, nil
		}
	}
	return false, nil
}

type recordingTracker struct {
	events []string
}

func (t *recordingTracker) Track(event string, _ map[string]any) {
	t.events = append(t.events, event)
}

func TestService_CreatePlanValidatesBeforeStorage(t *testing.T) {
	tests := []struct {
		name    string
		req     CreatePlanRequest
		message string
	}{
		{"empty title", CreatePlanRequest{ThreadID: "t1", Title: " ", Steps: []string{"a"}}, "title cannot be empty"},
		{"no steps", CreatePlanRequest{ThreadID: "t1", Title: "x"}, "steps cannot be empty"},
		{"empty step list", CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{}}, "steps cannot be empty"},
		{"blank step", CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a", ""}}, "step 2 cannot be empty"},
		{"blank thread", CreatePlanRequest{Title: "x", Steps: []string{"a"}}, "thread_id cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			svc := NewService(repo)

			_, err := svc.CreatePlan(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Empty(t, repo.calls, "storage must not be touched")
		})
	}
}

func TestService_ShipFeatureScenario(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	tracker := &recordingTracker{}
	svc := NewService(repo, WithTracker(tracker))

	resp, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "Ship feature", Steps: []string{"write code", "write tests"}})
	require.NoError(t, err)
	assert.Equal(t, PlanStatusActive, resp.Status)
	assert.Equal(t, 0.0, resp.CompletionPercentage)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, 1, resp.Steps[0].StepNumber)
	assert.Equal(t, 2, resp.Steps[1].StepNumber)

	_, err = svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "Another", Steps: []string{"x"}})
	var conflict *apperr.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "t1", conflict.Key)
	assert.Contains(t, err.Error(), "t1")

	resp, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 1, Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 50.0, resp.CompletionPercentage)
	assert.Equal(t, PlanStatusActive, resp.Status)

	resp, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 2, Completed: true})
	require.NoError(t, err)
	assert.Equal(t, 100.0, resp.CompletionPercentage)
	assert.Equal(t, PlanStatusCompleted, resp.Status)
	assert.NotNil(t, resp.CompletedAt)

	active, err := svc.GetActivePlan(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, active)

	next, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "Next", Steps: []string{"x"}})
	require.NoError(t, err)
	assert.NotEqual(t, resp.PlanID, next.PlanID)

	assert.Contains(t, tracker.events, EventPlanCreated)
	assert.Contains(t, tracker.events, EventPlanCompleted)
}

func TestService_UpdateStepNotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	_, err := svc.UpdateStep(ctx, UpdateStepRequest{PlanID: "plan-missing", StepNumber: 1, Completed: true})
	assert.True(t, apperr.IsNotFound(err))

	resp, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a"}})
	require.NoError(t, err)

	_, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 9, Completed: true})
	assert.True(t, apperr.IsNotFound(err))

	_, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 0, Completed: true})
	assert.True(t, apperr.IsValidation(err))
}

func TestService_UpdateStepReopen(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	resp, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 1, Completed: true})
	require.NoError(t, err)
	resp, err = svc.UpdateStep(ctx, UpdateStepRequest{PlanID: resp.PlanID, StepNumber: 1, Completed: false})
	require.NoError(t, err)
	assert.False(t, resp.Steps[0].Completed)
	assert.Nil(t, resp.Steps[0].CompletedAt)
}

func TestService_CompletePlanPassesThroughPreconditions(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	resp, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a", "b"}})
	require.NoError(t, err)

	_, err = svc.CompletePlan(ctx, resp.PlanID)
	assert.True(t, apperr.IsInvalidState(err))

	got, err := svc.GetPlan(ctx, resp.PlanID)
	require.NoError(t, err)
	assert.Equal(t, PlanStatusActive, got.Status)

	_, err = svc.CompletePlan(ctx, "plan-missing")
	assert.True(t, apperr.IsNotFound(err))
}

func TestService_CancelAddAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	resp, err := svc.CreatePlan(ctx, CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a"}})
	require.NoError(t, err)

	resp, err = svc.AddStep(ctx, resp.PlanID, "b")
	require.NoError(t, err)
	require.Len(t, resp.Steps, 2)
	assert.Equal(t, 2, resp.Steps[1].StepNumber)

	resp, err = svc.CancelPlan(ctx, resp.PlanID)
	require.NoError(t, err)
	assert.Equal(t, PlanStatusCancelled, resp.Status)
	assert.Nil(t, resp.CompletedAt)

	_, err = svc.AddStep(ctx, resp.PlanID, "c")
	assert.True(t, apperr.IsInvalidState(err))

	plans, err := svc.ListPlans(ctx, "t1", "cancelled")
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	require.NoError(t, svc.DeletePlan(ctx, resp.PlanID))
	assert.True(t, apperr.IsNotFound(svc.DeletePlan(ctx, resp.PlanID)))
}

func TestService_RepositoryErrorsPropagate(t *testing.T) {
	repo := newMemRepo()
	repo.failErr = apperr.NewRepository("has active plan", context.DeadlineExceeded)
	svc := NewService(repo)

	_, err := svc.CreatePlan(context.Background(), CreatePlanRequest{ThreadID: "t1", Title: "x", Steps: []string{"a"}})
	assert.True(t, apperr.IsRepository(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
