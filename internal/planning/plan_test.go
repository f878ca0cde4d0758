package planning

import (
	"testing"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlan(t *testing.T, steps ...string) *Plan {
	t.Helper()
	p, err := NewPlan("t1", "Ship feature", steps)
	require.NoError(t, err)
	p.ID = "plan-test"
	return p
}

func assertContiguous(t *testing.T, p *Plan) {
	t.Helper()
	for i, s := range p.Steps {
		assert.Equal(t, i+1, s.StepNumber, "step at position %d", i)
		assert.Equal(t, s.Completed, s.CompletedAt != nil, "completed_at mismatch at step %d", s.StepNumber)
	}
}

func TestPlanStatus_Transitions(t *testing.T) {
	all := []PlanStatus{PlanStatusActive, PlanStatusCompleted, PlanStatusCancelled}

	tests := []struct {
		from PlanStatus
		to   PlanStatus
		want bool
	}{
		{PlanStatusActive, PlanStatusCompleted, true},
		{PlanStatusActive, PlanStatusCancelled, true},
		{PlanStatusActive, PlanStatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to), "%s -> %s", tt.from, tt.to)
	}

	for _, terminal := range []PlanStatus{PlanStatusCompleted, PlanStatusCancelled} {
		assert.True(t, terminal.IsTerminal())
		assert.False(t, terminal.CanBeModified())
		for _, target := range all {
			assert.False(t, terminal.CanTransitionTo(target), "%s -> %s", terminal, target)
		}
	}
	assert.True(t, PlanStatusActive.CanBeModified())
	assert.False(t, PlanStatusActive.IsTerminal())
}

func TestParsePlanStatus(t *testing.T) {
	st, err := ParsePlanStatus(" Active ")
	require.NoError(t, err)
	assert.Equal(t, PlanStatusActive, st)

	_, err = ParsePlanStatus("archived")
	assert.True(t, apperr.IsValidation(err))
}

func TestNewStep_Validation(t *testing.T) {
	tests := []struct {
		name        string
		number      int
		description string
		wantErr     bool
	}{
		{"valid", 1, "write code", false},
		{"zero number", 0, "write code", true},
		{"negative number", -2, "write code", true},
		{"blank description", 1, "   ", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStep(tt.number, tt.description)
			if tt.wantErr {
				assert.True(t, apperr.IsValidation(err))
				assert.Nil(t, s)
				return
			}
			require.NoError(t, err)
			assert.False(t, s.Completed)
			assert.Nil(t, s.CompletedAt)
		})
	}
}

func TestStep_MarkCompletedIdempotent(t *testing.T) {
	s, err := NewStep(1, "write code")
	require.NoError(t, err)

	s.MarkCompleted()
	require.True(t, s.Completed)
	require.NotNil(t, s.CompletedAt)
	first := *s.CompletedAt

	time.Sleep(time.Millisecond)
	s.MarkCompleted()
	assert.Equal(t, first, *s.CompletedAt, "second call must not move the timestamp")

	s.MarkIncomplete()
	assert.False(t, s.Completed)
	assert.Nil(t, s.CompletedAt)

	s.MarkIncomplete()
	assert.False(t, s.Completed)
	assert.Nil(t, s.CompletedAt)
}

func TestStep_DescriptionPreview(t *testing.T) {
	s := &Step{StepNumber: 1, Description: "abcdefghij"}
	assert.Equal(t, "abcde...", s.DescriptionPreview(5))
	assert.Equal(t, "abcdefghij", s.DescriptionPreview(0))
}

func TestNewPlan_Validation(t *testing.T) {
	tests := []struct {
		name     string
		threadID string
		title    string
		steps    []string
	}{
		{"blank thread", " ", "title", []string{"a"}},
		{"blank title", "t1", "", []string{"a"}},
		{"blank step", "t1", "title", []string{"a", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.threadID, tt.title, tt.steps)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestRestorePlan_RejectsGaps(t *testing.T) {
	p := &Plan{
		ThreadID: "t1",
		Title:    "gap",
		Status:   PlanStatusActive,
		Steps: []*Step{
			{StepNumber: 1, Description: "a"},
			{StepNumber: 3, Description: "c"},
		},
	}
	_, err := RestorePlan(p)
	assert.True(t, apperr.IsValidation(err))
}

func TestPlan_CompletionScenario(t *testing.T) {
	p := newTestPlan(t, "write code", "write tests")
	assert.Equal(t, PlanStatusActive, p.Status)
	assert.Equal(t, 0.0, p.CompletionPercentage())

	ok, err := p.CompleteStep(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 50.0, p.CompletionPercentage())
	assert.Equal(t, PlanStatusActive, p.Status)
	assert.Nil(t, p.CompletedAt)

	ok, err = p.CompleteStep(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100.0, p.CompletionPercentage())
	assert.Equal(t, PlanStatusCompleted, p.Status, "last step auto-completes the plan")
	assert.NotNil(t, p.CompletedAt)
	assertContiguous(t, p)
}

func TestPlan_CompleteStepMissing(t *testing.T) {
	p := newTestPlan(t, "a")
	for _, n := range []int{0, 2, -1} {
		ok, err := p.CompleteStep(n)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Nil(t, p.GetStep(5))
	assert.Equal(t, PlanStatusActive, p.Status)
}

func TestPlan_ZeroSteps(t *testing.T) {
	p := newTestPlan(t)
	assert.True(t, p.AreAllStepsCompleted())
	assert.Equal(t, 100.0, p.CompletionPercentage())
	require.NoError(t, p.MarkCompleted())
	assert.Equal(t, PlanStatusCompleted, p.Status)
}

func TestPlan_MarkCompletedWithPendingSteps(t *testing.T) {
	p := newTestPlan(t, "a", "b")
	_, err := p.CompleteStep(1)
	require.NoError(t, err)

	err = p.MarkCompleted()
	assert.True(t, apperr.IsInvalidState(err))
	assert.Equal(t, PlanStatusActive, p.Status)
	assert.Nil(t, p.CompletedAt)
}

func TestPlan_TerminalStatesRejectEverything(t *testing.T) {
	completed := newTestPlan(t, "a")
	_, err := completed.CompleteStep(1)
	require.NoError(t, err)
	require.Equal(t, PlanStatusCompleted, completed.Status)

	cancelled := newTestPlan(t, "a")
	require.NoError(t, cancelled.Cancel())
	assert.Nil(t, cancelled.CompletedAt, "cancel never sets completed_at")

	for _, p := range []*Plan{completed, cancelled} {
		t.Run(string(p.Status), func(t *testing.T) {
			_, err := p.AddStep("more")
			assert.True(t, apperr.IsInvalidState(err))
			_, err = p.CompleteStep(1)
			assert.True(t, apperr.IsInvalidState(err))
			_, err = p.SetStepIncomplete(1)
			assert.True(t, apperr.IsInvalidState(err))
			assert.True(t, apperr.IsInvalidState(p.MarkCompleted()))
			assert.True(t, apperr.IsInvalidState(p.Cancel()))
			assert.Len(t, p.Steps, 1)
		})
	}
}

func TestPlan_AddStep(t *testing.T) {
	p := newTestPlan(t, "a")
	before := p.UpdatedAt
	time.Sleep(time.Millisecond)

	s, err := p.AddStep("b")
	require.NoError(t, err)
	assert.Equal(t, 2, s.StepNumber)
	assert.True(t, p.UpdatedAt.After(before))
	assertContiguous(t, p)

	_, err = p.AddStep("  ")
	assert.True(t, apperr.IsValidation(err))
	assert.Len(t, p.Steps, 2)
}

func TestPlan_PendingAndCompletedSteps(t *testing.T) {
	p := newTestPlan(t, "a", "b", "c")
	_, err := p.CompleteStep(2)
	require.NoError(t, err)

	assert.Len(t, p.PendingSteps(), 2)
	require.Len(t, p.CompletedSteps(), 1)
	assert.Equal(t, 2, p.CompletedSteps()[0].StepNumber)

	ok, err := p.SetStepIncomplete(2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, p.CompletedSteps())
}
