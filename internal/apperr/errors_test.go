package apperr

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", New("boom"), ""},
		{"validation", NewValidation("title", "title cannot be empty"), KindValidation},
		{"invalid state", NewInvalidState("plan is %s", "completed"), KindInvalidState},
		{"conflict", NewConflict("plan", "t1", "thread t1 already has an active plan"), KindConflict},
		{"not found", NewNotFound("plan", "plan-1"), KindNotFound},
		{"repository", NewRepository("create plan", context.DeadlineExceeded), KindRepository},
		{"wrapped", fmt.Errorf("outer: %w", NewNotFound("step", "3")), KindNotFound},
		{"repository wrapping validation", NewRepository("load plan", NewValidation("steps", "step numbering is not contiguous")), KindRepository},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFound("plan", "plan-1a2b3c4d")
	assert.Equal(t, "plan 'plan-1a2b3c4d' not found", err.Error())
	assert.Equal(t, "plan", err.Resource)
	assert.Equal(t, "plan-1a2b3c4d", err.ID)
}

func TestRepositoryUnwrap(t *testing.T) {
	err := NewRepository("get plan", context.Canceled)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsRepository(err))
	assert.Equal(t, "get plan: context canceled", err.Error())

	assert.NoError(t, NewRepository("noop", nil))
}

func TestIsMatchesByType(t *testing.T) {
	a := NewConflict("plan", "t1", "first")
	b := NewConflict("plan", "t2", "second")
	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, NewNotFound("plan", "x"))
}
