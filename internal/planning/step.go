package planning

import (
	"strings"
	"time"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// DefaultPreviewLength is the rune limit used by DescriptionPreview when max <= 0.
const DefaultPreviewLength = 100

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// Step is one ordered unit of work inside a Plan.
// CompletedAt is non-nil exactly when Completed is true.
type Step struct {
	ID          string     `json:"id,omitempty"` // Assigned by the repository, stable across updates
	StepNumber  int        `json:"step_number"`
	Description string     `json:"description"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewStep validates and returns an incomplete step.
func NewStep(number int, description string) (*Step, error) {
	s := &Step{StepNumber: number, Description: strings.TrimSpace(description)}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the step number, description and completion fields.
func (s *Step) Validate() error {
	if s.StepNumber < 1 {
		return apperr.NewValidation("step_number", "step number must be >= 1")
	}
	if strings.TrimSpace(s.Description) == "" {
		return apperr.NewValidation("description", "step description cannot be empty")
	}
	if s.Completed != (s.CompletedAt != nil) {
		return apperr.NewValidation("completed_at", "completed_at must be set exactly when the step is completed")
	}
	return nil
}

// MarkCompleted sets the completion flag and timestamp. No-op when already completed.
func (s *Step) MarkCompleted() {
	if s.Completed {
		return
	}
	t := now()
	s.Completed = true
	s.CompletedAt = &t
}

// MarkIncomplete clears the completion flag and timestamp. No-op when already incomplete.
func (s *Step) MarkIncomplete() {
	if !s.Completed {
		return
	}
	s.Completed = false
	s.CompletedAt = nil
}

// DescriptionPreview returns the description cut to max runes with a trailing ellipsis.
func (s *Step) DescriptionPreview(max int) string {
	if max <= 0 {
		max = DefaultPreviewLength
	}
	runes := []rune(s.Description)
	if len(runes) <= max {
		return s.Description
	}
	return string(runes[:max]) + "..."
}
