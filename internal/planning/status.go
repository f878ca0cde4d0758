package planning

import (
	"strings"

	"github.com/josephgoksu/deepagent/internal/apperr"
)

// PlanStatus represents the lifecycle state of a plan
type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"    // In progress, steps may change
	PlanStatusCompleted PlanStatus = "completed" // Every step done
	PlanStatusCancelled PlanStatus = "cancelled" // Abandoned
)

// planTransitions is the complete set of legal status changes.
// Statuses absent from the table are terminal.
var planTransitions = map[PlanStatus][]PlanStatus{
	PlanStatusActive: {PlanStatusCompleted, PlanStatusCancelled},
}

// ParsePlanStatus converts s (any case) into a PlanStatus.
func ParsePlanStatus(s string) (PlanStatus, error) {
	status := PlanStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", apperr.NewValidation("status", "invalid plan status: "+s)
	}
	return status, nil
}

// IsValid reports whether s is a known status.
func (s PlanStatus) IsValid() bool {
	switch s {
	case PlanStatusActive, PlanStatusCompleted, PlanStatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether s has no outgoing transitions.
func (s PlanStatus) IsTerminal() bool {
	return len(planTransitions[s]) == 0
}

// CanBeModified reports whether steps may be added or toggled in this status.
func (s PlanStatus) CanBeModified() bool {
	return s == PlanStatusActive
}

// CanTransitionTo reports whether s may move to target.
func (s PlanStatus) CanTransitionTo(target PlanStatus) bool {
	for _, next := range planTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s PlanStatus) String() string {
	return string(s)
}
