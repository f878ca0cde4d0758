// Package util provides id helpers shared by the stores and the CLI.
package util

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/josephgoksu/deepagent/internal/apperr"
)

// Entity id prefixes. Every id is a prefix plus eight hex characters,
// e.g. "plan-1a2b3c4d".
const (
	PlanPrefix   = "plan-"
	StepPrefix   = "step-"
	NotePrefix   = "note-"
	ThreadPrefix = "thread-"

	idSuffixLength = 8
	// MaxAmbiguousCandidates is the max number of candidates to show in ambiguous error.
	MaxAmbiguousCandidates = 5
)

// NewID returns prefix followed by eight random hex characters.
func NewID(prefix string) string {
	return prefix + uuid.New().String()[:idSuffixLength]
}

// ShortID returns the first n characters of id, keeping short ids whole.
// If n is 0 or negative, the prefix plus four characters is kept.
func ShortID(id string, n int) string {
	if n <= 0 {
		n = strings.Index(id, "-") + 1 + idSuffixLength/2
	}
	if len(id) <= n {
		return id
	}
	return id[:n]
}

// PlanIDFinder lists plan ids starting with a prefix.
type PlanIDFinder interface {
	FindPlanIDsByPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ResolvePlanID expands a plan id or a unique prefix of one.
// The "plan-" prefix is optional: "1a2b" and "plan-1a2b" are equivalent.
//
// Resolution rules:
//  1. An exact match wins.
//  2. A prefix matching exactly one plan resolves to it.
//  3. A prefix matching several plans is a validation error listing them.
//  4. No match is a not-found error.
func ResolvePlanID(ctx context.Context, finder PlanIDFinder, idOrPrefix string) (string, error) {
	normalized := strings.TrimSpace(idOrPrefix)
	if normalized == "" {
		return "", apperr.NewValidation("plan_id", "plan_id cannot be empty")
	}
	if !strings.HasPrefix(normalized, PlanPrefix) {
		normalized = PlanPrefix + normalized
	}

	candidates, err := finder.FindPlanIDsByPrefix(ctx, normalized)
	if err != nil {
		return "", err
	}
	for _, c := range candidates {
		if c == normalized {
			return c, nil
		}
	}

	switch len(candidates) {
	case 0:
		return "", apperr.NewNotFound("plan", idOrPrefix)
	case 1:
		return candidates[0], nil
	default:
		shown := candidates
		if len(shown) > MaxAmbiguousCandidates {
			shown = shown[:MaxAmbiguousCandidates]
		}
		return "", apperr.NewValidation("plan_id",
			fmt.Sprintf("ambiguous plan id prefix %q matches %d plans: %v", normalized, len(candidates), shown))
	}
}
