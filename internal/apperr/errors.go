// Package apperr defines the error taxonomy shared by the planning, conversation
// and notes packages, and by the transports that render those errors.
//
// Domain code returns one of five kinds:
//
//	ValidationError   malformed input (blank title, step number < 1)
//	InvalidStateError operation against a plan in the wrong status
//	ConflictError     a second active plan for the same thread
//	NotFoundError     referenced plan, step, thread or note is missing
//	RepositoryError   storage failure, including context timeouts
//
// Check with the Is* helpers or with errors.As on the concrete type.
package apperr

import (
	"errors"
	"fmt"
)

// Re-exported so callers can import only this package.
var (
	Is  = errors.Is
	As  = errors.As
	New = errors.New
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindRepository   Kind = "repository"
)

// baseError carries the message and optional cause common to every kind.
type baseError struct {
	message string
	cause   error
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error {
	return e.cause
}

// ValidationError reports input rejected before any state change.
type ValidationError struct {
	baseError
	Field string
}

// NewValidation returns a ValidationError for field. Field may be empty.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{baseError: baseError{message: message}, Field: field}
}

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// InvalidStateError reports an operation that the current status forbids.
type InvalidStateError struct {
	baseError
}

// NewInvalidState returns an InvalidStateError with a formatted message.
func NewInvalidState(format string, args ...any) *InvalidStateError {
	return &InvalidStateError{baseError: baseError{message: fmt.Sprintf(format, args...)}}
}

// Is matches any *InvalidStateError.
func (e *InvalidStateError) Is(target error) bool {
	_, ok := target.(*InvalidStateError)
	return ok
}

// ConflictError reports a uniqueness rule violation.
type ConflictError struct {
	baseError
	Resource string
	Key      string
}

// NewConflict returns a ConflictError for resource identified by key.
func NewConflict(resource, key, message string) *ConflictError {
	return &ConflictError{baseError: baseError{message: message}, Resource: resource, Key: key}
}

// Is matches any *ConflictError.
func (e *ConflictError) Is(target error) bool {
	_, ok := target.(*ConflictError)
	return ok
}

// NotFoundError reports a missing resource.
//
//	err := apperr.NewNotFound("plan", "plan-1a2b3c4d")
//	fmt.Println(err) // plan 'plan-1a2b3c4d' not found
type NotFoundError struct {
	baseError
	Resource string
	ID       string
}

// NewNotFound returns a NotFoundError for resource id.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{message: fmt.Sprintf("%s '%s' not found", resource, id)},
		Resource:  resource,
		ID:        id,
	}
}

// Is matches any *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// RepositoryError wraps a storage failure.
type RepositoryError struct {
	baseError
	Op string
}

// NewRepository wraps err as a RepositoryError for op. A nil err returns nil.
func NewRepository(op string, err error) error {
	if err == nil {
		return nil
	}
	return &RepositoryError{baseError: baseError{message: op, cause: err}, Op: op}
}

// Is matches any *RepositoryError.
func (e *RepositoryError) Is(target error) bool {
	_, ok := target.(*RepositoryError)
	return ok
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is or wraps an InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsConflict reports whether err is or wraps a ConflictError.
func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsRepository reports whether err is or wraps a RepositoryError.
func IsRepository(err error) bool {
	var target *RepositoryError
	return errors.As(err, &target)
}

// KindOf returns the kind of err, or "" for errors outside the taxonomy.
// A RepositoryError takes precedence over any domain error it wraps.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case IsRepository(err):
		return KindRepository
	case IsValidation(err):
		return KindValidation
	case IsInvalidState(err):
		return KindInvalidState
	case IsConflict(err):
		return KindConflict
	case IsNotFound(err):
		return KindNotFound
	default:
		return ""
	}
}
