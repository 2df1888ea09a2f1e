package workflow

import (
	"errors"
	"fmt"
)

// State machine errors.
var (
	// ErrInvalidTransition is returned when a trigger is not allowed from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not a known workflow status
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every guarded transition rejected the trigger
	ErrGuardFailed = errors.New("guard condition failed")

	// ErrTerminalState is returned when firing from a state that accepts no transitions
	ErrTerminalState = errors.New("state is terminal")
)

// Error taxonomy shared by the engine, the query layer and the HTTP surface.
var (
	// ErrValidation means the caller sent malformed input
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means a submission, step or actor does not exist
	ErrNotFound = errors.New("not found")

	// ErrPrecondition means the request is well formed but conflicts with current state
	ErrPrecondition = errors.New("precondition failed")

	// ErrDependencyUnavailable means storage or another required collaborator failed
	ErrDependencyUnavailable = errors.New("dependency unavailable")

	// ErrNotifierFailure is only logged by notifier adapters, never returned to callers
	ErrNotifierFailure = errors.New("orchestrator notification failed")
)

// FieldError is a validation failure attributed to one input field
type FieldError struct {
	Field   string
	Message string
}

// Error implements error
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation
func (e *FieldError) Unwrap() error {
	return ErrValidation
}

// NewFieldError creates a field-level validation error
func NewFieldError(field, message string) error {
	return &FieldError{Field: field, Message: message}
}

// Unavailable wraps a storage or collaborator failure so callers can map it
func Unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependencyUnavailable, op, err)
}
