package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTransition is wrapped when a lifecycle change is not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid status transition")

// ValidationError is returned before any state mutation when an input field is unusable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation checks if the error is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError carries the entities that block the requested change so the caller can offer alternatives.
type ConflictError struct {
	Reason       string
	Reservations []Reservation
	Schedules    []Schedule
	Err          error
}

func (e *ConflictError) Error() string {
	var ids []string
	for _, r := range e.Reservations {
		ids = append(ids, r.ID)
	}
	for _, s := range e.Schedules {
		ids = append(ids, s.ID)
	}
	if len(ids) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s (%s)", e.Reason, strings.Join(ids, ", "))
}

func (e *ConflictError) Unwrap() error { return e.Err }

// IsConflict checks if the error is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AsConflict extracts the ConflictError from an error chain.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// NotFoundError is returned for unknown restaurant, reservation, schedule, waiter or table ids.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NewNotFound builds a NotFoundError.
func NewNotFound(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound checks if the error is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// TransitionError reports an illegal lifecycle change as a conflict with the current state.
func TransitionError(from, to string) *ConflictError {
	return &ConflictError{
		Reason: fmt.Sprintf("cannot move from %s to %s", from, to),
		Err:    ErrInvalidTransition,
	}
}
