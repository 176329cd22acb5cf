package workouts

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError with errors.Is.
	ErrValidation = errors.New("validation error")
	// ErrStoreUnavailable means the store could not be reached in time.
	ErrStoreUnavailable = errors.New("store unavailable")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
