package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures and lookups.
var (
	ErrNotFound        = errors.New("not found")
	ErrMissingUser     = errors.New("user id is required")
	ErrMissingLocation = errors.New("origin and destination are required")
	ErrBadBattery      = errors.New("battery percent out of range")
	ErrBadDistance     = errors.New("distance must be positive")
	ErrBadEnergy       = errors.New("energy must be positive")
	ErrEmptyQuestion   = errors.New("question is empty")
)

// ValidationError wraps a sentinel with the offending field and value.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
