package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for boundary validation and port bookkeeping.
var (
	ErrInvalidComponent = errors.New("invalid component")
	ErrInvalidActivity  = errors.New("invalid activity")
	ErrUnknownPort      = errors.New("unknown port")
	ErrPortOccupied     = errors.New("port already in use")
	ErrDuplicateKind    = errors.New("connection of this kind already exists")
	ErrKindMismatch     = errors.New("connection kind does not match port")
	ErrUnknownComponent = errors.New("unknown component")
)

// ValidationError wraps a sentinel with context.
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
