package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks invariant violations detected while constructing or mutating an entity.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate marks an attempt to add a tag or attachment an entity already holds.
	ErrDuplicate = errors.New("duplicate modification")
)

// ValidationError describes which field broke an invariant.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func duplicate(kind, id string) error {
	return fmt.Errorf("%w: %s %q already present", ErrDuplicate, kind, id)
}
