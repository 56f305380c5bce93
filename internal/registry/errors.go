package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateCode is returned when a requested custom code is taken.
	ErrDuplicateCode = errors.New("short code already exists")

	// ErrCodeSpaceExhausted is returned when code generation keeps colliding
	// past the configured attempt limit.
	ErrCodeSpaceExhausted = errors.New("could not generate a unique short code")
)

// ValidationError reports malformed create input. No state is changed.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that the durable write after a mutation failed.
// The in-memory registry keeps the mutation, so memory and storage may differ
// until the next successful write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist after %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
