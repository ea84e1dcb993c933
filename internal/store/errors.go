package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is the generic version of the entity-specific not found
	// errors.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate of
	// a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored, or violates a database constraint. Check the wrapped
	// error for specifics.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrClaimConflict is returned when a task cannot be claimed for
	// dispatch because it is not Scheduled or another run already holds the
	// claim, and when a dispatch outcome is rejected because a concurrent
	// writer modified the task after it was claimed.
	ErrClaimConflict = errors.New("task claim conflict")

	// ErrTaskNotFound indicates that the requested task does not exist in the store.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
