package domain

import "errors"

// Errors
var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrOwnershipMismatch      = errors.New("task is assigned to another worker")
	ErrCapacityExceeded       = errors.New("capacity exceeded")
	ErrClaimConflict          = errors.New("task was claimed by another worker")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrConcurrentModification = errors.New("aggregate was modified concurrently")
)
