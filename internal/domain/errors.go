package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrTaskNotFound is returned when a task ID does not resolve to a
	// known task.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidStateTransition is returned when an operation would move
	// a task out of a terminal state, or along an undefined edge of the
	// task state machine.
	ErrInvalidStateTransition = errors.New("invalid task state transition")

	// ErrCapacityExceeded is returned by submission when the concurrency
	// budget is saturated and the caller did not request queuing, or when
	// the pending queue itself is full.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrUnknownProvider is returned when a provider ID does not match any
	// registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")
)
