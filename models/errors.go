package models

import "errors"

// Domain errors shared across the billing engine. Callers match on these
// with errors.Is after unwrapping.
var (
	// ErrNoScheduleTier is returned when no schedule era covers a
	// requested reference date. Schedules are expected to carry an
	// open-ended floor era, so hitting this means misconfiguration.
	ErrNoScheduleTier = errors.New("no schedule tier covers the reference date")

	// ErrNotFound is returned when a referenced investor, investment,
	// cashcall or bill does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrInvariantViolation is returned for state transitions the
	// lifecycle forbids, such as sending a non-validated cashcall or
	// validating an empty one.
	ErrInvariantViolation = errors.New("invariant violation")
)
