package event

import "errors"

var (
	// ErrInvalidID indicates the event id failed validation.
	ErrInvalidID = errors.New("invalid event id")

	// ErrInvalidEvent indicates the record violates an invariant.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrNotFound indicates no event exists under the given id. This is an
	// expected outcome (unknown link), not a fault.
	ErrNotFound = errors.New("event not found")

	// ErrConflict indicates the event id is already claimed on disk.
	ErrConflict = errors.New("event id already taken")

	// ErrCorruptRecord indicates project.json exists but could not be parsed.
	ErrCorruptRecord = errors.New("corrupt event record")
)
