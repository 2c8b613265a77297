package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a uniqueness rule rejects a write, such as
	// a second open poll for one channel.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a record fails a storage constraint.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrPollNotOpen is returned when a write requires an open poll but the
	// stored poll is closed.
	ErrPollNotOpen = errors.New("persistence: poll not open")
)
