package application

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when the requested poll, response, guild or preference does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when a channel already has an open poll.
	ErrConflict = errors.New("application: channel already has an open poll")
	// ErrAlreadyClosed is returned when closing a poll that is already closed.
	ErrAlreadyClosed = errors.New("application: poll already closed")
	// ErrPollClosed is returned when a response targets a closed poll.
	ErrPollClosed = errors.New("application: poll closed")
	// ErrUnknownZone is returned for a timezone identifier that does not resolve.
	ErrUnknownZone = errors.New("application: unknown timezone")
	// ErrRosterUnavailable is returned when a tracked role is configured but
	// its roster could not be resolved.
	ErrRosterUnavailable = errors.New("application: roster unavailable")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface. Fields are listed in name order.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}
