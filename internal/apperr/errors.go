// Package apperr holds the error kinds the core surfaces to callers.
//
// Every kind maps to a distinct remediation for the user, so callers classify
// with errors.Is and must never collapse them into a generic failure.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientCredits    = errors.New("insufficient credits")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrStaleState             = errors.New("stale state: record was modified concurrently")
	ErrRevisionAlreadyPending = errors.New("a revision is already pending for this order")
	ErrMissingRequiredField   = errors.New("missing required field")
	ErrNotFound               = errors.New("not found")

	ErrForbidden     = errors.New("forbidden")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrAlreadyExists = errors.New("already exists")
)

// FieldError names the field that failed validation. It unwraps to
// ErrMissingRequiredField.
type FieldError struct {
	Field string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingRequiredField, e.Field)
}

func (e FieldError) Unwrap() error { return ErrMissingRequiredField }

// Missing returns the error for an absent required field.
func Missing(field string) error {
	return FieldError{Field: field}
}

// IsDomain reports whether err is one of the recoverable kinds above, as
// opposed to an infrastructure failure.
func IsDomain(err error) bool {
	for _, kind := range []error{
		ErrInsufficientCredits,
		ErrInvalidTransition,
		ErrStaleState,
		ErrRevisionAlreadyPending,
		ErrMissingRequiredField,
		ErrNotFound,
		ErrForbidden,
		ErrInvalidAmount,
		ErrAlreadyExists,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}

	return false
}
