// Package apperr holds the error taxonomy shared by stores, services and handlers.
// Stores and services return these (optionally wrapped with %w) and the HTTP
// layer translates them into status codes via response.Error.
package apperr

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrMalformedCode = errors.New("malformed code")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrConflict      = errors.New("conflict")
)

// ValidationError carries per-field messages so clients can render them next to inputs.
// It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError returns an empty ValidationError ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field. The first message for a field wins.
func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; ok {
		return
	}
	e.Fields[field] = msg
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// OrNil returns e when it holds field errors and nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// FieldErrors extracts field messages from err, or nil if err is not a ValidationError.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// IsExpected reports whether err is one of the outcomes above. Anything else is
// a fault worth logging.
func IsExpected(err error) bool {
	for _, target := range []error{ErrNotFound, ErrValidation, ErrMalformedCode, ErrUnauthorized, ErrConflict} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
