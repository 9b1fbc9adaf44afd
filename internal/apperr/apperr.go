// Package apperr defines the error taxonomy shared by services and the HTTP layer.
//
// Services return errors built with New (or Validation) so that the request
// boundary can translate them into status codes with errors.Is, while the
// message stays safe to show to the caller.
package apperr

import (
	"errors"
	"strings"
)

// Error kinds. Use errors.Is to classify an error returned by a service.
var (
	ErrValidation       = errors.New("validation error")
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrInternal         = errors.New("internal error")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Error is a classified, user-facing error.
type Error struct {
	// Kind is one of the package level sentinels.
	Kind error
	// Message is returned to the caller verbatim.
	Message string
	// Fields holds per-field details for validation errors.
	Fields []FieldError
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind so errors.Is works against the sentinels.
func (e *Error) Unwrap() error {
	return e.Kind
}

// New builds an error of the given kind with a caller-facing message.
func New(kind error, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Validation builds a validation error with optional field details.
func Validation(msg string, fields ...FieldError) error {
	return &Error{Kind: ErrValidation, Message: msg, Fields: fields}
}

// Required returns a validation error naming the missing fields.
func Required(msg string, names ...string) error {
	fields := make([]FieldError, 0, len(names))
	for _, n := range names {
		fields = append(fields, FieldError{Field: n, Detail: "is required"})
	}
	return Validation(msg, fields...)
}

// Missing reports which of the named values are blank. Pairs are name, value.
func Missing(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

// Message returns the caller-facing message of err. Unclassified errors
// collapse to a generic text so storage details never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}

// Fields returns validation details attached to err, if any.
func Fields(err error) []FieldError {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}
