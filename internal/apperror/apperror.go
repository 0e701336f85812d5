// Package apperror defines the domain error kinds shared by the store, service
// and HTTP layers.
//
// Every kind is a sentinel wrapped in *AppError. Callers test the kind with
// errors.Is and read the human-readable message (plus optional field list or
// existing row id) with errors.As.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: first field causing the error

	// Fields lists every failing field of a validation error. Messages is
	// parallel to it.
	Fields   []string
	Messages []string

	// ExistingID is the id of the row that already holds the natural key of a
	// conflicting create. Zero when unknown.
	ExistingID int64

	// Cause is the underlying error for internal failures. It is never shown
	// to clients outside development.
	Cause error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:    field,
		Fields:   []string{field},
		Messages: []string{message},
	}
}

// MissingFields reports required fields that were absent, in the given order.
func MissingFields(fields ...string) *AppError {
	msgs := make([]string, len(fields))
	for i, f := range fields {
		msgs[i] = f + " is required"
	}
	return Invalid(fields, msgs)
}

// Invalid merges several field failures into one validation error. fields and
// messages are parallel slices.
func Invalid(fields, messages []string) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message:  strings.Join(messages, "; "),
		Fields:   fields,
		Messages: messages,
	}
	if len(fields) > 0 {
		e.Field = fields[0]
	}
	return e
}

func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, message),
	}
}

// AlreadyExists is a conflict that knows which row won.
func AlreadyExists(resource string, existingID int64) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    fmt.Sprintf("%s already exists", resource),
		ExistingID: existingID,
	}
}

// Unauthorized reports a bad credential or token. Keep message generic
// enough that it does not reveal which part of the credential was wrong.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func Internal(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrInternal,
		Message: message,
		Cause:   cause,
	}
}

// ExistingID returns the id carried by a conflict anywhere in err's chain.
func ExistingID(err error) (int64, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExistingID > 0 {
		return appErr.ExistingID, true
	}
	return 0, false
}
