// Package apperror defines the domain errors shared by every layer of mapchat.
//
// Services return these; transports (HTTP handlers, MCP tools, the CLI)
// translate them with KindOf and PublicMessage. errors.Is works through the
// AppError wrapper because it implements Unwrap.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinels. Match with errors.Is, never by message.
var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("unavailable")
)

// Kind is the machine-readable class of an error, as clients see it.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindNotFound    Kind = "not_found"
	KindForbidden   Kind = "forbidden"
	KindConflict    Kind = "conflict"
	KindUnavailable Kind = "unavailable"
	KindInternal    Kind = "internal_error"
)

// internalMessage replaces the text of errors that are not AppErrors, so
// driver and file-system details never reach a client.
const internalMessage = "An internal error occurred"

// AppError carries a sentinel (in Err) plus a message safe to show callers.
type AppError struct {
	Err     error
	Message string
	Field   string // request field at fault, validation only
}

func (e *AppError) Error() string { return e.Message }

func (e *AppError) Unwrap() error { return e.Err }

// KindOf classifies err. Anything that is not an AppError is internal.
func KindOf(err error) Kind {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return KindInternal
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	}
	return KindInternal
}

// PublicMessage returns the AppError message in err's chain, or a generic
// text for anything else.
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return internalMessage
}

// NotFound reports a missing resource, e.g. NotFound("run", id).
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s %s not found", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports an operation the resource's current state does not
// allow, such as deleting a run that is still executing.
func Conflict(resource, id, reason string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s %s: %s", resource, id, reason),
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unavailable reports that a collaborator (the language model, the
// coordinator) could not serve the request. The cause stays in the chain
// next to the sentinel so logs still show it; callers only see message.
func Unavailable(message string, cause error) *AppError {
	err := ErrUnavailable
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, cause)
	}
	return &AppError{
		Err:     err,
		Message: message,
	}
}
