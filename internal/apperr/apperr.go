// Package apperr defines the error taxonomy shared by handlers and the
// reconciliation layer, and how each kind maps to an HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	Configuration
	Validation
	NotFound
	Conflict
	UpstreamHTTP
	UpstreamConnection
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration"
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case UpstreamHTTP:
		return "upstream_http"
	case UpstreamConnection:
		return "upstream_connection"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Details string
	// Field names the offending request field for Validation errors and the
	// matched field for Conflict errors.
	Field string
	// ExistingID is set on duplicate-contact conflicts.
	ExistingID string
	// Status is the upstream status for UpstreamHTTP errors.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus reports the response status for the error kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case Configuration:
		return http.StatusInternalServerError
	case Validation:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Conflict:
		return http.StatusConflict
	case UpstreamHTTP:
		if e.Status >= 400 && e.Status <= 599 {
			return e.Status
		}
		return http.StatusBadGateway
	case UpstreamConnection:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Configf(format string, args ...any) *Error {
	return &Error{Kind: Configuration, Message: fmt.Sprintf(format, args...)}
}

// MissingField is the validation error for an absent required field.
func MissingField(field string) *Error {
	return &Error{Kind: Validation, Message: "missing field: " + field, Field: field}
}

func Invalid(field, msg string) *Error {
	return &Error{Kind: Validation, Message: msg, Field: field}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: NotFound, Message: fmt.Sprintf(format, args...)}
}

func DuplicateContact(existingID, field string) *Error {
	details := "a contact with the same data already exists"
	if field != "" {
		details = "a contact with the same " + field + " already exists"
	}
	return &Error{
		Kind:       Conflict,
		Message:    "contact already exists",
		Details:    details,
		Field:      field,
		ExistingID: existingID,
	}
}

func Upstream(msg string, status int, body string) *Error {
	return &Error{Kind: UpstreamHTTP, Message: msg, Status: status, Details: body}
}

func Connection(msg string, err error) *Error {
	return &Error{Kind: UpstreamConnection, Message: msg, Details: err.Error(), Err: err}
}

func Internalf(err error, format string, args ...any) *Error {
	e := &Error{Kind: Internal, Message: fmt.Sprintf(format, args...), Err: err}
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

// From converts any error into an *Error; unclassified errors become Internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internalf(err, "internal error")
}

// Is reports whether err carries the given kind.
func Is(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
