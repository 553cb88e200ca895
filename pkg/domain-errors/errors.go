// Package domainerrors defines coded errors shared across services and
// transports. Services return these so handlers can translate them into
// HTTP responses without inspecting error strings.
package domainerrors

import (
	"errors"
	"fmt"

	"credbridge/pkg/platform/sentinel"
)

// Code classifies a domain error for transport mapping.
type Code string

const (
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnavailable  Code = "unavailable"
	CodeInternal     Code = "internal_error"
)

// Error is a coded domain error. The message is safe to show to API clients
// except for CodeInternal, where transports must omit it.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New constructs a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap constructs a domain error that records an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf extracts the domain code from err. Bare sentinel errors from stores
// and the Issuer client map onto their matching codes; anything else defaults
// to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, sentinel.ErrConflict):
		return CodeConflict
	case errors.Is(err, sentinel.ErrUnavailable),
		errors.Is(err, sentinel.ErrIssuer),
		errors.Is(err, sentinel.ErrDirectoryUnavailable),
		errors.Is(err, sentinel.ErrCredentialCreate),
		errors.Is(err, sentinel.ErrSyncFailed):
		return CodeUnavailable
	}
	return CodeInternal
}

// MessageOf extracts the client-safe message from err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
