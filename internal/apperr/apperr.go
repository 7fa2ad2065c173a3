// Package apperr defines the error kinds surfaced to API callers.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for propagation to the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindConfiguration
	KindValidation
	KindInsufficientFunds
	KindConflict
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindConflict:
		return "conflict"
	case KindExternal:
		return "external_service"
	default:
		return "internal"
	}
}

// Error carries a Kind, a caller-safe message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the caller-safe message for err. Internal and external
// failures are reported generically so driver or provider details never leak.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Internal server error"
	}
	switch e.Kind {
	case KindInternal:
		return "Internal server error"
	case KindExternal:
		if e.Message != "" {
			return e.Message
		}
		return "External service error"
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Error()
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
