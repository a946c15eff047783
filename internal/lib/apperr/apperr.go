// Package apperr holds the error taxonomy that the service layer returns to
// the transport layer: validation, conflict, authentication and not-found
// failures. Anything that is not an *Error is an operational failure.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Codes that change the HTTP status inside a kind.
const (
	CodeForbidden = "forbidden"
	CodeInactive  = "inactive"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind and code, so wrapped copies of a
// predefined error still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == e.Code
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(message string) *Error {
	return New(KindValidation, "validation", message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

func Auth(code, message string) *Error {
	return New(KindAuth, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

// Wrap attaches a cause to a copy of e. The cause is kept for logs and never
// rendered to clients.
func Wrap(e *Error, err error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, Err: err}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return 0
}

// HTTPStatus maps err to a status code. Only the transport layer should call it.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	e, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		if e.Code == CodeForbidden || e.Code == CodeInactive {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-safe message for err.
func Message(err error) string {
	if e, ok := As(err); ok {
		return e.Message
	}
	return "internal error"
}
