// Package apperr defines the error kinds surfaced by the blog API.
//
// Every failure that reaches a caller carries a Kind. The GraphQL layer reads
// the kind through Extensions and reports it as the error "code".
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	// Internal is an infrastructure failure. Its details are not shown to callers.
	Internal Kind = iota
	// Validation is malformed or unacceptable input.
	Validation
	// Conflict is a uniqueness violation such as a taken email.
	Conflict
	// NotFound is an unknown id, or an entity hidden by authorization.
	NotFound
	// Forbidden is an authorization denial. Callers see it as NotFound.
	Forbidden
	// Unauthenticated is a missing credential or bad login.
	Unauthenticated
	// InvalidToken is a credential that failed verification.
	InvalidToken
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "VALIDATION_ERROR"
	case Conflict:
		return "CONFLICT"
	case NotFound:
		return "NOT_FOUND"
	case Forbidden:
		return "FORBIDDEN"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case InvalidToken:
		return "INVALID_TOKEN"
	default:
		return "INTERNAL"
	}
}

// Error is a classified error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Extensions is picked up by the GraphQL engine and copied into the
// "extensions" member of the response error.
func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Kind.String()}
}

// Is reports sentinel equality by kind and message so that errors.Is works
// against the package sentinels after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

var (
	ErrEmailTaken         = &Error{Kind: Conflict, Msg: "email taken"}
	ErrAuthRequired       = &Error{Kind: Unauthenticated, Msg: "authentication required"}
	ErrInvalidCredentials = &Error{Kind: Unauthenticated, Msg: "invalid credentials"}
	ErrInvalidToken       = &Error{Kind: InvalidToken, Msg: "invalid token"}
	ErrPasswordTooShort   = &Error{Kind: Validation, Msg: "password must be at least 8 characters"}
	ErrPasswordTooLong    = &Error{Kind: Validation, Msg: "password must be at most 72 bytes"}
)

func newf(k Kind, format string, args ...interface{}) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Validationf returns a Validation error.
func Validationf(format string, args ...interface{}) error {
	return newf(Validation, format, args...)
}

// NotFoundf returns a NotFound error.
func NotFoundf(format string, args ...interface{}) error {
	return newf(NotFound, format, args...)
}

// Forbiddenf returns a Forbidden error.
func Forbiddenf(format string, args ...interface{}) error {
	return newf(Forbidden, format, args...)
}

// Wrap marks err as an Internal failure of op.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: Internal, Msg: op, Err: err}
}

// KindOf returns the kind of err. Unclassified errors are Internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Public converts err into the form shown to API callers. Forbidden becomes
// NotFound with the same message and internal details are dropped.
func Public(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return &Error{Kind: Internal, Msg: "internal error"}
	}
	switch ae.Kind {
	case Forbidden:
		return &Error{Kind: NotFound, Msg: ae.Msg}
	case Internal:
		return &Error{Kind: Internal, Msg: "internal error"}
	}
	return ae
}
