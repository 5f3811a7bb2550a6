// Package domainerrors defines the typed error taxonomy returned by services.
//
// Stores return sentinel errors (see pkg/platform/sentinel); services translate
// them into *Error values carrying a Code. Transport layers map codes to
// responses and decide how much of the message is safe to expose.
package domainerrors

import (
	"errors"
)

// Code classifies a domain error.
type Code string

const (
	CodeInvalidCredentials  Code = "invalid_credentials"
	CodeTokenInvalid        Code = "token_invalid"
	CodeTokenExpired        Code = "token_expired"
	CodePermissionDenied    Code = "permission_denied"
	CodeNotFound            Code = "not_found"
	CodeUpstreamUnavailable Code = "upstream_unavailable"
	CodeFactorNotFound      Code = "factor_not_found"
	CodeChallengeExpired    Code = "challenge_expired"
	CodeCodeMismatch        Code = "code_mismatch"
	CodeRateLimited         Code = "rate_limited"
	CodeConflict            Code = "conflict"
	CodeBadRequest          Code = "bad_request"
	CodeUnauthorized        Code = "unauthorized"
	CodeInternal            Code = "internal_error"
)

// Error is a domain error with a stable code and a message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports equality on code and message so tests can compare against a
// freshly constructed error with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// As extracts the outermost domain error from the chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether the outermost domain error in err carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// CodeOf returns the code of err, or CodeInternal for non-domain errors.
func CodeOf(err error) Code {
	if de, ok := As(err); ok {
		return de.Code
	}
	return CodeInternal
}
