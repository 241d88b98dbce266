// Package apperr defines the tagged error taxonomy shared by the account
// service, the session middleware and the HTTP handlers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mentorlink/apiserver/internal/store"
)

// Kind classifies an error for callers and for the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindDuplicateEmail
	KindInvalidCredentials
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindTooManyRequests
	KindServiceUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindDuplicateEmail:
		return "duplicate_email"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindTooManyRequests:
		return "too_many_requests"
	case KindServiceUnavailable:
		return "service_unavailable"
	default:
		return "internal"
	}
}

// Reason refines Unauthenticated and Forbidden errors for logging and
// client UX. Reasons never change the HTTP status of their Kind.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonNoToken          Reason = "no_token"
	ReasonMalformedHeader  Reason = "malformed_header"
	ReasonTokenInvalid     Reason = "token_invalid"
	ReasonTokenExpired     Reason = "token_expired"
	ReasonTokenRevoked     Reason = "token_revoked"
	ReasonSubjectNotFound  Reason = "subject_not_found"
	ReasonInsufficientRole Reason = "insufficient_role"
	ReasonAccountDisabled  Reason = "account_disabled"
)

// Error is the tagged error returned across package boundaries.
type Error struct {
	Kind    Kind
	Reason  Reason
	Message string
	// Fields holds per-field validation messages for KindInvalidInput.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Reason != ReasonNone {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to its HTTP status code.
func (e *Error) Status() int {
	return StatusOf(e.Kind)
}

// StatusOf maps an error kind to its HTTP status code.
func StatusOf(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindDuplicateEmail:
		return http.StatusConflict
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the Kind of err. Untagged errors are KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// ReasonOf extracts the Reason of err, if any.
func ReasonOf(err error) Reason {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Reason
	}
	return ReasonNone
}

// Is reports whether err is tagged with kind.
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

func InvalidInput(message string, fields map[string]string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message, Fields: fields}
}

func DuplicateEmail(err error) *Error {
	return &Error{Kind: KindDuplicateEmail, Message: "email already registered", Err: err}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

func Unauthenticated(reason Reason, err error) *Error {
	return &Error{Kind: KindUnauthenticated, Reason: reason, Message: "unauthorized", Err: err}
}

func Forbidden(reason Reason, message string) *Error {
	return &Error{Kind: KindForbidden, Reason: reason, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func TooManyRequests(message string) *Error {
	return &Error{Kind: KindTooManyRequests, Message: message}
}

func Unavailable(err error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: "service unavailable", Err: err}
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: err}
}

// FromStore translates credential store failures. notFound is used for
// store.ErrNotFound so callers can pick NotFound or an authentication error.
func FromStore(err error, notFound *Error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		if notFound == nil {
			return NotFound("not found")
		}
		notFound.Err = err
		return notFound
	case errors.Is(err, store.ErrDuplicateEmail):
		return DuplicateEmail(err)
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return Unavailable(err)
	default:
		return Internal(err)
	}
}
