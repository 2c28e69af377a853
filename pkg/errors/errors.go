package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a failure for callers. It decides the HTTP status and whether the
// client may retry.
type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeTooLarge     Code = "PAYLOAD_TOO_LARGE"
	CodeConflict     Code = "IDEMPOTENCY_CONFLICT"
	CodeRateLimit    Code = "RATE_LIMITED"
	CodeStorage      Code = "STORAGE_UNAVAILABLE"
	CodeUpstream     Code = "UPSTREAM_ERROR"
	CodeCanceled     Code = "CANCELED"
	CodeInternal     Code = "INTERNAL_ERROR"
)

// statusClientClosed is the nginx status for a caller that hung up mid-request.
const statusClientClosed = 499

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// Metadata describes how c is surfaced. Unknown codes are treated as CodeInternal.
func (c Code) Metadata() Metadata {
	switch c {
	case CodeValidation:
		return Metadata{HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true}
	case CodeUnauthorized:
		return Metadata{HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"}
	case CodeNotFound:
		return Metadata{HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"}
	case CodeTooLarge:
		return Metadata{HTTPStatus: http.StatusRequestEntityTooLarge, PublicMessage: "payload too large"}
	case CodeConflict:
		return Metadata{HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key conflict"}
	case CodeRateLimit:
		return Metadata{HTTPStatus: http.StatusTooManyRequests, Retryable: true, PublicMessage: "too many cart updates"}
	case CodeStorage:
		return Metadata{HTTPStatus: http.StatusServiceUnavailable, Retryable: true, PublicMessage: "cart storage unavailable"}
	case CodeUpstream:
		return Metadata{HTTPStatus: http.StatusBadGateway, Retryable: true, PublicMessage: "reward service unavailable", DetailsAllowed: true}
	case CodeCanceled:
		return Metadata{HTTPStatus: statusClientClosed, PublicMessage: "request canceled"}
	default:
		return Metadata{HTTPStatus: http.StatusInternalServerError, Retryable: true, PublicMessage: "internal server error"}
	}
}

func MetadataFor(code Code) Metadata { return code.Metadata() }

// Error is the typed error every layer returns. Message is for logs; callers see
// the code's public message unless DetailsAllowed.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is/As. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so errors.Is(err, New(CodeStorage, ""))
// asks "is this a storage failure".
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func CodeOf(err error) Code {
	return As(err).Code()
}

func IsRetryable(err error) bool {
	return err != nil && CodeOf(err).Metadata().Retryable
}
