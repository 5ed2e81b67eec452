package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode is the stable taxonomy surfaced at the external boundary (§7).
type ErrorCode string

const (
	ArgumentInvalid     ErrorCode = "ARGUMENT_INVALID"
	PrerequisiteMissing ErrorCode = "PREREQUISITE_MISSING"
	AlreadyInProgress   ErrorCode = "ALREADY_IN_PROGRESS"
	InstructionInvalid  ErrorCode = "INSTRUCTION_INVALID"
	ProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	Timeout             ErrorCode = "TIMEOUT"
	RateLimited         ErrorCode = "RATE_LIMITED"
	AuthFailure         ErrorCode = "AUTH_FAILURE"
	ProviderError       ErrorCode = "PROVIDER_ERROR"
	TransportError      ErrorCode = "TRANSPORT_ERROR"
	ParseError          ErrorCode = "PARSE_ERROR"
	ReviewConflict      ErrorCode = "REVIEW_CONFLICT"
	NotFound            ErrorCode = "NOT_FOUND"
	Cancelled           ErrorCode = "CANCELLED"
	OutOfRange          ErrorCode = "OUT_OF_RANGE"
	ProviderBusy        ErrorCode = "PROVIDER_BUSY"
	Internal            ErrorCode = "INTERNAL"
)

// httpStatusFor gives every code a default boundary status; handlers may
// still override via WithHTTPStatus when a specific call site needs to.
var httpStatusFor = map[ErrorCode]int{
	ArgumentInvalid:     http.StatusBadRequest,
	PrerequisiteMissing: http.StatusConflict,
	AlreadyInProgress:   http.StatusConflict,
	InstructionInvalid:  http.StatusUnprocessableEntity,
	ProviderUnavailable: http.StatusServiceUnavailable,
	Timeout:             http.StatusGatewayTimeout,
	RateLimited:         http.StatusTooManyRequests,
	AuthFailure:         http.StatusUnauthorized,
	ProviderError:       http.StatusBadGateway,
	TransportError:      http.StatusBadGateway,
	ParseError:          http.StatusUnprocessableEntity,
	ReviewConflict:      http.StatusConflict,
	NotFound:            http.StatusNotFound,
	Cancelled:           http.StatusRequestTimeout,
	OutOfRange:          http.StatusBadRequest,
	ProviderBusy:        http.StatusServiceUnavailable,
	Internal:            http.StatusInternalServerError,
}

// retryableByDefault marks the provider-level kinds the pool retries on
// transient classification (§4.1); set per-instance via WithRetryable for
// exceptions like a non-transient 4xx.
var retryableByDefault = map[ErrorCode]bool{
	Timeout:             true,
	RateLimited:         true,
	TransportError:      true,
	ProviderUnavailable: true,
}

// Error is the single error type crossing package boundaries in this
// engine; every component returns it (or wraps it) instead of ad-hoc
// fmt.Errorf values.
type Error struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Retryable  bool
	Provider   string
	Cause      error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s [%s]: %s", e.Code, e.Provider, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError builds an Error with the default HTTP status and retryability
// for code, formatting Message like fmt.Sprintf.
func NewError(code ErrorCode, format string, args ...any) *Error {
	status, ok := httpStatusFor[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &Error{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: status,
		Retryable:  retryableByDefault[code],
	}
}

func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable reports whether err (or any error it wraps) is a *types.Error
// marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode carried by err, or Internal if err does not
// wrap a *types.Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is allows errors.Is(err, types.NewError(code, "")) style matching purely
// on Code, ignoring Message/Cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
