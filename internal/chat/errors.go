package chat

import (
	"errors"
	"fmt"
)

// ErrorCode classifies chat-layer failures for logging, metrics, and retry
// decisions.
type ErrorCode string

const (
	// ErrCodeConnection indicates network or gateway connection failures.
	ErrCodeConnection ErrorCode = "CONNECTION_ERROR"

	// ErrCodeAuthentication indicates token or permission failures.
	ErrCodeAuthentication ErrorCode = "AUTH_ERROR"

	// ErrCodeInvalidInput indicates malformed message or configuration data.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeNotFound indicates a requested resource does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeUpstream indicates a failure in an external model backend.
	ErrCodeUpstream ErrorCode = "UPSTREAM_ERROR"

	// ErrCodeUnavailable indicates the service is temporarily unavailable.
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrCodeConfig indicates a configuration error.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured error carrying a classification code alongside the
// underlying cause.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error so errors.Is and errors.As work.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error represents a transient condition.
func (e *Error) IsRetryable() bool {
	switch e.Code {
	case ErrCodeConnection, ErrCodeUpstream, ErrCodeUnavailable:
		return true
	default:
		return false
	}
}

// NewError creates an Error with the given code, message, and cause.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrConnection creates a connection error.
func ErrConnection(message string, err error) *Error {
	return NewError(ErrCodeConnection, message, err)
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string, err error) *Error {
	return NewError(ErrCodeAuthentication, message, err)
}

// ErrInvalidInput creates an invalid input error.
func ErrInvalidInput(message string, err error) *Error {
	return NewError(ErrCodeInvalidInput, message, err)
}

// ErrNotFound creates a not found error.
func ErrNotFound(message string, err error) *Error {
	return NewError(ErrCodeNotFound, message, err)
}

// ErrUpstream creates an upstream model backend error.
func ErrUpstream(message string, err error) *Error {
	return NewError(ErrCodeUpstream, message, err)
}

// ErrUnavailable creates a service unavailable error.
func ErrUnavailable(message string, err error) *Error {
	return NewError(ErrCodeUnavailable, message, err)
}

// ErrConfig creates a configuration error.
func ErrConfig(message string, err error) *Error {
	return NewError(ErrCodeConfig, message, err)
}

// ErrInternal creates an internal error.
func ErrInternal(message string, err error) *Error {
	return NewError(ErrCodeInternal, message, err)
}

// GetErrorCode extracts the ErrorCode from err, defaulting to
// ErrCodeInternal for foreign error types.
func GetErrorCode(err error) ErrorCode {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Code
	}
	return ErrCodeInternal
}
