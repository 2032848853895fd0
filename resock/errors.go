package resock

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Connection lifecycle errors
	ErrorConnection
	ErrorUnexpectedClose
	ErrorMaxReconnects

	// Caller-side errors
	ErrorNotConnected
	ErrorSendFailed
	ErrorBufferFull
	ErrorInvalidConfig
	ErrorAlreadyStarted
	ErrorClosed
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorConnection:
		return "connection_error"
	case ErrorUnexpectedClose:
		return "unexpected_close"
	case ErrorMaxReconnects:
		return "max_reconnects"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSendFailed:
		return "send_failed"
	case ErrorBufferFull:
		return "buffer_full"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorAlreadyStarted:
		return "already_started"
	case ErrorClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// Error is a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with an Error.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// Sentinels for errors.Is. Matching is by code, so any message compares equal.
var (
	ErrNotConnected   = NewError(ErrorNotConnected, "not connected")
	ErrBufferFull     = NewError(ErrorBufferFull, "send buffer full")
	ErrAlreadyStarted = NewError(ErrorAlreadyStarted, "already started")
	ErrClosed         = NewError(ErrorClosed, "client closed")
	ErrInvalidConfig  = NewError(ErrorInvalidConfig, "invalid config")
)

// CodeOf returns the ErrorCode carried by err, or ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorUnknown
	}
	return e.Code
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	switch CodeOf(err) {
	case ErrorConnection, ErrorUnexpectedClose, ErrorMaxReconnects:
		return true
	default:
		return false
	}
}
