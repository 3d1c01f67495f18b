// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Errorf wraps a formatted cause in base.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// Predefined errors
var (
	// Engine errors
	ErrInvalidParameter = &Error{Code: "INVALID_PARAMETER", Message: "invalid strategy parameter"}
	ErrUnknownStrategy  = &Error{Code: "UNKNOWN_STRATEGY", Message: "unknown strategy"}

	// Market data errors
	ErrDataFetch = &Error{Code: "DATA_FETCH_FAILED", Message: "failed to fetch market data"}
	ErrNoData    = &Error{Code: "NO_DATA", Message: "no data available"}

	// API errors
	ErrInvalidRequest = &Error{Code: "INVALID_REQUEST", Message: "invalid request"}
	ErrJobNotFound    = &Error{Code: "JOB_NOT_FOUND", Message: "job not found"}
	ErrUnauthorized   = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}

	// Storage errors
	ErrStorageFailed = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}
)
