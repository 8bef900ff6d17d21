// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Configuration errors (100-199): Invalid market/endpoint/credential configuration
//   - Range and format errors (200-299): Out-of-bounds dates, unparseable date strings
//   - Storage errors (300-399): Object not found, forbidden, transport failures
//   - Data errors (400-499): Decompression, parsing, and cleaning failures
//   - Writer errors (500-599): Parquet export failures
//   - Provider errors (600-699): REST aggregates fetch failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidMarket, "unknown market")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeObjectNotFound, "no object for key %s", key)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeStorageTransport, "download failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeObjectNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsSkippable reports whether an error represents a per-day outcome that a
// range download may skip: the object does not exist or access to it was
// denied. Anything else is fatal for the remaining range.
func IsSkippable(err error) bool {
	code := GetCode(err)

	return code == ErrCodeObjectNotFound || code == ErrCodeObjectForbidden
}
