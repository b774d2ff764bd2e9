// Package errors defines the error taxonomy surfaced by the cached
// document access layer. Every error carries the originating collection
// and operation for diagnostics.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeInitialization indicates the store connection could not be
	// established after the bounded startup retries. Fatal; callers should
	// abort startup.
	ErrorTypeInitialization ErrorType = "INITIALIZATION"

	// ErrorTypeQuery indicates a malformed query or a store-side
	// configuration problem such as a missing index. A configuration bug,
	// not transient.
	ErrorTypeQuery ErrorType = "QUERY"

	// ErrorTypeNotFound indicates a document was not found where the call
	// path treats absence as an error.
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeWrite indicates the store rejected a create or update.
	// Not retried automatically by this layer.
	ErrorTypeWrite ErrorType = "WRITE"

	// ErrorTypeDelete indicates the store rejected a deletion.
	ErrorTypeDelete ErrorType = "DELETE"

	// ErrorTypeTransaction is a pass-through from the store's transaction
	// primitive.
	ErrorTypeTransaction ErrorType = "TRANSACTION"

	// ErrorTypeCacheDegraded indicates the cache subsystem failed.
	// Non-fatal; the access layer continues store-only.
	ErrorTypeCacheDegraded ErrorType = "CACHE_DEGRADED"

	// ErrorTypeInternal covers everything without a more specific type.
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
	StackTrace string         `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// WithOperation records the collection and operation the error originated
// from.
func (e *AppError) WithOperation(collection, operation string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, 2)
	}
	e.Details["collection"] = collection
	e.Details["operation"] = operation
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

// Constructor functions for common error types

// NewInitializationError creates a fatal initialization error
func NewInitializationError(message string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeInitialization,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// NewQueryError creates a query error
func NewQueryError(collection string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeQuery,
		Message:    fmt.Sprintf("query on collection '%s' failed", collection),
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(collection, id string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("document %s/%s not found", collection, id),
		StackTrace: captureStackTrace(),
	}
}

// NewWriteError creates a write error
func NewWriteError(collection, operation string, err error) *AppError {
	return (&AppError{
		Type:       ErrorTypeWrite,
		Message:    fmt.Sprintf("write to collection '%s' failed", collection),
		Cause:      err,
		StackTrace: captureStackTrace(),
	}).WithOperation(collection, operation)
}

// NewDeleteError creates a delete error
func NewDeleteError(collection, id string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeDelete,
		Message:    fmt.Sprintf("delete of document %s/%s failed", collection, id),
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// NewTransactionError creates a transaction error
func NewTransactionError(err error) *AppError {
	return &AppError{
		Type:       ErrorTypeTransaction,
		Message:    "transaction failed",
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// NewCacheDegradedError creates a non-fatal cache degradation error
func NewCacheDegradedError(message string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeCacheDegraded,
		Message:    message,
		Cause:      err,
		StackTrace: captureStackTrace(),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StackTrace: captureStackTrace(),
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsInitialization checks if an error is an initialization error
func IsInitialization(err error) bool {
	return IsType(err, ErrorTypeInitialization)
}

// IsQuery checks if an error is a query error
func IsQuery(err error) bool {
	return IsType(err, ErrorTypeQuery)
}

// IsCacheDegraded checks if an error is a cache degradation error
func IsCacheDegraded(err error) bool {
	return IsType(err, ErrorTypeCacheDegraded)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
