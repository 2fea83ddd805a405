// Package errors provides structured error handling for the tap.
// It extends Go's standard error handling with error categorization,
// key-value context, and cause preservation, and maps the Sailthru
// API's HTTP failure modes into a typed taxonomy.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeInternal represents internal system errors
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors
	ErrorTypeData ErrorType = "data"
	// ErrorTypeConnection represents transport-level errors
	ErrorTypeConnection ErrorType = "connection"
	// ErrorTypeTimeout represents request timeout errors
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeBadRequest maps HTTP 400
	ErrorTypeBadRequest ErrorType = "bad_request"
	// ErrorTypeUnauthorized maps HTTP 401
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeForbidden maps HTTP 403
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeNotFound maps HTTP 404
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeMethodNotSupported maps HTTP 405
	ErrorTypeMethodNotSupported ErrorType = "method_not_supported"
	// ErrorTypeConflict maps HTTP 409
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeRateLimit maps HTTP 429
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeServer maps HTTP 500 and any status above it
	ErrorTypeServer ErrorType = "server"
	// ErrorTypeStatsNotReady maps HTTP 400 with Sailthru error code 99,
	// a transient "report not generated yet" condition
	ErrorTypeStatsNotReady ErrorType = "stats_not_ready"
	// ErrorTypeJobTimeout represents an export job that never reached
	// the completed status within the polling ceiling
	ErrorTypeJobTimeout ErrorType = "job_timeout"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return New(errType, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted context
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return Wrap(err, errType, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether the connection-level retry layer should
// retry the error. Any API error that is not a rate limit qualifies,
// alongside transport failures, timeouts, and server errors.
// Rate-limit errors are excluded: they are handled by their own
// bounded retry layer with a server-dictated delay.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		// Unclassified transport failures are retryable.
		return err != nil
	}
	switch e.Type {
	case ErrorTypeServer, ErrorTypeTimeout, ErrorTypeConnection, ErrorTypeStatsNotReady,
		ErrorTypeBadRequest, ErrorTypeUnauthorized, ErrorTypeForbidden,
		ErrorTypeNotFound, ErrorTypeMethodNotSupported, ErrorTypeConflict:
		return true
	default:
		return false
	}
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the error's type, or ErrorTypeInternal for
// unclassified errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ErrorTypeInternal
	}
	return e.Type
}
