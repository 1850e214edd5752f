// Package errors provides a lightweight structured error type (RetentionError)
// for category-based classification and retry semantics across the store
// backends, the codec, and the synchronizer passes.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCategory represents the category of a retention error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"

	// External system integration errors
	CategoryStore ErrorCategory = "store"

	// Encoding and payload errors
	CategoryCodec ErrorCategory = "codec"

	// Runtime and infrastructure errors
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops the current pass
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// RetentionError is a structured error with category, retryability, and context
type RetentionError struct {
	Category  ErrorCategory `json:"category"`
	Severity  ErrorSeverity `json:"severity"`
	Message   string        `json:"message"`
	Cause     error         `json:"cause,omitempty"`
	Retryable bool          `json:"retryable"`
	Context   ContextFields `json:"context,omitempty"`
}

// ContextFields carries structured context for RetentionError
type ContextFields map[string]any

// Error implements the error interface
func (e *RetentionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Category, e.Severity, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, e.Message)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *RetentionError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *RetentionError) WithContext(key string, value any) *RetentionError {
	if e.Context == nil {
		e.Context = make(ContextFields)
	}
	e.Context[key] = value
	return e
}

// New creates a new RetentionError
func New(category ErrorCategory, severity ErrorSeverity, message string) *RetentionError {
	return &RetentionError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Retryable: false,
	}
}

// Wrap creates a new RetentionError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *RetentionError {
	return &RetentionError{
		Category:  category,
		Severity:  severity,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// StoreUnavailable creates a retryable store-category error. Connectivity and
// transport failures always take this shape so callers can decide between
// retrying and starting with empty retention.
func StoreUnavailable(err error, message string) *RetentionError {
	return &RetentionError{
		Category:  CategoryStore,
		Severity:  SeverityFatal,
		Message:   message,
		Cause:     err,
		Retryable: true,
	}
}

// DecodeError creates a codec-category error for payloads or keys that could
// not be parsed. Never retryable: the stored bytes will not improve.
func DecodeError(err error, message string) *RetentionError {
	return &RetentionError{
		Category:  CategoryCodec,
		Severity:  SeverityError,
		Message:   message,
		Cause:     err,
		Retryable: false,
	}
}

// ValidationError creates a new validation error
func ValidationError(message string) *RetentionError {
	return &RetentionError{
		Category:  CategoryValidation,
		Severity:  SeverityWarning,
		Message:   message,
		Retryable: false,
	}
}

// IsCategory checks if an error (or any error it wraps) belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	var re *RetentionError
	if stderrors.As(err, &re) {
		return re.Category == category
	}
	return false
}

// IsRetryable checks if an error (or any error it wraps) is retryable
func IsRetryable(err error) bool {
	var re *RetentionError
	if stderrors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if no RetentionError is found
func GetCategory(err error) ErrorCategory {
	var re *RetentionError
	if stderrors.As(err, &re) {
		return re.Category
	}
	return CategoryInternal
}
