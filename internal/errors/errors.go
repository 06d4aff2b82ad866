package errors

import (
	"fmt"
)

// MindError is the structured error type for coursemind.
// It carries a stable code, category, and severity so callers can branch on
// failure kind instead of matching message strings.
type MindError struct {
	// Code is the unique error code (e.g., "ERR_502_CLASSIFICATION_FAILED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *MindError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *MindError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with MindError.
func (e *MindError) Is(target error) bool {
	if t, ok := target.(*MindError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *MindError) WithDetail(key, value string) *MindError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new MindError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *MindError {
	return &MindError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a MindError from an existing error.
// The error's message becomes the MindError message.
func Wrap(code string, err error) *MindError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *MindError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *MindError {
	return New(ErrCodeInvalidInput, message, cause)
}

// ClassificationError creates a classification-collaborator error.
func ClassificationError(message string, cause error) *MindError {
	return New(ErrCodeClassificationFailed, message, cause)
}

// EmbeddingError creates an embedding-collaborator error.
func EmbeddingError(message string, cause error) *MindError {
	return New(ErrCodeEmbeddingFailed, message, cause)
}

// CollectionSearchError creates a per-collection search error.
func CollectionSearchError(collection string, cause error) *MindError {
	e := New(ErrCodeCollectionSearch, fmt.Sprintf("search failed for collection %q", collection), cause)
	return e.WithDetail("collection", collection)
}

// StrategyError creates a strategy-execution error.
func StrategyError(strategy string, cause error) *MindError {
	e := New(ErrCodeStrategyFailed, fmt.Sprintf("strategy %q failed", strategy), cause)
	return e.WithDetail("strategy", strategy)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a MindError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if me, ok := err.(*MindError); ok {
		return me.Retryable
	}
	return false
}

// GetCode extracts the error code from a MindError.
// Returns empty string if not a MindError.
func GetCode(err error) string {
	if me, ok := err.(*MindError); ok {
		return me.Code
	}
	return ""
}

// GetCategory extracts the category from a MindError.
// Returns empty string if not a MindError.
func GetCategory(err error) Category {
	if me, ok := err.(*MindError); ok {
		return me.Category
	}
	return ""
}
