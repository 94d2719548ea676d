package errors

import (
	"fmt"
)

// LoreError is the structured error type for lorekit. It carries a code,
// category, and severity for logging and user presentation.
type LoreError struct {
	// Code is the unique error code (e.g., "ERR_201_PACK_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Pack, Storage, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *LoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LoreError) Unwrap() error {
	return e.Cause
}

// Is matches LoreErrors by code, enabling errors.Is.
func (e *LoreError) Is(target error) bool {
	if t, ok := target.(*LoreError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail. Returns the error for chaining.
func (e *LoreError) WithDetail(key, value string) *LoreError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *LoreError) WithSuggestion(suggestion string) *LoreError {
	e.Suggestion = suggestion
	return e
}

// New creates a LoreError with the given code and message. Category and
// severity are derived from the code.
func New(code string, message string, cause error) *LoreError {
	return &LoreError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a LoreError with a formatted message.
func Newf(code string, format string, args ...any) *LoreError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a LoreError from an existing error. Returns nil for a nil
// error.
func Wrap(code string, err error) *LoreError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ManifestError creates a manifest parsing/validation error.
func ManifestError(message string, cause error) *LoreError {
	return New(ErrCodeManifestInvalid, message, cause)
}

// StorageError creates a fatal storage-layer error.
func StorageError(message string, cause error) *LoreError {
	return New(ErrCodeStorageFailure, message, cause)
}
