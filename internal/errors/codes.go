// Package errors provides structured error handling for lorekit.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Pack and content errors
//   - 3XX: Storage errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

import "strings"

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryPack indicates content-pack loading and parsing errors.
	CategoryPack Category = "PACK"
	// CategoryStorage indicates relational, full-text, or vector store errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Pack errors (200-299)
	ErrCodePackNotFound    = "ERR_201_PACK_NOT_FOUND"
	ErrCodeManifestInvalid = "ERR_202_MANIFEST_INVALID"
	ErrCodeFileUnreadable  = "ERR_203_FILE_UNREADABLE"
	ErrCodeIndexLocked     = "ERR_204_INDEX_LOCKED"

	// Storage errors (300-399)
	ErrCodeStorageFailure = "ERR_301_STORAGE_FAILURE"
	ErrCodeIndexCorrupt   = "ERR_302_INDEX_CORRUPT"
	ErrCodeVectorFailure  = "ERR_303_VECTOR_FAILURE"

	// Validation errors (400-499)
	ErrCodeInvalidQuery = "ERR_401_INVALID_QUERY"
	ErrCodeInvalidInput = "ERR_402_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode derives the category from the code's number block.
func categoryFromCode(code string) Category {
	switch {
	case strings.HasPrefix(code, "ERR_1"):
		return CategoryConfig
	case strings.HasPrefix(code, "ERR_2"):
		return CategoryPack
	case strings.HasPrefix(code, "ERR_3"):
		return CategoryStorage
	case strings.HasPrefix(code, "ERR_4"):
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives the severity from the code. Storage failures
// are fatal per the retrieval error policy; everything else is an
// ordinary error.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStorageFailure, ErrCodeIndexCorrupt:
		return SeverityFatal
	case ErrCodeVectorFailure:
		return SeverityWarning
	default:
		return SeverityError
	}
}
