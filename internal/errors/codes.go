// Package errors provides structured error handling for coursemind.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors (collections, indexes)
//   - 3XX: Network errors (Ollama, external services)
//   - 4XX: Validation errors
//   - 5XX: Retrieval errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates collection store and index errors.
	CategoryStore Category = "STORE"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryRetrieval indicates retrieval pipeline errors.
	CategoryRetrieval Category = "RETRIEVAL"
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

	// Store errors (200-299)
	ErrCodeCollectionNotFound = "ERR_201_COLLECTION_NOT_FOUND"
	ErrCodeStoreOpen          = "ERR_202_STORE_OPEN"
	ErrCodeIndexCorrupt       = "ERR_203_INDEX_CORRUPT"
	ErrCodeStoreLocked        = "ERR_204_STORE_LOCKED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeOllamaUnavailable  = "ERR_302_OLLAMA_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeQueryEmpty      = "ERR_402_QUERY_EMPTY"
	ErrCodeInvalidStrategy = "ERR_403_INVALID_STRATEGY"
	ErrCodeInvalidAlpha    = "ERR_404_INVALID_ALPHA"

	// Retrieval errors (500-599)
	ErrCodeInternal             = "ERR_501_INTERNAL"
	ErrCodeClassificationFailed = "ERR_502_CLASSIFICATION_FAILED"
	ErrCodeEmbeddingFailed      = "ERR_503_EMBEDDING_FAILED"
	ErrCodeCollectionSearch     = "ERR_504_COLLECTION_SEARCH_FAILED"
	ErrCodeStrategyFailed       = "ERR_505_STRATEGY_FAILED"
	ErrCodeTotalFailure         = "ERR_506_TOTAL_FAILURE"
	ErrCodeAnswerFailed         = "ERR_507_ANSWER_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryRetrieval
	}

	// Extract numeric portion (e.g., "102" from "ERR_102_CONFIG_INVALID")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryRetrieval
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeIndexCorrupt, ErrCodeConfigInvalid:
		return SeverityFatal
	}

	// Recovered collaborator failures degrade, they do not abort.
	switch code {
	case ErrCodeClassificationFailed, ErrCodeEmbeddingFailed, ErrCodeCollectionSearch:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeOllamaUnavailable:
		return true
	default:
		return false
	}
}
