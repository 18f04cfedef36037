// Package errors provides structured error types for the variant store.
// Every error carries a category, a code, a message and a fatal flag. Fatal
// errors abort an ingest/load outright; everything else is reported to the
// caller and leaves the existing store, mask and view untouched.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by component.
type ErrorCategory string

const (
	ErrCategoryIngest     ErrorCategory = "INGEST"
	ErrCategoryDictionary ErrorCategory = "DICTIONARY"
	ErrCategoryFilter     ErrorCategory = "FILTER"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryPairing    ErrorCategory = "PAIRING"
	ErrCategoryExport     ErrorCategory = "EXPORT"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes.
const (
	// Fatal ingest codes
	CodeMalformedRow            = "MALFORMED_ROW"
	CodeMissingHeader           = "MISSING_HEADER"
	CodeDictionaryCapacity      = "DICTIONARY_CAPACITY"
	CodeSampleLayoutMismatch    = "SAMPLE_LAYOUT_MISMATCH"
	CodeNameSuffixExhausted     = "NAME_SUFFIX_EXHAUSTED"
	CodeInconsistentSampleTypes = "INCONSISTENT_SAMPLE_TYPES"
	CodeBadFormat               = "BAD_FORMAT"
	CodeReadFailed              = "READ_FAILED"

	// Recoverable codes
	CodeInvalidThreshold = "INVALID_THRESHOLD"
	CodeAuxFile          = "AUX_FILE"
	CodeParseError       = "PARSE_ERROR"
	CodeCompileError     = "COMPILE_ERROR"
	CodeRuntimeError     = "RUNTIME_ERROR"
	CodeMalformedLinkage = "MALFORMED_LINKAGE"
	CodeUnknownColumn    = "UNKNOWN_COLUMN"
	CodeUnknownSample    = "UNKNOWN_SAMPLE"
	CodeRowCountMismatch = "ROW_COUNT_MISMATCH"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeInvalidConfig    = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// VarError is the structured error type used throughout the system.
type VarError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Details  map[string]interface{}
	Cause    error
	Fatal    bool
}

// Error returns a formatted error string.
func (e *VarError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *VarError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *VarError) Is(target error) bool {
	var t *VarError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new VarError.
func New(category ErrorCategory, code, message string) *VarError {
	return &VarError{
		Category: category,
		Code:     code,
		Message:  message,
		Fatal:    isFatal(code),
	}
}

// Newf creates a new VarError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *VarError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new VarError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *VarError {
	return &VarError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Fatal:    isFatal(code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *VarError) WithDetails(details map[string]interface{}) *VarError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsFatal checks whether an error (or its chain) must abort the load.
func IsFatal(err error) bool {
	var ve *VarError
	if errors.As(err, &ve) {
		return ve.Fatal
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a VarError.
func GetCategory(err error) ErrorCategory {
	var ve *VarError
	if errors.As(err, &ve) {
		return ve.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a VarError.
func GetCode(err error) string {
	var ve *VarError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

func isFatal(code string) bool {
	switch code {
	case CodeMalformedRow, CodeMissingHeader, CodeDictionaryCapacity,
		CodeSampleLayoutMismatch, CodeNameSuffixExhausted,
		CodeInconsistentSampleTypes, CodeBadFormat, CodeReadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewIngestError(code, message string) *VarError {
	return New(ErrCategoryIngest, code, message)
}

func NewFilterError(code, message string, cause error) *VarError {
	return Wrap(ErrCategoryFilter, code, message, cause)
}

func NewQueryError(code, message string) *VarError {
	return New(ErrCategoryQuery, code, message)
}

func NewPairingError(code, message string) *VarError {
	return New(ErrCategoryPairing, code, message)
}

func NewInternalError(message string, cause error) *VarError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
