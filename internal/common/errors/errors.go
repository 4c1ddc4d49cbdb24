// Package errors provides standardized error handling for the pipelines.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// ErrCodeValidation covers malformed input data: bad KB entries,
	// out-of-domain model fields, rejected report values.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"

	// ErrCodeNotFound covers missing files or resources.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeService covers external calls that are unreachable or erroring:
	// vector index, LLM endpoint, news feed, tracking server.
	ErrCodeService ErrorCode = "SERVICE_ERROR"

	// ErrCodeGeneration covers model output that is unusable after all
	// parsing attempts.
	ErrCodeGeneration ErrorCode = "GENERATION_ERROR"

	// ErrCodeParse covers model output that does not match the expected
	// citation, verdict, or JSON shape.
	ErrCodeParse ErrorCode = "PARSE_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable validation error.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("Resource not found: %s", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewServiceError creates a retryable external-service error.
func NewServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errDetails(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewGenerationError creates a non-retryable generation error.
func NewGenerationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeneration,
		Message:   "Model output unusable",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewParseError creates a non-retryable parse error.
func NewParseError(what, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeParse,
		Message:   fmt.Sprintf("Failed to parse %s", what),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf returns the error code carried by err, or "" if err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given error code.
func HasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}
