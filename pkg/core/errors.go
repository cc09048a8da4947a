package core

import (
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Assertion errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_not_found",
		Message:  "no selector resolved an element",
	}
	ErrElementCountMismatch = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "element_count_mismatch",
		Message:  "element count does not satisfy the wait condition",
	}
	ErrAssertedEventFailed = &ExecutionError{
		Category: ErrCategoryAssertion,
		Code:     "asserted_event_failed",
		Message:  "asserted event did not occur",
	}

	// Timeout errors
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrWaitTimeout = &ExecutionError{
		Category: ErrCategoryTimeout,
		Code:     "wait_timeout",
		Message:  "wait condition timed out",
	}

	// Navigation errors
	ErrNavigationFailed = &ExecutionError{
		Category: ErrCategoryNavigation,
		Code:     "navigation_failed",
		Message:  "page navigation failed",
	}

	// Script errors
	ErrExpressionFailed = &ExecutionError{
		Category: ErrCategoryScript,
		Code:     "expression_failed",
		Message:  "page expression evaluation failed",
	}
	ErrScriptFailed = &ExecutionError{
		Category: ErrCategoryScript,
		Code:     "script_failed",
		Message:  "script execution failed",
	}

	// Browser errors
	ErrBrowserGone = &ExecutionError{
		Category: ErrCategoryBrowser,
		Code:     "browser_gone",
		Message:  "browser session lost",
	}
	ErrBrowserUnreachable = &ExecutionError{
		Category: ErrCategoryBrowser,
		Code:     "browser_unreachable",
		Message:  "could not connect to browser",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrUnsupportedStep = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "unsupported_step",
		Message:  "step type is not supported",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
