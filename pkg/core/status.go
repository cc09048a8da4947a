package core

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion failed (expected page state didn't occur)
	StatusErrored                   // Unexpected error (browser gone, timeout, script crash)
	StatusSkipped                   // Previous step failed or run was cancelled
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusErrored:
		return "errored"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s StepStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Element not found, count mismatch, asserted event failed
	ErrCategoryTimeout                         // Wait or navigation timed out
	ErrCategoryNavigation                      // Page failed to load or navigate
	ErrCategoryScript                          // Page expression or customStep script failed
	ErrCategoryBrowser                         // Browser session gone or unreachable
	ErrCategoryConfig                          // Invalid configuration, unsupported step
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryNavigation:
		return "navigation"
	case ErrCategoryScript:
		return "script"
	case ErrCategoryBrowser:
		return "browser"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
