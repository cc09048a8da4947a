package executor

import (
	"errors"
	"fmt"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/report"
)

// commandResultToElement converts core.CommandResult to report.Element.
func commandResultToElement(r *core.CommandResult) *report.Element {
	if r == nil || r.Element == nil {
		return nil
	}

	el := r.Element
	element := &report.Element{
		Found:    true,
		Selector: el.Selector,
		Tag:      el.Tag,
		Text:     el.Text,
	}

	element.Bounds = &report.Bounds{
		X:      el.Bounds.X,
		Y:      el.Bounds.Y,
		Width:  el.Bounds.Width,
		Height: el.Bounds.Height,
	}

	return element
}

// coreStatus maps a report status onto the execution model status.
func coreStatus(s report.Status) core.StepStatus {
	switch s {
	case report.StatusPassed:
		return core.StatusPassed
	case report.StatusFailed:
		return core.StatusFailed
	case report.StatusSkipped:
		return core.StatusSkipped
	case report.StatusRunning:
		return core.StatusRunning
	default:
		return core.StatusPending
	}
}

// stepFailureStatus classifies a step error. Assertion and timeout failures
// mean the page did not reach the expected state; everything else is an
// unexpected error.
func stepFailureStatus(err error) (core.StepStatus, core.ErrorCategory) {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Category {
		case core.ErrCategoryAssertion, core.ErrCategoryTimeout:
			return core.StatusFailed, execErr.Category
		default:
			return core.StatusErrored, execErr.Category
		}
	}
	return core.StatusErrored, core.ErrCategoryNone
}

// errToReportError converts a step failure into a report.Error.
func errToReportError(err error, message string) *report.Error {
	if err == nil && message == "" {
		return nil
	}

	errType := "unknown"
	details := ""

	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		errType = execErr.Code
		if len(execErr.Details) > 0 {
			details = fmt.Sprintf("%v", execErr.Details)
		}
		if message == "" {
			message = execErr.Error()
		}
	} else if err != nil && message == "" {
		message = err.Error()
	}

	return &report.Error{
		Type:    errType,
		Message: message,
		Details: details,
	}
}
