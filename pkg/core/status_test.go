package core

import "testing"

func TestStepStatusString(t *testing.T) {
	cases := []struct {
		status StepStatus
		want   string
	}{
		{StatusPending, "pending"},
		{StatusRunning, "running"},
		{StatusPassed, "passed"},
		{StatusFailed, "failed"},
		{StatusErrored, "errored"},
		{StatusSkipped, "skipped"},
		{StepStatus(99), "unknown"},
	}

	for _, c := range cases {
		if got := c.status.String(); got != c.want {
			t.Errorf("StepStatus(%d).String() = %q, want %q", c.status, got, c.want)
		}
	}
}

func TestStepStatusIsTerminal(t *testing.T) {
	terminal := []StepStatus{StatusPassed, StatusFailed, StatusErrored, StatusSkipped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	for _, s := range []StepStatus{StatusPending, StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStepStatusIsSuccess(t *testing.T) {
	if !StatusPassed.IsSuccess() {
		t.Error("passed should be success")
	}
	for _, s := range []StepStatus{StatusFailed, StatusErrored, StatusSkipped, StatusPending} {
		if s.IsSuccess() {
			t.Errorf("%s should not be success", s)
		}
	}
}

func TestErrorCategoryString(t *testing.T) {
	cases := []struct {
		cat  ErrorCategory
		want string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryAssertion, "assertion"},
		{ErrCategoryTimeout, "timeout"},
		{ErrCategoryNavigation, "navigation"},
		{ErrCategoryScript, "script"},
		{ErrCategoryBrowser, "browser"},
		{ErrCategoryConfig, "config"},
		{ErrorCategory(99), "unknown"},
	}

	for _, c := range cases {
		if got := c.cat.String(); got != c.want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", c.cat, got, c.want)
		}
	}
}
