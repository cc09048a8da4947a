package core

import "testing"

func TestFlowResultComputeSummary(t *testing.T) {
	fr := &FlowResult{
		Steps: []StepResult{
			{Status: StatusPassed},
			{Status: StatusPassed},
			{Status: StatusFailed},
			{Status: StatusErrored},
			{Status: StatusSkipped},
		},
	}

	fr.ComputeSummary()

	if fr.TotalSteps != 5 {
		t.Errorf("TotalSteps = %d, want 5", fr.TotalSteps)
	}
	if fr.PassedSteps != 2 {
		t.Errorf("PassedSteps = %d, want 2", fr.PassedSteps)
	}
	if fr.FailedSteps != 2 {
		t.Errorf("FailedSteps = %d, want 2 (failed + errored)", fr.FailedSteps)
	}
	if fr.SkippedSteps != 1 {
		t.Errorf("SkippedSteps = %d, want 1", fr.SkippedSteps)
	}
}

func TestFlowResultAggregateStatus(t *testing.T) {
	passed := &FlowResult{Steps: []StepResult{{Status: StatusPassed}, {Status: StatusPassed}}}
	if got := passed.AggregateStatus(); got != StatusPassed {
		t.Errorf("all passed: AggregateStatus() = %s, want passed", got)
	}

	failed := &FlowResult{Steps: []StepResult{{Status: StatusPassed}, {Status: StatusErrored}}}
	if got := failed.AggregateStatus(); got != StatusFailed {
		t.Errorf("with errored step: AggregateStatus() = %s, want failed", got)
	}
}

func TestSuiteResultComputeSummary(t *testing.T) {
	sr := &SuiteResult{
		Flows: []FlowResult{
			{Status: StatusPassed},
			{Status: StatusFailed},
			{Status: StatusSkipped},
			{Status: StatusPassed},
		},
	}

	sr.ComputeSummary()

	if sr.TotalFlows != 4 {
		t.Errorf("TotalFlows = %d, want 4", sr.TotalFlows)
	}
	if sr.PassedFlows != 2 {
		t.Errorf("PassedFlows = %d, want 2", sr.PassedFlows)
	}
	if sr.FailedFlows != 1 {
		t.Errorf("FailedFlows = %d, want 1", sr.FailedFlows)
	}
	if sr.SkippedFlows != 1 {
		t.Errorf("SkippedFlows = %d, want 1", sr.SkippedFlows)
	}
}

func TestSuiteResultSuccess(t *testing.T) {
	empty := &SuiteResult{}
	if empty.Success() {
		t.Error("empty suite should not be success")
	}

	allPassed := &SuiteResult{Flows: []FlowResult{{Status: StatusPassed}}}
	if !allPassed.Success() {
		t.Error("all-passed suite should be success")
	}

	oneFailed := &SuiteResult{Flows: []FlowResult{{Status: StatusPassed}, {Status: StatusFailed}}}
	if oneFailed.Success() {
		t.Error("suite with a failed flow should not be success")
	}
}

func TestBoundsCenter(t *testing.T) {
	b := Bounds{X: 100, Y: 200, Width: 200, Height: 50}
	x, y := b.Center()
	if x != 200 || y != 225 {
		t.Errorf("Center() = (%d, %d), want (200, 225)", x, y)
	}
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{X: 10, Y: 10, Width: 20, Height: 20}

	if !b.Contains(10, 10) {
		t.Error("top-left corner should be contained")
	}
	if b.Contains(30, 30) {
		t.Error("exclusive bottom-right corner should not be contained")
	}
	if b.Contains(5, 15) {
		t.Error("point left of bounds should not be contained")
	}
}
