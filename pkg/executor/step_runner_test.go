package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// journalDriver records every hook and step invocation in order.
type journalDriver struct {
	journal []string

	failOnIndex int   // 0-based step index to fail at, -1 = never
	failWith    error // error returned for the failing step
	failBefore  bool  // fail in BeforeEachStep instead of Execute
	failAfter   bool  // fail in AfterEachStep instead of Execute
	failAll     bool  // fail in AfterAllSteps

	executed int
}

func newJournalDriver() *journalDriver {
	return &journalDriver{failOnIndex: -1}
}

func (d *journalDriver) Execute(step flow.Step, f *flow.Flow) *core.CommandResult {
	idx := d.executed
	d.journal = append(d.journal, fmt.Sprintf("run:%d:%s", idx, step.Type()))
	if d.failOnIndex == idx && !d.failBefore && !d.failAfter {
		err := d.failWith
		if err == nil {
			err = errors.New("simulated failure")
		}
		return &core.CommandResult{Success: false, Error: err}
	}
	d.executed++
	return &core.CommandResult{Success: true}
}

func (d *journalDriver) Screenshot() ([]byte, error)        { return nil, nil }
func (d *journalDriver) DOMSnapshot() ([]byte, error)       { return nil, nil }
func (d *journalDriver) GetBrowserInfo() *core.BrowserInfo  { return &core.BrowserInfo{Name: "journal"} }
func (d *journalDriver) SetDefaultTimeout(ms int)           {}

func (d *journalDriver) BeforeAllSteps(f *flow.Flow) error {
	d.journal = append(d.journal, "beforeAll")
	return nil
}

func (d *journalDriver) BeforeEachStep(step flow.Step, f *flow.Flow) error {
	d.journal = append(d.journal, fmt.Sprintf("before:%d", d.executed))
	if d.failBefore && d.failOnIndex == d.executed {
		return errors.New("beforeEach failure")
	}
	return nil
}

func (d *journalDriver) AfterEachStep(step flow.Step, f *flow.Flow) error {
	d.journal = append(d.journal, fmt.Sprintf("after:%d", d.executed-1))
	if d.failAfter && d.failOnIndex == d.executed-1 {
		return errors.New("afterEach failure")
	}
	return nil
}

func (d *journalDriver) AfterAllSteps(f *flow.Flow) error {
	d.journal = append(d.journal, "afterAll")
	if d.failAll {
		return errors.New("afterAll failure")
	}
	return nil
}

func (d *journalDriver) count(prefix string) int {
	n := 0
	for _, entry := range d.journal {
		if entry == prefix || (len(entry) > len(prefix) && entry[:len(prefix)+1] == prefix+":") {
			n++
		}
	}
	return n
}

// bareDriver implements only the required Driver surface, no hooks.
type bareDriver struct {
	executed []flow.StepType
}

func (d *bareDriver) Execute(step flow.Step, f *flow.Flow) *core.CommandResult {
	d.executed = append(d.executed, step.Type())
	return &core.CommandResult{Success: true}
}

func (d *bareDriver) Screenshot() ([]byte, error)       { return nil, nil }
func (d *bareDriver) DOMSnapshot() ([]byte, error)      { return nil, nil }
func (d *bareDriver) GetBrowserInfo() *core.BrowserInfo { return nil }
func (d *bareDriver) SetDefaultTimeout(ms int)          {}

func testFlow(n int) *flow.Flow {
	f := &flow.Flow{Title: "test flow"}
	for i := 0; i < n; i++ {
		f.Steps = append(f.Steps, &flow.KeyDownStep{
			BaseStep: flow.BaseStep{StepType: flow.StepKeyDown},
			Key:      fmt.Sprintf("k%d", i),
		})
	}
	return f
}

func TestStepRunnerRunsAllStepsInOrder(t *testing.T) {
	d := newJournalDriver()
	r, err := NewStepRunner(testFlow(3), d, StepRunnerConfig{})
	if err != nil {
		t.Fatalf("NewStepRunner: %v", err)
	}

	done, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !done {
		t.Error("Run should report completion")
	}

	want := []string{
		"beforeAll",
		"before:0", "run:0:keyDown", "after:0",
		"before:1", "run:1:keyDown", "after:1",
		"before:2", "run:2:keyDown", "after:2",
		"afterAll",
	}
	if len(d.journal) != len(want) {
		t.Fatalf("journal = %v, want %v", d.journal, want)
	}
	for i := range want {
		if d.journal[i] != want[i] {
			t.Errorf("journal[%d] = %q, want %q", i, d.journal[i], want[i])
		}
	}
}

func TestStepRunnerWithoutHooks(t *testing.T) {
	d := &bareDriver{}
	r, err := NewStepRunner(testFlow(2), d, StepRunnerConfig{})
	if err != nil {
		t.Fatalf("NewStepRunner: %v", err)
	}

	done, err := r.Run(context.Background())
	if err != nil || !done {
		t.Fatalf("Run = (%v, %v), want (true, nil)", done, err)
	}
	if len(d.executed) != 2 {
		t.Errorf("executed %d steps, want 2", len(d.executed))
	}
}

func TestStepRunnerResumesAcrossCalls(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(5), d, StepRunnerConfig{})
	ctx := context.Background()

	done, err := r.RunUpTo(ctx, 2)
	if err != nil {
		t.Fatalf("RunUpTo(2): %v", err)
	}
	if done {
		t.Error("RunUpTo(2) on a 5-step flow should not report completion")
	}
	if r.Next() != 2 {
		t.Errorf("cursor = %d, want 2", r.Next())
	}
	if got := d.count("beforeAll"); got != 1 {
		t.Errorf("beforeAll fired %d times, want 1", got)
	}
	if got := d.count("afterAll"); got != 0 {
		t.Errorf("afterAll fired %d times before completion, want 0", got)
	}

	done, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !done {
		t.Error("second Run should complete the flow")
	}

	// Each step executed exactly once, no duplicates of [0, 2)
	if got := d.count("run"); got != 5 {
		t.Errorf("runStep invoked %d times, want 5", got)
	}
	if got := d.count("beforeAll"); got != 1 {
		t.Errorf("beforeAll fired %d times across calls, want 1", got)
	}
	if got := d.count("afterAll"); got != 1 {
		t.Errorf("afterAll fired %d times, want 1", got)
	}
}

func TestStepRunnerIdempotentAfterCompletion(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(2), d, StepRunnerConfig{})
	ctx := context.Background()

	if done, _ := r.Run(ctx); !done {
		t.Fatal("first Run should complete")
	}
	journalLen := len(d.journal)

	done, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run after completion: %v", err)
	}
	if !done {
		t.Error("Run after completion should return true")
	}
	if len(d.journal) != journalLen {
		t.Errorf("Run after completion invoked hooks: %v", d.journal[journalLen:])
	}
	if !r.Completed() {
		t.Error("Completed() should report true")
	}
}

func TestStepRunnerUpToBelowCursorIsNoop(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(4), d, StepRunnerConfig{})
	ctx := context.Background()

	if _, err := r.RunUpTo(ctx, 3); err != nil {
		t.Fatalf("RunUpTo(3): %v", err)
	}
	runs := d.count("run")

	done, err := r.RunUpTo(ctx, 2)
	if err != nil {
		t.Fatalf("RunUpTo(2): %v", err)
	}
	if done {
		t.Error("RunUpTo below cursor should not report completion")
	}
	if got := d.count("run"); got != runs {
		t.Errorf("RunUpTo below cursor executed steps: %d -> %d", runs, got)
	}
	if r.Next() != 3 {
		t.Errorf("cursor moved to %d, want 3", r.Next())
	}
}

func TestStepRunnerUpToBeyondEndClamps(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(2), d, StepRunnerConfig{})

	done, err := r.RunUpTo(context.Background(), 100)
	if err != nil {
		t.Fatalf("RunUpTo(100): %v", err)
	}
	if !done {
		t.Error("RunUpTo beyond end should complete the flow")
	}
	if got := d.count("run"); got != 2 {
		t.Errorf("executed %d steps, want 2", got)
	}
}

func TestStepRunnerEmptyFlow(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(0), d, StepRunnerConfig{})

	done, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !done {
		t.Error("empty flow should complete immediately")
	}

	want := []string{"beforeAll", "afterAll"}
	if len(d.journal) != 2 || d.journal[0] != want[0] || d.journal[1] != want[1] {
		t.Errorf("journal = %v, want %v", d.journal, want)
	}
}

func TestStepRunnerFailureKeepsCursor(t *testing.T) {
	d := newJournalDriver()
	d.failOnIndex = 1
	r, _ := NewStepRunner(testFlow(3), d, StepRunnerConfig{})
	ctx := context.Background()

	done, err := r.Run(ctx)
	if done {
		t.Error("failed run should not report completion")
	}
	if err == nil {
		t.Fatal("Run should surface the step failure")
	}

	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error %v should be a *StepError", err)
	}
	if stepErr.Index != 1 {
		t.Errorf("StepError.Index = %d, want 1", stepErr.Index)
	}
	if r.Next() != 1 {
		t.Errorf("cursor = %d, want 1 (not advanced past the failing step)", r.Next())
	}
	if got := d.count("after"); got != 1 {
		t.Errorf("afterEach fired %d times, want 1 (skipped for the failing step)", got)
	}
	if got := d.count("afterAll"); got != 0 {
		t.Errorf("afterAll fired %d times after failure, want 0", got)
	}

	// A subsequent Run re-attempts the same step.
	d.failOnIndex = -1
	done, err = r.Run(ctx)
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if !done {
		t.Error("resumed Run should complete")
	}
	if got := d.count("beforeAll"); got != 1 {
		t.Errorf("beforeAll fired %d times, want 1", got)
	}
	if got := d.count("afterAll"); got != 1 {
		t.Errorf("afterAll fired %d times, want 1", got)
	}
}

func TestStepRunnerFailureUnwrapsDriverError(t *testing.T) {
	cause := core.ErrElementNotFound.WithCause(errors.New("no node for #login"))
	d := newJournalDriver()
	d.failOnIndex = 0
	d.failWith = cause

	r, _ := NewStepRunner(testFlow(1), d, StepRunnerConfig{})
	_, err := r.Run(context.Background())

	var execErr *core.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("driver error should stay reachable through the StepError: %v", err)
	}
	if execErr.Code != "element_not_found" {
		t.Errorf("Code = %q, want element_not_found", execErr.Code)
	}
}

func TestStepRunnerBeforeEachFailureSkipsStep(t *testing.T) {
	d := newJournalDriver()
	d.failOnIndex = 0
	d.failBefore = true
	r, _ := NewStepRunner(testFlow(2), d, StepRunnerConfig{})

	_, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("beforeEach failure should surface")
	}
	if got := d.count("run"); got != 0 {
		t.Errorf("runStep fired %d times after beforeEach failure, want 0", got)
	}
	if r.Next() != 0 {
		t.Errorf("cursor = %d, want 0", r.Next())
	}
}

func TestStepRunnerAfterEachFailureStopsAdvance(t *testing.T) {
	d := newJournalDriver()
	d.failOnIndex = 0
	d.failAfter = true
	r, _ := NewStepRunner(testFlow(2), d, StepRunnerConfig{})

	_, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("afterEach failure should surface")
	}
	if r.Next() != 0 {
		t.Errorf("cursor = %d, want 0 (not advanced past the failing step)", r.Next())
	}
}

func TestStepRunnerAfterAllFiresOnceEvenOnError(t *testing.T) {
	d := newJournalDriver()
	d.failAll = true
	r, _ := NewStepRunner(testFlow(1), d, StepRunnerConfig{})
	ctx := context.Background()

	done, err := r.Run(ctx)
	if done {
		t.Error("Run with failing afterAll should not report completion")
	}
	if err == nil {
		t.Fatal("afterAll failure should surface")
	}

	// The hook does not re-fire; the runner now reports completion.
	done, err = r.Run(ctx)
	if err != nil || !done {
		t.Errorf("second Run = (%v, %v), want (true, nil)", done, err)
	}
	if got := d.count("afterAll"); got != 1 {
		t.Errorf("afterAll fired %d times, want 1", got)
	}
}

func TestStepRunnerCancellation(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(4), d, StepRunnerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.RunUpTo(ctx, 2); err != nil {
		t.Fatalf("RunUpTo(2): %v", err)
	}
	cancel()

	done, err := r.Run(ctx)
	if done {
		t.Error("cancelled Run should not report completion")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if r.Next() != 2 {
		t.Errorf("cursor = %d after cancel, want 2", r.Next())
	}
	if got := d.count("afterAll"); got != 0 {
		t.Errorf("afterAll fired on cancel without AfterAllOnCancel, want 0, got %d", got)
	}

	// Resume with a fresh context.
	done, err = r.Run(context.Background())
	if err != nil || !done {
		t.Fatalf("resumed Run = (%v, %v), want (true, nil)", done, err)
	}
	if got := d.count("run"); got != 4 {
		t.Errorf("runStep invoked %d times, want 4", got)
	}
}

func TestStepRunnerAfterAllOnCancel(t *testing.T) {
	d := newJournalDriver()
	r, _ := NewStepRunner(testFlow(4), d, StepRunnerConfig{AfterAllOnCancel: true})

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := r.RunUpTo(ctx, 1); err != nil {
		t.Fatalf("RunUpTo(1): %v", err)
	}
	cancel()

	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := d.count("afterAll"); got != 1 {
		t.Errorf("afterAll fired %d times on cancel, want 1", got)
	}

	// Resuming and completing must not re-fire the terminal hook.
	if done, err := r.Run(context.Background()); err != nil || !done {
		t.Fatalf("resumed Run = (%v, %v), want (true, nil)", done, err)
	}
	if got := d.count("afterAll"); got != 1 {
		t.Errorf("afterAll fired %d times total, want 1", got)
	}
}

func TestStepRunnerStartAt(t *testing.T) {
	d := newJournalDriver()
	// Pretend steps [0, 2) already ran in an earlier process.
	d.executed = 2
	r, _ := NewStepRunner(testFlow(4), d, StepRunnerConfig{StartAt: 2})

	done, err := r.Run(context.Background())
	if err != nil || !done {
		t.Fatalf("Run = (%v, %v), want (true, nil)", done, err)
	}
	if got := d.count("run"); got != 2 {
		t.Errorf("runStep invoked %d times, want 2 (only steps [2, 4))", got)
	}
	if got := d.count("beforeAll"); got != 1 {
		t.Errorf("beforeAll fired %d times, want 1", got)
	}
}

func TestStepRunnerRejectsUnresolvedFlow(t *testing.T) {
	f := &flow.Flow{
		Title: "has import",
		Steps: []flow.Step{
			&flow.ImportStep{
				BaseStep: flow.BaseStep{StepType: flow.StepImport},
				From:     flow.ImportSourceFile,
				Target:   "steps.json",
			},
		},
	}

	if _, err := NewStepRunner(f, newJournalDriver(), StepRunnerConfig{}); err == nil {
		t.Error("NewStepRunner should reject a flow with import markers")
	}
}

func TestPrepareResolvesImports(t *testing.T) {
	dir := t.TempDir()
	stepsPath := filepath.Join(dir, "shared.json")
	if err := os.WriteFile(stepsPath, []byte(`{"steps":[{"type":"keyDown","key":"Enter"},{"type":"keyUp","key":"Enter"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &flow.Flow{
		Title:      "imports",
		SourcePath: filepath.Join(dir, "flow.json"),
		Steps: []flow.Step{
			&flow.NavigateStep{BaseStep: flow.BaseStep{StepType: flow.StepNavigate}, URL: "https://example.com"},
			&flow.ImportStep{BaseStep: flow.BaseStep{StepType: flow.StepImport}, From: "file", Target: "shared.json"},
		},
	}

	d := &bareDriver{}
	r, err := Prepare(f, d, StepRunnerConfig{})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if len(r.Flow().Steps) != 3 {
		t.Fatalf("resolved flow has %d steps, want 3", len(r.Flow().Steps))
	}

	if done, err := r.Run(context.Background()); err != nil || !done {
		t.Fatalf("Run = (%v, %v), want (true, nil)", done, err)
	}
	want := []flow.StepType{flow.StepNavigate, flow.StepKeyDown, flow.StepKeyUp}
	for i, typ := range want {
		if d.executed[i] != typ {
			t.Errorf("executed[%d] = %s, want %s", i, d.executed[i], typ)
		}
	}
}
