package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/logger"
	"github.com/recorder-dev/recorder-runner/pkg/report"
)

// FlowRunner executes a single flow.
type FlowRunner struct {
	ctx         context.Context
	flow        flow.Flow
	detail      *report.FlowDetail
	driver      core.Driver
	config      RunnerConfig
	indexWriter *report.IndexWriter
	flowWriter  *report.FlowWriter
	script      *ScriptEngine
	flowIdx     int // Current flow index (0-based)
	totalFlows  int // Total number of flows

	// Capture policy expanded from config.Artifacts
	artifacts core.ArtifactConfig
	// Per-step execution record, aggregated into the FlowResult
	record core.FlowResult
}

// Run executes the flow and returns the result.
func (fr *FlowRunner) Run() FlowResult {
	flowStart := time.Now()

	fr.artifacts = fr.config.Artifacts.capturePolicy()
	fr.record = core.FlowResult{
		Name:      fr.detail.Name,
		FilePath:  fr.flow.SourcePath,
		StartTime: flowStart,
	}

	// Create flow writer for this flow's updates
	fr.flowWriter = report.NewFlowWriter(fr.detail, fr.config.OutputDir, fr.indexWriter)

	// Initialize script engine
	fr.script = NewScriptEngine()
	defer fr.script.Close()

	// Import system environment variables
	fr.script.ImportSystemEnv()

	// Set flow directory for relative path resolution
	if fr.flow.SourcePath != "" {
		fr.script.SetFlowDir(filepath.Dir(fr.flow.SourcePath))
	}

	// Apply run-level variables
	fr.script.SetVariables(fr.config.Env)

	// Flow-level timeout overrides the driver's default wait timeout
	if fr.flow.TimeoutMs > 0 {
		fr.driver.SetDefaultTimeout(fr.flow.TimeoutMs)
	}

	// Notify flow start
	flowName := fr.detail.Name
	flowFile := filepath.Base(fr.flow.SourcePath)
	if fr.config.OnFlowStart != nil {
		fr.config.OnFlowStart(fr.flowIdx, fr.totalFlows, flowName, flowFile)
	}

	// Mark flow as started
	fr.flowWriter.Start()

	obs := &reportingDriver{fr: fr, inner: fr.driver}
	runner, err := Prepare(&fr.flow, obs, StepRunnerConfig{
		AfterAllOnCancel: fr.config.AfterAllOnCancel,
		StartAt:          fr.startCursor(),
	})
	if err != nil {
		return fr.finish(runner, flowStart, report.StatusFailed, err.Error())
	}
	obs.idx = runner.Next()

	// Steps before the starting cursor were completed in an earlier run
	if start := runner.Next(); start > 0 {
		fr.flowWriter.MarkSkipped(0, start)
		fr.recordSkipped(runner.Flow().Steps, 0, start)
	}

	upTo := len(runner.Flow().Steps)
	if fr.config.UpTo > 0 && fr.config.UpTo < upTo {
		upTo = fr.config.UpTo
	}

	done, runErr := runner.RunUpTo(fr.ctx, upTo)

	switch {
	case runErr == nil && done:
		return fr.finish(runner, flowStart, report.StatusPassed, "")

	case runErr == nil:
		// Partial run stopped at the requested step; the rest never ran.
		fr.flowWriter.SkipRemainingCommands(runner.Next())
		fr.recordSkipped(runner.Flow().Steps, runner.Next(), len(runner.Flow().Steps))
		return fr.finish(runner, flowStart, report.StatusPassed, "")

	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		fr.flowWriter.SkipRemainingCommands(runner.Next())
		fr.recordSkipped(runner.Flow().Steps, runner.Next(), len(runner.Flow().Steps))
		return fr.finish(runner, flowStart, report.StatusSkipped, "execution cancelled")

	default:
		return fr.failStep(runner, obs, flowStart, runErr)
	}
}

// startCursor returns the initial cursor for this flow (resume support).
func (fr *FlowRunner) startCursor() int {
	if fr.config.StartFrom > 0 && fr.flowIdx == 0 {
		return fr.config.StartFrom
	}
	return 0
}

// recordSkipped appends skipped step records for [from, to).
func (fr *FlowRunner) recordSkipped(steps []flow.Step, from, to int) {
	if from < 0 {
		from = 0
	}
	if to > len(steps) {
		to = len(steps)
	}
	for i := from; i < to; i++ {
		fr.record.Steps = append(fr.record.Steps, core.StepResult{
			Step:    steps[i],
			Index:   i,
			Command: string(steps[i].Type()),
			Status:  core.StatusSkipped,
		})
	}
}

// failStep records a step failure, skips the rest of the flow, and runs the
// failure analyzer when one is configured.
func (fr *FlowRunner) failStep(runner *StepRunner, obs *reportingDriver, flowStart time.Time, runErr error) FlowResult {
	var stepErr *StepError
	if !errors.As(runErr, &stepErr) {
		// Failure outside any step (e.g. BeforeAllSteps)
		return fr.finish(runner, flowStart, report.StatusFailed, runErr.Error())
	}

	idx := stepErr.Index
	errorInfo := errToReportError(stepErr.Err, obs.lastMessage())
	status, category := stepFailureStatus(stepErr.Err)

	// Capture failure artifacts
	artifacts := obs.pendingArtifacts
	attachments := obs.pendingAttachments
	if fr.artifacts.ShouldCapture(status) {
		after, afterAtt := fr.captureArtifacts(idx, "after")
		artifacts.ScreenshotAfter = after.ScreenshotAfter
		artifacts.DOMSnapshot = after.DOMSnapshot
		attachments = append(attachments, afterAtt...)
	}

	fr.flowWriter.CommandEnd(idx, report.StatusFailed, commandResultToElement(obs.lastResult), errorInfo, artifacts)

	fr.record.Steps = append(fr.record.Steps, core.StepResult{
		Step:        stepErr.Step,
		Index:       idx,
		Command:     string(stepErr.Step.Type()),
		ExecutedBy:  executedBy(stepErr.Step),
		Status:      status,
		Category:    category,
		StartTime:   obs.stepStart,
		Duration:    time.Duration(obs.stepDuration()) * time.Millisecond,
		Message:     errorInfo.Message,
		Error:       stepErr.Err.Error(),
		Element:     lastElement(obs.lastResult),
		Attachments: attachments,
	})

	if fr.config.OnStepComplete != nil {
		fr.config.OnStepComplete(idx, stepErr.Step.Describe(), false, obs.stepDuration(), errorInfo.Message)
	}

	// Skip everything after the failing step
	fr.flowWriter.SkipRemainingCommands(idx + 1)
	fr.recordSkipped(runner.Flow().Steps, idx+1, len(runner.Flow().Steps))

	fr.analyzeFailure(stepErr, errorInfo, artifacts)

	return fr.finish(runner, flowStart, report.StatusFailed, errorInfo.Message)
}

// analyzeFailure asks the configured analyzer for a failure diagnosis and
// stores it alongside the flow's artifacts.
func (fr *FlowRunner) analyzeFailure(stepErr *StepError, errorInfo *report.Error, artifacts report.CommandArtifacts) {
	if fr.config.Analyzer == nil {
		return
	}

	stepJSON, _ := json.Marshal(stepErr.Step)

	var dom string
	if data, err := fr.driver.DOMSnapshot(); err == nil {
		dom = string(data)
	}

	text, err := fr.config.Analyzer(fr.ctx, AnalysisRequest{
		FlowName:     fr.detail.Name,
		StepIndex:    stepErr.Index,
		StepJSON:     string(stepJSON),
		StepDetail:   stepErr.Step.Describe(),
		ErrorMessage: errorInfo.Message,
		DOM:          dom,
	})
	if err != nil {
		logger.Warn("failure analysis for %s: %v", fr.detail.ID, err)
		return
	}

	if _, err := fr.flowWriter.SaveAnalysis(text); err != nil {
		logger.Warn("save analysis for %s: %v", fr.detail.ID, err)
	}
}

// finish closes out the flow report and builds the FlowResult.
func (fr *FlowRunner) finish(runner *StepRunner, flowStart time.Time, status report.Status, errMsg string) FlowResult {
	fr.saveConsoleLog()
	fr.flowWriter.End(status)

	flowDuration := time.Since(flowStart).Milliseconds()

	if fr.config.OnFlowEnd != nil {
		fr.config.OnFlowEnd(fr.detail.Name, status == report.StatusPassed, flowDuration)
	}

	next := 0
	total := 0
	if runner != nil {
		next = runner.Next()
		total = len(runner.Flow().Steps)
	}

	fr.record.Status = coreStatus(status)
	fr.record.Duration = time.Since(flowStart)
	fr.record.Error = errMsg
	fr.record.BrowserInfo = fr.driver.GetBrowserInfo()
	fr.record.ComputeSummary()

	return FlowResult{
		ID:           fr.detail.ID,
		Name:         fr.detail.Name,
		Status:       status,
		Duration:     flowDuration,
		Error:        errMsg,
		NextStep:     next,
		StepsTotal:   total,
		StepsPassed:  fr.record.PassedSteps,
		StepsFailed:  fr.record.FailedSteps,
		StepsSkipped: fr.record.SkippedSteps,
		Record:       fr.record,
	}
}

// saveConsoleLog stores captured page console output with the flow's
// artifacts, when the driver captures it.
func (fr *FlowRunner) saveConsoleLog() {
	src, okSrc := fr.driver.(core.ConsoleLogSource)
	if !okSrc {
		return
	}
	entries := src.ConsoleLog()
	if len(entries) == 0 {
		return
	}

	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s [%s] %s\n", e.Timestamp.Format(time.RFC3339Nano), e.Level, e.Message)
	}

	path, err := fr.flowWriter.SaveConsoleLog(buf.Bytes())
	if err != nil {
		logger.Warn("save console log for %s: %v", fr.detail.ID, err)
		return
	}

	artifacts := fr.flowWriter.GetFlowDetail().Artifacts
	artifacts.ConsoleLog = path
	fr.flowWriter.SetFlowArtifacts(artifacts)
}

// captureArtifacts captures a screenshot and, for the "after" timing, a DOM
// snapshot. Returns the report paths and the attachment records.
func (fr *FlowRunner) captureArtifacts(cmdIdx int, timing string) (report.CommandArtifacts, []core.Attachment) {
	var artifacts report.CommandArtifacts
	var attachments []core.Attachment

	if fr.artifacts.Screenshot {
		if data, err := fr.driver.Screenshot(); err == nil && len(data) > 0 {
			path, saveErr := fr.flowWriter.SaveScreenshot(cmdIdx, timing, data)
			if saveErr == nil {
				if timing == "before" {
					artifacts.ScreenshotBefore = path
				} else {
					artifacts.ScreenshotAfter = path
				}
				attachments = append(attachments, core.NewScreenshotAttachment(path, data))
			}
		}
	}

	if timing == "after" && fr.artifacts.DOM {
		if data, err := fr.driver.DOMSnapshot(); err == nil && len(data) > 0 {
			path, saveErr := fr.flowWriter.SaveDOMSnapshot(cmdIdx, data)
			if saveErr == nil {
				artifacts.DOMSnapshot = path
				attachments = append(attachments, core.NewDOMAttachment(path, data))
			}
		}
	}

	return artifacts, attachments
}

// rebaseURL swaps the scheme and host of an absolute http(s) URL for those of
// base, keeping the recorded path, query, and fragment. Anything else passes
// through unchanged.
func rebaseURL(raw, base string) string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String()
}

// executedBy reports which component executes a step.
func executedBy(step flow.Step) core.ExecutedBy {
	if IsRunnerStep(step) {
		return core.ExecutedByRunner
	}
	return core.ExecutedByDriver
}

// reportingDriver wraps the real driver so every step execution flows through
// the report writers and progress callbacks. It implements all lifecycle
// hooks, delegating to the wrapped driver's hooks when present.
type reportingDriver struct {
	fr    *FlowRunner
	inner core.Driver

	idx                int // index of the step currently executing
	stepStart          time.Time
	lastResult         *core.CommandResult
	pendingArtifacts   report.CommandArtifacts
	pendingAttachments []core.Attachment
}

func (d *reportingDriver) Execute(step flow.Step, f *flow.Flow) *core.CommandResult {
	var result *core.CommandResult
	if IsRunnerStep(step) {
		result = d.fr.script.ExecuteCustom(step.(*flow.CustomStep))
	} else {
		result = d.inner.Execute(step, f)
	}
	d.lastResult = result
	return result
}

func (d *reportingDriver) Screenshot() ([]byte, error)       { return d.inner.Screenshot() }
func (d *reportingDriver) DOMSnapshot() ([]byte, error)      { return d.inner.DOMSnapshot() }
func (d *reportingDriver) GetBrowserInfo() *core.BrowserInfo { return d.inner.GetBrowserInfo() }
func (d *reportingDriver) SetDefaultTimeout(ms int)          { d.inner.SetDefaultTimeout(ms) }

func (d *reportingDriver) BeforeAllSteps(f *flow.Flow) error {
	if h, ok := d.inner.(core.BeforeAllHook); ok {
		return h.BeforeAllSteps(f)
	}
	return nil
}

func (d *reportingDriver) BeforeEachStep(step flow.Step, f *flow.Flow) error {
	d.stepStart = time.Now()
	d.lastResult = nil
	d.pendingArtifacts = report.CommandArtifacts{}
	d.pendingAttachments = nil

	if d.fr.artifacts.ShouldCapture(core.StatusPassed) {
		d.pendingArtifacts, d.pendingAttachments = d.fr.captureArtifacts(d.idx, "before")
	}

	// Expand variables in step fields before execution
	d.fr.script.ExpandStep(step)

	// Point recorded navigations at the configured origin
	if d.fr.config.BaseURL != "" {
		if nav, ok := step.(*flow.NavigateStep); ok {
			nav.URL = rebaseURL(nav.URL, d.fr.config.BaseURL)
		}
	}

	d.fr.flowWriter.CommandStart(d.idx)

	if h, ok := d.inner.(core.BeforeEachHook); ok {
		return h.BeforeEachStep(step, f)
	}
	return nil
}

func (d *reportingDriver) AfterEachStep(step flow.Step, f *flow.Flow) error {
	if h, ok := d.inner.(core.AfterEachHook); ok {
		if err := h.AfterEachStep(step, f); err != nil {
			return err
		}
	}

	artifacts := d.pendingArtifacts
	attachments := d.pendingAttachments
	if d.fr.artifacts.ShouldCapture(core.StatusPassed) {
		after, afterAtt := d.fr.captureArtifacts(d.idx, "after")
		artifacts.ScreenshotAfter = after.ScreenshotAfter
		artifacts.DOMSnapshot = after.DOMSnapshot
		attachments = append(attachments, afterAtt...)
	}

	d.fr.flowWriter.CommandEnd(d.idx, report.StatusPassed, commandResultToElement(d.lastResult), nil, artifacts)

	res := core.StepResult{
		Step:        step,
		Index:       d.idx,
		Command:     string(step.Type()),
		ExecutedBy:  executedBy(step),
		Status:      core.StatusPassed,
		StartTime:   d.stepStart,
		Duration:    time.Since(d.stepStart),
		Element:     lastElement(d.lastResult),
		Attachments: attachments,
	}
	if d.lastResult != nil {
		res.Message = d.lastResult.Message
		res.Data = d.lastResult.Data
	}
	d.fr.record.Steps = append(d.fr.record.Steps, res)

	if d.fr.config.OnStepComplete != nil {
		d.fr.config.OnStepComplete(d.idx, step.Describe(), true, d.stepDuration(), "")
	}

	d.idx++
	return nil
}

func (d *reportingDriver) AfterAllSteps(f *flow.Flow) error {
	if h, ok := d.inner.(core.AfterAllHook); ok {
		return h.AfterAllSteps(f)
	}
	return nil
}

// stepDuration returns the elapsed time of the current step in milliseconds.
func (d *reportingDriver) stepDuration() int64 {
	if d.stepStart.IsZero() {
		return 0
	}
	return time.Since(d.stepStart).Milliseconds()
}

// lastMessage returns the message of the last driver result, if any.
func (d *reportingDriver) lastMessage() string {
	if d.lastResult == nil {
		return ""
	}
	return d.lastResult.Message
}

// lastElement returns the element of a driver result, if any.
func lastElement(r *core.CommandResult) *core.ElementInfo {
	if r == nil {
		return nil
	}
	return r.Element
}

// AnalysisRequest carries failure context to an AI analyzer.
type AnalysisRequest struct {
	FlowName     string
	StepIndex    int
	StepJSON     string
	StepDetail   string
	ErrorMessage string
	DOM          string
}
