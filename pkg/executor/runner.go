// Package executor orchestrates flow execution, connecting drivers to reports.
package executor

import (
	"context"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/report"
)

// ArtifactMode determines when to capture screenshots and DOM snapshots.
type ArtifactMode int

const (
	// ArtifactOnFailure captures artifacts only when a step fails.
	ArtifactOnFailure ArtifactMode = iota
	// ArtifactAlways captures artifacts before and after every step.
	ArtifactAlways
	// ArtifactNever disables artifact capture.
	ArtifactNever
)

// capturePolicy expands the mode into a per-status capture policy.
func (m ArtifactMode) capturePolicy() core.ArtifactConfig {
	switch m {
	case ArtifactAlways:
		return core.ArtifactConfig{
			CaptureOnFailure: true,
			CaptureOnSuccess: true,
			Screenshot:       true,
			DOM:              true,
			ConsoleLog:       true,
		}
	case ArtifactNever:
		return core.ArtifactConfig{}
	default:
		return core.DefaultArtifactConfig()
	}
}

// RunnerConfig configures the suite runner.
type RunnerConfig struct {
	OutputDir  string       // Report output directory
	StopOnFail bool         // Stop all flows on first failure
	Artifacts  ArtifactMode // When to capture artifacts

	// Browser/session info for reports
	Browser report.Browser
	// BaseURL, when set, rewrites the origin of recorded navigation URLs
	// before they are dispatched to the driver.
	BaseURL string
	CI      *report.CI

	// Runner metadata
	RunnerVersion string
	DriverName    string

	// Run-level variables made available to flow scripting
	Env map[string]string

	// Cursor controls. StartFrom resumes the first flow at the given step
	// index; UpTo stops each flow after that many steps. Both are meant for
	// single-flow runs.
	StartFrom int
	UpTo      int

	// AfterAllOnCancel makes the driver's terminal hook fire even when a run
	// is cancelled mid-flow.
	AfterAllOnCancel bool

	// Analyzer, when set, is consulted on step failure with the failure
	// context and its diagnosis is saved with the flow's artifacts.
	Analyzer func(ctx context.Context, req AnalysisRequest) (string, error)

	// Live progress callbacks
	OnFlowStart    func(flowIdx, totalFlows int, name, file string)
	OnStepComplete func(idx int, desc string, passed bool, durationMs int64, err string)
	OnFlowEnd      func(name string, passed bool, durationMs int64)
}

// RunResult contains the outcome of a replay run.
type RunResult struct {
	Status       report.Status
	TotalFlows   int
	PassedFlows  int
	FailedFlows  int
	SkippedFlows int
	Duration     int64 // Total duration in milliseconds
	FlowResults  []FlowResult

	// Suite is the aggregate execution record across all flows.
	Suite core.SuiteResult
}

// FlowResult contains the outcome of a single flow execution.
type FlowResult struct {
	ID           string
	Name         string
	Status       report.Status
	Duration     int64
	Error        string
	NextStep     int // Cursor position after the run; resume point on failure
	StepsTotal   int
	StepsPassed  int
	StepsFailed  int
	StepsSkipped int

	// Record holds the per-step execution record behind the counters.
	Record core.FlowResult
}

// Runner executes flows one at a time against a single driver session.
// For concurrent execution across multiple sessions, use ParallelRunner.
type Runner struct {
	config RunnerConfig
	driver core.Driver
}

// New creates a new Runner.
func New(driver core.Driver, cfg RunnerConfig) *Runner {
	return &Runner{
		config: cfg,
		driver: driver,
	}
}

// Run executes all flows and generates reports. Flows must be resolved
// (no import markers) before they reach the runner; FlowRunner resolves
// defensively but path resolution needs the original source location.
func (r *Runner) Run(ctx context.Context, flows []flow.Flow) (*RunResult, error) {
	builderCfg := report.BuilderConfig{
		OutputDir:     r.config.OutputDir,
		Browser:       r.config.Browser,
		BaseURL:       r.config.BaseURL,
		CI:            r.config.CI,
		RunnerVersion: r.config.RunnerVersion,
		DriverName:    r.config.DriverName,
	}

	index, flowDetails, err := report.BuildSkeleton(flows, builderCfg)
	if err != nil {
		return nil, err
	}

	// Write initial skeleton to disk
	if err := report.WriteSkeleton(r.config.OutputDir, index, flowDetails); err != nil {
		return nil, err
	}

	// Create index writer for coordinated updates
	indexWriter := report.NewIndexWriter(r.config.OutputDir, index)
	defer indexWriter.Close()

	// Mark run as started
	indexWriter.Start()

	// Execute flows
	results := r.executeFlows(ctx, flows, flowDetails, indexWriter)

	// Mark run as complete
	indexWriter.End()

	return buildRunResult(results, index.RunID, 0), nil
}

// executeFlows runs flows sequentially on the shared driver session.
func (r *Runner) executeFlows(ctx context.Context, flows []flow.Flow, flowDetails []report.FlowDetail, indexWriter *report.IndexWriter) []FlowResult {
	results := make([]FlowResult, len(flows))
	totalFlows := len(flows)

	stopped := false
	for i := range flows {
		if stopped || ctx.Err() != nil {
			results[i] = FlowResult{
				ID:     flowDetails[i].ID,
				Name:   flowDetails[i].Name,
				Status: report.StatusSkipped,
				Error:  "run stopped",
				Record: core.FlowResult{
					Name:     flowDetails[i].Name,
					FilePath: flows[i].SourcePath,
					Status:   core.StatusSkipped,
				},
			}
			continue
		}
		results[i] = r.executeFlow(ctx, flows[i], &flowDetails[i], indexWriter, i, totalFlows)
		if r.config.StopOnFail && results[i].Status == report.StatusFailed {
			stopped = true
		}
	}

	return results
}

// executeFlow runs a single flow.
func (r *Runner) executeFlow(ctx context.Context, f flow.Flow, detail *report.FlowDetail, indexWriter *report.IndexWriter, flowIdx, totalFlows int) FlowResult {
	fr := &FlowRunner{
		ctx:         ctx,
		flow:        f,
		detail:      detail,
		driver:      r.driver,
		config:      r.config,
		indexWriter: indexWriter,
		flowIdx:     flowIdx,
		totalFlows:  totalFlows,
	}
	return fr.Run()
}

// buildRunResult aggregates flow results into a run result. A non-zero
// wallClock overrides the summed per-flow duration (parallel runs).
func buildRunResult(flowResults []FlowResult, runID string, wallClock int64) *RunResult {
	result := &RunResult{
		TotalFlows:  len(flowResults),
		FlowResults: flowResults,
	}

	suite := core.SuiteResult{RunID: runID}
	for _, fr := range flowResults {
		result.Duration += fr.Duration
		suite.Flows = append(suite.Flows, fr.Record)
	}
	if wallClock > 0 {
		result.Duration = wallClock
	}
	suite.ComputeSummary()

	result.PassedFlows = suite.PassedFlows
	result.FailedFlows = suite.FailedFlows
	result.SkippedFlows = suite.SkippedFlows
	result.Suite = suite

	if result.FailedFlows > 0 {
		result.Status = report.StatusFailed
	} else {
		result.Status = report.StatusPassed // All passed or skipped
	}

	return result
}
