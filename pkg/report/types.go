// Package report provides JSON-based replay reporting with real-time updates.
//
// Architecture:
//   - report.json: Main index file (small, frequently updated, mutex-protected)
//   - flows/flow-XXX.json: Per-flow detail files (no lock needed)
//   - assets/flow-XXX/: Per-flow artifacts (screenshots, DOM snapshots, logs)
//
// The index file serves as single source of truth for status and change
// tracking. Consumers poll report.json and only fetch changed flow details
// as needed.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
// It contains minimal info for efficient polling and change detection.
type Index struct {
	Version        string      `json:"version"`
	RunID          string      `json:"runId"`
	UpdateSeq      uint64      `json:"updateSeq"`
	Status         Status      `json:"status"`
	StartTime      time.Time   `json:"startTime"`
	EndTime        *time.Time  `json:"endTime,omitempty"`
	LastUpdated    time.Time   `json:"lastUpdated"`
	Browser        Browser     `json:"browser"`
	BaseURL        string      `json:"baseUrl,omitempty"`
	CI             *CI         `json:"ci,omitempty"`
	RecorderRunner RunnerInfo  `json:"recorderRunner"`
	Summary        Summary     `json:"summary"`
	Flows          []FlowEntry `json:"flows"`
}

// Browser contains browser session information.
type Browser struct {
	Name           string `json:"name"` // chrome, chromium, mock
	Version        string `json:"version,omitempty"`
	Headless       bool   `json:"headless"`
	UserAgent      string `json:"userAgent,omitempty"`
	ViewportWidth  int    `json:"viewportWidth,omitempty"`
	ViewportHeight int    `json:"viewportHeight,omitempty"`
}

// CI contains CI/CD build information.
type CI struct {
	Provider      string `json:"provider,omitempty"`
	BuildID       string `json:"buildId,omitempty"`
	BuildURL      string `json:"buildUrl,omitempty"`
	Branch        string `json:"branch,omitempty"`
	Commit        string `json:"commit,omitempty"`
	CommitMessage string `json:"commitMessage,omitempty"`
}

// RunnerInfo contains recorder-runner information.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // chrome, mock
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// FlowEntry is the index entry for a flow (minimal info).
type FlowEntry struct {
	Index       int            `json:"index"`      // Original position
	ID          string         `json:"id"`         // Unique flow ID
	Name        string         `json:"name"`       // Display name
	SourceFile  string         `json:"sourceFile"` // Path to recording JSON file
	DataFile    string         `json:"dataFile"`   // Path to flow detail JSON
	AssetsDir   string         `json:"assetsDir"`  // Path to assets directory
	Status      Status         `json:"status"`
	UpdateSeq   uint64         `json:"updateSeq"`
	StartTime   *time.Time     `json:"startTime,omitempty"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Duration    *int64         `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
	Commands    CommandSummary `json:"commands"`
	Error       *string        `json:"error,omitempty"`
}

// CommandSummary contains command counts for a flow.
type CommandSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running command index
}

// ============================================================================
// FLOW DETAIL (flows/flow-XXX.json)
// ============================================================================

// FlowDetail contains full flow execution details.
type FlowDetail struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	SourceFile string        `json:"sourceFile"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Duration   *int64        `json:"duration,omitempty"` // milliseconds
	Commands   []Command     `json:"commands"`
	Artifacts  FlowArtifacts `json:"artifacts"`
}

// Command represents a single step execution.
type Command struct {
	ID        string           `json:"id"`
	Index     int              `json:"index"`
	Type      string           `json:"type"`
	Label     string           `json:"label,omitempty"` // Human-readable label from the recording
	Detail    string           `json:"detail,omitempty"`
	Status    Status           `json:"status"`
	StartTime *time.Time       `json:"startTime,omitempty"`
	EndTime   *time.Time       `json:"endTime,omitempty"`
	Duration  *int64           `json:"duration,omitempty"` // milliseconds
	Params    *CommandParams   `json:"params,omitempty"`
	Element   *Element         `json:"element,omitempty"`
	Error     *Error           `json:"error,omitempty"`
	Artifacts CommandArtifacts `json:"artifacts"`
}

// CommandParams contains step-specific parameters.
type CommandParams struct {
	Selector   string `json:"selector,omitempty"`
	URL        string `json:"url,omitempty"`
	Value      string `json:"value,omitempty"`
	Key        string `json:"key,omitempty"`
	Expression string `json:"expression,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Timeout    int    `json:"timeout,omitempty"`
}

// Element contains information about the resolved element.
type Element struct {
	Found    bool    `json:"found"`
	Selector string  `json:"selector,omitempty"`
	Tag      string  `json:"tag,omitempty"`
	Text     string  `json:"text,omitempty"`
	Bounds   *Bounds `json:"bounds,omitempty"`
}

// Bounds represents element bounds in CSS pixels.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Error contains error details.
type Error struct {
	Type       string `json:"type"` // assertion, timeout, element_not_found, navigation, script, unknown
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ============================================================================
// ARTIFACTS (paths only, never inline data)
// ============================================================================

// FlowArtifacts contains flow-level artifact paths.
type FlowArtifacts struct {
	ConsoleLog string `json:"consoleLog,omitempty"`
	NetworkLog string `json:"networkLog,omitempty"`
	Analysis   string `json:"analysis,omitempty"` // AI failure analysis, if requested
}

// CommandArtifacts contains command-level artifact paths.
type CommandArtifacts struct {
	ScreenshotBefore string `json:"screenshotBefore,omitempty"`
	ScreenshotAfter  string `json:"screenshotAfter,omitempty"`
	DOMSnapshot      string `json:"domSnapshot,omitempty"`
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// FlowUpdate contains the fields to update in index for a flow.
type FlowUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Commands  CommandSummary
	Error     *string
}
