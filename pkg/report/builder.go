package report

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// BuilderConfig contains configuration for building the report skeleton.
type BuilderConfig struct {
	OutputDir     string  // Base output directory for reports
	Browser       Browser // Browser session information
	BaseURL       string  // Base URL the flows run against (optional)
	CI            *CI     // CI/CD information (optional)
	RunnerVersion string  // Recorder runner version
	DriverName    string  // Driver name (chrome, mock)
}

// BuildSkeleton creates the initial report structure from parsed flows.
// All flows and commands are set to "pending" status.
// This should be called after import resolution, before execution starts.
func BuildSkeleton(flows []flow.Flow, cfg BuilderConfig) (*Index, []FlowDetail, error) {
	now := time.Now()

	index := &Index{
		Version:     Version,
		RunID:       uuid.NewString(),
		UpdateSeq:   0,
		Status:      StatusPending,
		StartTime:   now,
		LastUpdated: now,
		Browser:     cfg.Browser,
		BaseURL:     cfg.BaseURL,
		CI:          cfg.CI,
		RecorderRunner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
		},
		Summary: Summary{
			Total:   len(flows),
			Pending: len(flows),
		},
		Flows: make([]FlowEntry, len(flows)),
	}

	flowDetails := make([]FlowDetail, len(flows))

	for i, f := range flows {
		flowID := fmt.Sprintf("flow-%03d", i)
		flowName := extractFlowName(f)

		commands := buildCommands(f.Steps)

		index.Flows[i] = FlowEntry{
			Index:      i,
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			DataFile:   filepath.Join("flows", flowID+".json"),
			AssetsDir:  filepath.Join("assets", flowID),
			Status:     StatusPending,
			UpdateSeq:  0,
			Commands: CommandSummary{
				Total:   len(commands),
				Pending: len(commands),
			},
		}

		flowDetails[i] = FlowDetail{
			ID:         flowID,
			Name:       flowName,
			SourceFile: f.SourcePath,
			Commands:   commands,
			Artifacts:  FlowArtifacts{},
		}
	}

	return index, flowDetails, nil
}

// extractFlowName extracts a display name from the flow.
func extractFlowName(f flow.Flow) string {
	if f.Title != "" {
		return f.Title
	}
	base := filepath.Base(f.SourcePath)
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext)
}

// buildCommands creates Command entries from flow steps.
func buildCommands(steps []flow.Step) []Command {
	commands := make([]Command, len(steps))
	for i, step := range steps {
		commands[i] = Command{
			ID:        fmt.Sprintf("cmd-%03d", i),
			Index:     i,
			Type:      string(step.Type()),
			Label:     step.Label(),
			Detail:    step.Describe(),
			Status:    StatusPending,
			Params:    extractParams(step),
			Artifacts: CommandArtifacts{},
		}
	}
	return commands
}

// extractParams extracts command parameters from a step.
func extractParams(step flow.Step) *CommandParams {
	params := &CommandParams{}
	hasContent := false

	if sel := extractSelector(step); sel != "" {
		params.Selector = sel
		hasContent = true
	}

	switch s := step.(type) {
	case *flow.NavigateStep:
		params.URL = s.URL
		hasContent = true
	case *flow.ChangeStep:
		params.Value = s.Value
		hasContent = true
	case *flow.KeyDownStep:
		params.Key = s.Key
		hasContent = true
	case *flow.KeyUpStep:
		params.Key = s.Key
		hasContent = true
	case *flow.WaitForExpressionStep:
		params.Expression = s.Expression
		hasContent = true
	case *flow.SetViewportStep:
		params.Width = s.Width
		params.Height = s.Height
		hasContent = true
	}

	if t := step.Timeout(); t > 0 {
		params.Timeout = t
		hasContent = true
	}

	if !hasContent {
		return nil
	}
	return params
}

// extractSelector returns the primary selector of steps that target an element.
func extractSelector(step flow.Step) string {
	var sels flow.Selectors

	switch s := step.(type) {
	case *flow.ClickStep:
		sels = s.Selectors
	case *flow.DoubleClickStep:
		sels = s.Selectors
	case *flow.HoverStep:
		sels = s.Selectors
	case *flow.ScrollStep:
		sels = s.Selectors
	case *flow.ChangeStep:
		sels = s.Selectors
	case *flow.WaitForElementStep:
		sels = s.Selectors
	default:
		return ""
	}

	if sels.IsEmpty() {
		return ""
	}
	return sels.Describe()
}

// WriteSkeleton writes the initial skeleton to disk.
// Creates report.json, all flow detail files, and report.html with pending status.
func WriteSkeleton(outputDir string, index *Index, flowDetails []FlowDetail) error {
	if err := ensureDir(filepath.Join(outputDir, "flows")); err != nil {
		return fmt.Errorf("create flows dir: %w", err)
	}
	if err := ensureDir(filepath.Join(outputDir, "assets")); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	for _, fd := range flowDetails {
		flowPath := filepath.Join(outputDir, "flows", fd.ID+".json")
		if err := atomicWriteJSON(flowPath, fd); err != nil {
			return fmt.Errorf("write flow %s: %w", fd.ID, err)
		}

		assetsPath := filepath.Join(outputDir, "assets", fd.ID)
		if err := ensureDir(assetsPath); err != nil {
			return fmt.Errorf("create assets dir for %s: %w", fd.ID, err)
		}
	}

	indexPath := filepath.Join(outputDir, "report.json")
	if err := atomicWriteJSON(indexPath, index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	// Generate HTML report (for live viewing)
	if err := GenerateHTML(outputDir, HTMLConfig{
		Title:     "Replay Report",
		ReportDir: outputDir,
	}); err != nil {
		return fmt.Errorf("generate html: %w", err)
	}

	return nil
}
