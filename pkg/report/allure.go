package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/recorder-dev/recorder-runner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name        string             `json:"name"`
	Status      string             `json:"status"`
	Stage       string             `json:"stage"`
	Start       int64              `json:"start"`
	Stop        int64              `json:"stop"`
	Steps       []AllureStep       `json:"steps"`
	Attachments []AllureAttachment `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor holds executor branding info.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	ReportName string `json:"reportName"`
}

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
func GenerateAllure(reportDir string) error {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return fmt.Errorf("create allure-results dir: %w", err)
	}

	// Write one result file per flow
	for i, entry := range index.Flows {
		var detail *FlowDetail
		if i < len(flows) {
			detail = &flows[i]
		}

		result := buildAllureResult(&entry, detail, index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}

		resultPath := filepath.Join(allureDir, entry.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}

	// Copy screenshots flat into allure-results so attachments resolve
	copyAllureAttachments(reportDir, allureDir, flows)

	if err := writeAllureCategories(allureDir); err != nil {
		return err
	}

	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return err
	}

	if err := writeAllureExecutor(allureDir); err != nil {
		return err
	}

	return nil
}

// buildAllureResult builds an AllureResult from a flow entry and its detail.
func buildAllureResult(entry *FlowEntry, detail *FlowDetail, index *Index) AllureResult {
	status := mapAllureStatus(entry.Status)

	var startMs, stopMs int64
	if entry.StartTime != nil {
		startMs = entry.StartTime.UnixMilli()
	}
	if entry.EndTime != nil {
		stopMs = entry.EndTime.UnixMilli()
	} else if entry.StartTime != nil && entry.Duration != nil {
		stopMs = startMs + *entry.Duration
	}

	labels := []AllureLabel{
		{Name: "suite", Value: entry.Name},
		{Name: "parentSuite", Value: filepath.Base(entry.SourceFile)},
		{Name: "framework", Value: "recorder-runner"},
		{Name: "severity", Value: "normal"},
	}
	if index.Browser.Name != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: index.Browser.Name})
	}

	var statusDetails AllureStatusDetails
	if entry.Error != nil {
		statusDetails.Message = *entry.Error
	}

	var steps []AllureStep
	var attachments []AllureAttachment
	if detail != nil {
		steps = buildAllureSteps(detail.Commands)
		attachments = collectAttachments(detail.Commands)
	}

	return AllureResult{
		UUID:          entry.ID,
		HistoryID:     fnv32aHash(entry.Name + ":" + entry.SourceFile),
		FullName:      entry.Name,
		Name:          entry.Name,
		Status:        status,
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		StatusDetails: statusDetails,
		Steps:         steps,
		Attachments:   attachments,
	}
}

// buildAllureSteps builds Allure steps from commands.
func buildAllureSteps(commands []Command) []AllureStep {
	steps := make([]AllureStep, 0, len(commands))
	for _, cmd := range commands {
		steps = append(steps, buildAllureStep(cmd))
	}
	return steps
}

func buildAllureStep(cmd Command) AllureStep {
	name := cmd.Type
	if cmd.Label != "" {
		name = cmd.Type + ": " + cmd.Label
	} else if cmd.Detail != "" {
		name = cmd.Detail
	}

	status := mapAllureStatus(cmd.Status)

	var startMs, stopMs int64
	if cmd.StartTime != nil {
		startMs = cmd.StartTime.UnixMilli()
	}
	if cmd.EndTime != nil {
		stopMs = cmd.EndTime.UnixMilli()
	} else if cmd.StartTime != nil && cmd.Duration != nil {
		stopMs = startMs + *cmd.Duration
	}

	var attachments []AllureAttachment
	if cmd.Artifacts.ScreenshotBefore != "" {
		attachments = append(attachments, AllureAttachment{
			Name:   "Before",
			Source: filepath.Base(cmd.Artifacts.ScreenshotBefore),
			Type:   "image/png",
		})
	}
	if cmd.Artifacts.ScreenshotAfter != "" {
		attachments = append(attachments, AllureAttachment{
			Name:   "After",
			Source: filepath.Base(cmd.Artifacts.ScreenshotAfter),
			Type:   "image/png",
		})
	}
	if cmd.Artifacts.DOMSnapshot != "" {
		attachments = append(attachments, AllureAttachment{
			Name:   "DOM",
			Source: filepath.Base(cmd.Artifacts.DOMSnapshot),
			Type:   "text/html",
		})
	}

	return AllureStep{
		Name:        name,
		Status:      status,
		Stage:       "finished",
		Start:       startMs,
		Stop:        stopMs,
		Steps:       []AllureStep{},
		Attachments: attachments,
	}
}

// collectAttachments gathers all artifact attachments from commands (flat list for flow-level).
func collectAttachments(commands []Command) []AllureAttachment {
	var attachments []AllureAttachment
	for _, cmd := range commands {
		if cmd.Artifacts.ScreenshotBefore != "" {
			attachments = append(attachments, AllureAttachment{
				Name:   "Screenshot",
				Source: filepath.Base(cmd.Artifacts.ScreenshotBefore),
				Type:   "image/png",
			})
		}
		if cmd.Artifacts.ScreenshotAfter != "" {
			attachments = append(attachments, AllureAttachment{
				Name:   "Screenshot",
				Source: filepath.Base(cmd.Artifacts.ScreenshotAfter),
				Type:   "image/png",
			})
		}
	}
	return attachments
}

// copyAllureAttachments copies artifact files from assets subdirs into allure-results/ flat.
func copyAllureAttachments(reportDir, allureDir string, flows []FlowDetail) {
	for _, flow := range flows {
		for _, cmd := range flow.Commands {
			for _, path := range []string{cmd.Artifacts.ScreenshotBefore, cmd.Artifacts.ScreenshotAfter, cmd.Artifacts.DOMSnapshot} {
				if path == "" {
					continue
				}
				src := filepath.Join(reportDir, path)
				dst := filepath.Join(allureDir, filepath.Base(path))
				copyFile(src, dst)
			}
		}
	}
}

// copyFile copies a single file from src to dst, ignoring missing sources
// (artifacts may not exist for passed flows with artifact-on-failure mode).
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

// mapAllureStatus maps report Status to Allure status string.
func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// writeAllureCategories writes categories.json for failure categorization.
func writeAllureCategories(allureDir string) error {
	categories := []AllureCategory{
		{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*element not found.*|.*no node.*"},
		{Name: "Timeout", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*timeout.*|.*timed out.*"},
		{Name: "Navigation Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*navigation.*|.*net::.*"},
		{Name: "Assertion Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*assert.*|.*expected.*"},
		{Name: "Script Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*script.*error.*|.*expression.*"},
		{Name: "Browser Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?i).*browser.*|.*devtools.*|.*websocket.*"},
	}

	data, err := json.MarshalIndent(categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}

	return nil
}

// writeAllureEnvironment writes environment.properties with browser/runner metadata.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=recorder-runner\n")

	if index.Browser.Name != "" {
		b.WriteString(fmt.Sprintf("browser.name=%s\n", index.Browser.Name))
	}
	if index.Browser.Version != "" {
		b.WriteString(fmt.Sprintf("browser.version=%s\n", index.Browser.Version))
	}
	b.WriteString(fmt.Sprintf("browser.headless=%t\n", index.Browser.Headless))
	if index.BaseURL != "" {
		b.WriteString(fmt.Sprintf("baseUrl=%s\n", index.BaseURL))
	}
	if index.RecorderRunner.Version != "" {
		b.WriteString(fmt.Sprintf("runner.version=%s\n", index.RecorderRunner.Version))
	}
	if index.RecorderRunner.Driver != "" {
		b.WriteString(fmt.Sprintf("runner.driver=%s\n", index.RecorderRunner.Driver))
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}

	return nil
}

// writeAllureExecutor writes executor.json.
func writeAllureExecutor(allureDir string) error {
	executor := AllureExecutor{
		Name:       "recorder-runner",
		Type:       "recorder-runner",
		ReportName: "Recorder Replay",
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}

	path := filepath.Join(allureDir, "executor.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}

	return nil
}
