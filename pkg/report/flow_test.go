package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestFlowWriter(t *testing.T, commands int) (*FlowWriter, string) {
	t.Helper()
	dir := t.TempDir()

	detail := &FlowDetail{
		ID:   "flow-000",
		Name: "Test flow",
	}
	for i := 0; i < commands; i++ {
		detail.Commands = append(detail.Commands, Command{
			ID:     fmt.Sprintf("cmd-%03d", i),
			Index:  i,
			Type:   "click",
			Status: StatusPending,
		})
	}

	if err := ensureDir(filepath.Join(dir, "flows")); err != nil {
		t.Fatal(err)
	}

	index := &Index{
		Status: StatusPending,
		Flows: []FlowEntry{{
			ID:     "flow-000",
			Status: StatusPending,
			Commands: CommandSummary{
				Total:   commands,
				Pending: commands,
			},
		}},
		Summary: Summary{Total: 1, Pending: 1},
	}
	iw := NewIndexWriter(dir, index)
	t.Cleanup(iw.Close)

	return NewFlowWriter(detail, dir, iw), dir
}

func TestFlowWriterLifecycle(t *testing.T) {
	w, dir := newTestFlowWriter(t, 3)

	w.Start()
	w.CommandStart(0)
	w.CommandEnd(0, StatusPassed, &Element{Found: true, Tag: "button"}, nil, CommandArtifacts{})
	w.CommandStart(1)
	w.CommandEnd(1, StatusFailed, nil, &Error{Type: "timeout", Message: "element not found"}, CommandArtifacts{})
	w.SkipRemainingCommands(2)
	w.End(StatusFailed)

	detail := w.GetFlowDetail()
	if detail.Commands[0].Status != StatusPassed {
		t.Errorf("cmd 0 status = %s, want passed", detail.Commands[0].Status)
	}
	if detail.Commands[0].Duration == nil {
		t.Error("cmd 0 has no duration")
	}
	if detail.Commands[0].Element == nil || detail.Commands[0].Element.Tag != "button" {
		t.Errorf("cmd 0 element = %+v", detail.Commands[0].Element)
	}
	if detail.Commands[1].Status != StatusFailed || detail.Commands[1].Error == nil {
		t.Errorf("cmd 1 = %+v", detail.Commands[1])
	}
	if detail.Commands[2].Status != StatusSkipped {
		t.Errorf("cmd 2 status = %s, want skipped", detail.Commands[2].Status)
	}
	if detail.Duration == nil {
		t.Error("flow has no duration")
	}

	// Flow detail file was flushed to disk
	if _, err := os.Stat(filepath.Join(dir, "flows", "flow-000.json")); err != nil {
		t.Errorf("flow detail not written: %v", err)
	}
}

func TestFlowWriterEndSurfacesFirstError(t *testing.T) {
	w, _ := newTestFlowWriter(t, 2)

	w.Start()
	w.CommandStart(0)
	w.CommandEnd(0, StatusFailed, nil, &Error{Type: "element_not_found", Message: "no selector resolved"}, CommandArtifacts{})
	w.End(StatusFailed)

	entry := w.index.GetIndex().Flows[0]
	if entry.Status != StatusFailed {
		t.Errorf("index status = %s, want failed", entry.Status)
	}
	if entry.Error == nil || *entry.Error != "no selector resolved" {
		t.Errorf("index error = %v, want first command error", entry.Error)
	}
}

func TestFlowWriterMarkSkipped(t *testing.T) {
	w, _ := newTestFlowWriter(t, 4)

	// Resuming at step 2 marks earlier commands skipped
	w.MarkSkipped(0, 2)

	detail := w.GetFlowDetail()
	for i := 0; i < 2; i++ {
		if detail.Commands[i].Status != StatusSkipped {
			t.Errorf("cmd %d status = %s, want skipped", i, detail.Commands[i].Status)
		}
	}
	for i := 2; i < 4; i++ {
		if detail.Commands[i].Status != StatusPending {
			t.Errorf("cmd %d status = %s, want pending", i, detail.Commands[i].Status)
		}
	}

	// Out-of-range bounds are clamped
	w.MarkSkipped(-5, 100)
	for i := range detail.Commands {
		if detail.Commands[i].Status != StatusSkipped {
			t.Errorf("cmd %d not skipped after clamped range", i)
		}
	}
}

func TestFlowWriterSaveArtifacts(t *testing.T) {
	w, dir := newTestFlowWriter(t, 1)

	png := []byte{0x89, 'P', 'N', 'G'}
	rel, err := w.SaveScreenshot(0, "after", png)
	if err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}
	if rel != filepath.Join("assets", "flow-000", "cmd-000-after.png") {
		t.Errorf("screenshot path = %s", rel)
	}
	if _, err := os.Stat(filepath.Join(dir, rel)); err != nil {
		t.Errorf("screenshot not on disk: %v", err)
	}

	rel, err = w.SaveDOMSnapshot(0, []byte("<html></html>"))
	if err != nil {
		t.Fatalf("SaveDOMSnapshot failed: %v", err)
	}
	if !strings.HasSuffix(rel, "cmd-000-dom.html") {
		t.Errorf("dom path = %s", rel)
	}

	rel, err = w.SaveConsoleLog([]byte("log line\n"))
	if err != nil {
		t.Fatalf("SaveConsoleLog failed: %v", err)
	}
	if !strings.HasSuffix(rel, "console.log") {
		t.Errorf("console path = %s", rel)
	}

	rel, err = w.SaveAnalysis("## Diagnosis\nSelector drift.")
	if err != nil {
		t.Fatalf("SaveAnalysis failed: %v", err)
	}
	if w.GetFlowDetail().Artifacts.Analysis != rel {
		t.Errorf("analysis path not recorded in flow artifacts")
	}
}

func TestIndexWriterSummary(t *testing.T) {
	dir := t.TempDir()
	index := &Index{
		Status:  StatusPending,
		Summary: Summary{Total: 2, Pending: 2},
		Flows: []FlowEntry{
			{ID: "flow-000", Status: StatusPending},
			{ID: "flow-001", Status: StatusPending},
		},
	}

	iw := NewIndexWriter(dir, index)
	defer iw.Close()

	iw.Start()
	iw.UpdateFlow("flow-000", &FlowUpdate{Status: StatusPassed})
	iw.UpdateFlow("flow-001", &FlowUpdate{Status: StatusFailed})
	iw.End()

	got := iw.GetIndex()
	if got.Status != StatusFailed {
		t.Errorf("run status = %s, want failed", got.Status)
	}
	if got.Summary.Passed != 1 || got.Summary.Failed != 1 || got.Summary.Pending != 0 {
		t.Errorf("summary = %+v", got.Summary)
	}
	if got.EndTime == nil {
		t.Error("end time not set")
	}

	// End flushes synchronously
	if _, err := os.Stat(filepath.Join(dir, "report.json")); err != nil {
		t.Errorf("report.json not written: %v", err)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusPassed, StatusFailed, StatusSkipped}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestDetectCIGitHub(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_RUN_ID", "12345")
	t.Setenv("GITHUB_SERVER_URL", "https://github.com")
	t.Setenv("GITHUB_REPOSITORY", "acme/shop")
	t.Setenv("GITHUB_REF_NAME", "main")
	t.Setenv("GITHUB_SHA", "abc123")

	ci := DetectCI()
	if ci == nil {
		t.Fatal("expected CI info")
	}
	if ci.Provider != "github-actions" || ci.BuildID != "12345" || ci.Branch != "main" {
		t.Errorf("ci = %+v", ci)
	}
	if ci.BuildURL != "https://github.com/acme/shop/actions/runs/12345" {
		t.Errorf("buildUrl = %s", ci.BuildURL)
	}
}

func TestDetectCINone(t *testing.T) {
	clearCIEnv(t)

	if ci := DetectCI(); ci != nil {
		t.Errorf("expected nil outside CI, got %+v", ci)
	}
}

func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CI"} {
		t.Setenv(k, "")
	}
}
