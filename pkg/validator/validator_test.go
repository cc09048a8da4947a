package validator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFlow(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validFlow = `{
  "title": "Login",
  "steps": [
    {"type": "navigate", "url": "https://example.com"},
    {"type": "click", "selectors": [["#submit"]]}
  ]
}`

func TestValidateSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "login.json", validFlow)

	result := New(nil, nil).Validate(path)
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Files) != 1 || result.Files[0] != path {
		t.Errorf("Files = %v", result.Files)
	}
	if len(result.Flows) != 1 || result.Flows[0].Title != "Login" {
		t.Errorf("Flows = %v", result.Flows)
	}
}

func TestValidateDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "a.json", validFlow)
	writeFlow(t, dir, "b.json", `{"title": "Other", "steps": [{"type": "navigate", "url": "https://x"}]}`)
	writeFlow(t, dir, "notes.txt", "not a flow")

	result := New(nil, nil).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Files) != 2 {
		t.Errorf("got %d files, want 2", len(result.Files))
	}
}

func TestValidateSkipsReportOutput(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "a.json", validFlow)
	reports := filepath.Join(dir, "reports")
	if err := os.MkdirAll(reports, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFlow(t, reports, "report.json", `{"broken`)

	result := New(nil, nil).Validate(dir)
	if !result.IsValid() {
		t.Fatalf("report output should be skipped: %v", result.Errors)
	}
	if len(result.Files) != 1 {
		t.Errorf("got %d files, want 1", len(result.Files))
	}
}

func TestValidateParseError(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "bad.json", `{"title": "Broken", "steps": [{`)

	result := New(nil, nil).Validate(path)
	if result.IsValid() {
		t.Fatal("expected a parse error")
	}
	if !strings.Contains(result.Errors[0].Error(), "parse error") {
		t.Errorf("error = %v", result.Errors[0])
	}
}

func TestValidateMissingImportTarget(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "main.json", `{
	  "title": "Main",
	  "steps": [{"type": "import", "from": "file", "target": "missing.json"}]
	}`)

	result := New(nil, nil).Validate(path)
	if result.IsValid() {
		t.Fatal("expected an error for the missing import target")
	}
	if !strings.Contains(result.Errors[0].Error(), "missing.json") {
		t.Errorf("error = %v", result.Errors[0])
	}
}

func TestValidateImportTargetExists(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "shared.json", `{"steps": [{"type": "keyDown", "key": "Enter"}]}`)
	path := writeFlow(t, dir, "main.json", `{
	  "title": "Main",
	  "steps": [{"type": "import", "from": "file", "target": "shared.json"}]
	}`)

	result := New(nil, nil).Validate(path)
	if !result.IsValid() {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}

func TestValidateUnsupportedImportSource(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "main.json", `{
	  "title": "Main",
	  "steps": [{"type": "import", "from": "url", "target": "https://example.com/steps.json"}]
	}`)

	result := New(nil, nil).Validate(path)
	if result.IsValid() {
		t.Fatal("expected an error for the url import source")
	}
	if !strings.Contains(result.Errors[0].Error(), `unsupported import source "url"`) {
		t.Errorf("error = %v", result.Errors[0])
	}
}

func TestValidateEmptyFlowWarns(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "empty.json", `{"title": "Empty", "steps": []}`)

	result := New(nil, nil).Validate(path)
	if !result.IsValid() {
		t.Fatalf("empty flow should warn, not error: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning for the empty flow")
	}
}

func TestValidateMissingSelectors(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "bad.json", `{
	  "title": "Bad",
	  "steps": [{"type": "click", "selectors": []}]
	}`)

	result := New(nil, nil).Validate(path)
	if result.IsValid() {
		t.Fatal("expected an error for missing selectors")
	}
	if !strings.Contains(result.Errors[0].Error(), "no selectors") {
		t.Errorf("error = %v", result.Errors[0])
	}
}

func TestValidateTitleFilters(t *testing.T) {
	dir := t.TempDir()
	writeFlow(t, dir, "login.json", `{"title": "Login", "steps": [{"type": "navigate", "url": "https://x"}]}`)
	writeFlow(t, dir, "smoke.json", `{"title": "Smoke Test", "steps": [{"type": "navigate", "url": "https://x"}]}`)

	result := New([]string{"Smoke*"}, nil).Validate(dir)
	if len(result.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(result.Files))
	}
	if result.Flows[0].Title != "Smoke Test" {
		t.Errorf("selected flow = %q", result.Flows[0].Title)
	}

	result = New(nil, []string{"Smoke*"}).Validate(dir)
	if len(result.Files) != 1 || result.Flows[0].Title != "Login" {
		t.Errorf("exclude filter failed: %v", result.Files)
	}
}

func TestValidateUnknownStepTypeWarns(t *testing.T) {
	dir := t.TempDir()
	path := writeFlow(t, dir, "odd.json", `{
	  "title": "Odd",
	  "steps": [{"type": "teleport"}]
	}`)

	result := New(nil, nil).Validate(path)
	if !result.IsValid() {
		t.Fatalf("unknown step types warn, not error: %v", result.Errors)
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "teleport") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning mentioning the unknown type: %v", result.Warnings)
	}
}
