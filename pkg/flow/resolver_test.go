package flow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveSplicesImportedSteps(t *testing.T) {
	dir := t.TempDir()

	loginSteps := `{
  "title": "Login fragment",
  "steps": [
    {"type": "change", "selectors": [["#user"]], "value": "alice"},
    {"type": "change", "selectors": [["#pass"]], "value": "secret"},
    {"type": "keyDown", "key": "Enter"}
  ]
}`
	if err := os.WriteFile(filepath.Join(dir, "login.json"), []byte(loginSteps), 0o644); err != nil {
		t.Fatal(err)
	}

	main := `{
  "title": "Checkout",
  "steps": [
    {"type": "navigate", "url": "https://shop.example.com/"},
    {"type": "import", "from": "file", "target": "login.json"},
    {"type": "click", "selectors": [["#buy"]]}
  ]
}`
	mainPath := filepath.Join(dir, "checkout.json")
	if err := os.WriteFile(mainPath, []byte(main), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := ParseFile(mainPath)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	resolved, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	wantTypes := []StepType{StepNavigate, StepChange, StepChange, StepKeyDown, StepClick}
	if len(resolved.Steps) != len(wantTypes) {
		t.Fatalf("got %d steps, want %d", len(resolved.Steps), len(wantTypes))
	}
	for i, want := range wantTypes {
		if resolved.Steps[i].Type() != want {
			t.Errorf("step %d: type = %s, want %s", i, resolved.Steps[i].Type(), want)
		}
	}

	if resolved.HasImports() {
		t.Error("resolved flow must not contain import markers")
	}
	// Original flow is untouched
	if len(f.Steps) != 3 {
		t.Errorf("input flow mutated: %d steps", len(f.Steps))
	}
}

func TestResolveWithoutImportsCopies(t *testing.T) {
	f, err := Parse([]byte(`{"title": "T", "steps": [{"type": "keyDown", "key": "a"}]}`), "")
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(resolved.Steps))
	}
	if resolved.Title != "T" {
		t.Errorf("title not carried over: %q", resolved.Title)
	}
}

func TestResolveUnsupportedSource(t *testing.T) {
	f := &Flow{
		Title: "T",
		Steps: []Step{
			&ImportStep{
				BaseStep: BaseStep{StepType: StepImport},
				From:     "url",
				Target:   "https://example.com/fragment.json",
			},
		},
	}

	_, err := Resolve(f)
	if err == nil {
		t.Fatal("expected error for unsupported import source")
	}

	var srcErr *UnsupportedSourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error is %T, want *UnsupportedSourceError", err)
	}
	if srcErr.Source != "url" {
		t.Errorf("source = %q, want url", srcErr.Source)
	}
}

func TestResolveMissingTarget(t *testing.T) {
	f := &Flow{
		SourcePath: filepath.Join(t.TempDir(), "main.json"),
		Steps: []Step{
			&ImportStep{
				BaseStep: BaseStep{StepType: StepImport},
				From:     ImportSourceFile,
				Target:   "missing.json",
			},
		},
	}

	_, err := Resolve(f)
	if err == nil {
		t.Fatal("expected error for missing import target")
	}

	var impErr *ImportError
	if !errors.As(err, &impErr) {
		t.Fatalf("error is %T, want *ImportError", err)
	}
	if impErr.Target != "missing.json" {
		t.Errorf("target = %q, want missing.json", impErr.Target)
	}
}

func TestResolveTargetWithoutSteps(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "frag.json"), []byte(`{"title": "no steps here"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	f := &Flow{
		SourcePath: filepath.Join(dir, "main.json"),
		Steps: []Step{
			&ImportStep{
				BaseStep: BaseStep{StepType: StepImport},
				From:     ImportSourceFile,
				Target:   "frag.json",
			},
		},
	}

	_, err := Resolve(f)
	if err == nil {
		t.Fatal("expected error for target without steps field")
	}
	var impErr *ImportError
	if !errors.As(err, &impErr) {
		t.Fatalf("error is %T, want *ImportError", err)
	}
	if !errors.Is(err, errMissingSteps) {
		t.Errorf("cause = %v, want missing steps", impErr.Cause)
	}
}

func TestResolveAbsoluteTarget(t *testing.T) {
	dir := t.TempDir()
	fragPath := filepath.Join(dir, "frag.json")
	if err := os.WriteFile(fragPath, []byte(`{"steps": [{"type": "keyDown", "key": "Tab"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	// Absolute targets ignore the importing flow's directory
	f := &Flow{
		SourcePath: filepath.Join(t.TempDir(), "elsewhere", "main.json"),
		Steps: []Step{
			&ImportStep{
				BaseStep: BaseStep{StepType: StepImport},
				From:     ImportSourceFile,
				Target:   fragPath,
			},
		},
	}

	resolved, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(resolved.Steps) != 1 || resolved.Steps[0].Type() != StepKeyDown {
		t.Fatalf("unexpected resolved steps: %+v", resolved.Steps)
	}
}
