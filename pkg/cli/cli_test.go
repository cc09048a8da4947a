package cli

import (
	"strings"
	"testing"

	"github.com/recorder-dev/recorder-runner/pkg/executor"
	"github.com/urfave/cli/v2"
)

func TestResolveOutputDir_Default(t *testing.T) {
	dir, err := resolveOutputDir("", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "reports/") {
		t.Errorf("expected dir to start with reports/, got %s", dir)
	}
	// Should have timestamp subfolder
	parts := strings.Split(dir, "/")
	if len(parts) != 2 {
		t.Errorf("expected reports/<timestamp>, got %s", dir)
	}
}

func TestResolveOutputDir_CustomOutput(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(dir, "my-reports/") {
		t.Errorf("expected dir to start with my-reports/, got %s", dir)
	}
}

func TestResolveOutputDir_Flatten(t *testing.T) {
	dir, err := resolveOutputDir("./my-reports", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir != "my-reports" {
		t.Errorf("expected my-reports, got %s", dir)
	}
}

func TestResolveOutputDir_FlattenWithoutOutput(t *testing.T) {
	_, err := resolveOutputDir("", true)
	if err == nil {
		t.Error("expected error when flatten is used without output")
	}

	if !strings.Contains(err.Error(), "--flatten requires --output") {
		t.Errorf("expected error about --flatten requiring --output, got: %v", err)
	}
}

func TestParseEnvVars_Valid(t *testing.T) {
	envs := []string{"USER=test", "PASS=secret", "EMPTY="}
	result := parseEnvVars(envs)

	if result["USER"] != "test" {
		t.Errorf("expected USER=test, got %s", result["USER"])
	}
	if result["PASS"] != "secret" {
		t.Errorf("expected PASS=secret, got %s", result["PASS"])
	}
	if result["EMPTY"] != "" {
		t.Errorf("expected EMPTY='', got %s", result["EMPTY"])
	}
}

func TestParseEnvVars_ValueWithEquals(t *testing.T) {
	envs := []string{"URL=http://example.com?foo=bar"}
	result := parseEnvVars(envs)

	if result["URL"] != "http://example.com?foo=bar" {
		t.Errorf("expected URL with equals in value, got %s", result["URL"])
	}
}

func TestParseEnvVars_InvalidFormat(t *testing.T) {
	envs := []string{"NOEQUALS"}
	result := parseEnvVars(envs)

	// Should be ignored
	if _, ok := result["NOEQUALS"]; ok {
		t.Error("expected NOEQUALS to be ignored")
	}
}

func TestParseEnvVars_Empty(t *testing.T) {
	result := parseEnvVars(nil)
	if len(result) != 0 {
		t.Errorf("expected empty map, got %v", result)
	}
}

func TestParseArtifactMode(t *testing.T) {
	cases := []struct {
		in   string
		want executor.ArtifactMode
	}{
		{"failure", executor.ArtifactOnFailure},
		{"on-failure", executor.ArtifactOnFailure},
		{"", executor.ArtifactOnFailure},
		{"always", executor.ArtifactAlways},
		{"Always", executor.ArtifactAlways},
		{"never", executor.ArtifactNever},
	}

	for _, tc := range cases {
		got, err := parseArtifactMode(tc.in)
		if err != nil {
			t.Errorf("parseArtifactMode(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseArtifactMode(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}

	if _, err := parseArtifactMode("sometimes"); err == nil {
		t.Error("expected error for invalid artifact mode")
	}
}

func TestParseViewport(t *testing.T) {
	w, h, err := parseViewport("1280x720")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 1280 || h != 720 {
		t.Errorf("expected 1280x720, got %dx%d", w, h)
	}

	// Uppercase separator
	w, h, err = parseViewport("800X600")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != 800 || h != 600 {
		t.Errorf("expected 800x600, got %dx%d", w, h)
	}

	for _, bad := range []string{"", "1280", "widexhigh", "0x720", "1280x-1"} {
		if _, _, err := parseViewport(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{350, "350ms"},
		{1500, "1.5s"},
		{65000, "1m 5s"},
	}

	for _, tc := range cases {
		if got := formatDuration(tc.ms); got != tc.want {
			t.Errorf("formatDuration(%d) = %s, want %s", tc.ms, got, tc.want)
		}
	}
}

func TestRunConfig_Struct(t *testing.T) {
	cfg := &RunConfig{
		FlowPaths:     []string{"login.json", "checkout.json"},
		ConfigPath:    "config.yaml",
		Env:           map[string]string{"USER": "test"},
		IncludeTitles: []string{"Smoke*"},
		ExcludeTitles: []string{"WIP*"},
		OutputDir:     "./reports/test",
		Parallel:      2,
		Driver:        "chrome",
		Headless:      true,
		Verbose:       true,
	}

	if len(cfg.FlowPaths) != 2 {
		t.Errorf("expected 2 flow paths, got %d", len(cfg.FlowPaths))
	}
	if cfg.Driver != "chrome" {
		t.Errorf("expected driver chrome, got %s", cfg.Driver)
	}
}

func TestGlobalFlags(t *testing.T) {
	if len(GlobalFlags) == 0 {
		t.Error("expected GlobalFlags to be defined")
	}

	// Check that required flags are present
	flagNames := make(map[string]bool)
	for _, f := range GlobalFlags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	requiredFlags := []string{"driver", "d", "headless", "chrome-bin", "control-url", "verbose"}
	for _, name := range requiredFlags {
		if !flagNames[name] {
			t.Errorf("expected flag %q to be defined", name)
		}
	}
}

func TestRunCommand_NoArgs(t *testing.T) {
	app := &cli.App{
		Name:     "test-app",
		Flags:    GlobalFlags,
		Commands: []*cli.Command{runCommand},
	}

	// Run command requires at least one recording file
	err := app.Run([]string{"test-app", "run"})
	if err == nil {
		t.Error("expected error when no recording files provided")
	}
}

func TestValidateCommand_NoArgs(t *testing.T) {
	app := &cli.App{
		Name:     "test-app",
		Flags:    GlobalFlags,
		Commands: []*cli.Command{validateCommand},
	}

	err := app.Run([]string{"test-app", "validate"})
	if err == nil {
		t.Error("expected error when no recording files provided")
	}
}

func TestResolveCommand_MissingFile(t *testing.T) {
	app := &cli.App{
		Name:     "test-app",
		Flags:    GlobalFlags,
		Commands: []*cli.Command{resolveCommand},
	}

	err := app.Run([]string{"test-app", "resolve", "does-not-exist.json"})
	if err == nil {
		t.Error("expected error for nonexistent recording")
	}
}
