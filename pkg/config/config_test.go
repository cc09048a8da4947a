package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
flows:
  - "**"
includeTitles:
  - "Smoke*"
excludeTitles:
  - "WIP*"
env:
  USER: test
  PASS: secret
baseUrl: https://staging.example.com
timeout: 10000
parallel: 3
headless: true
chromeBin: /usr/bin/chromium
viewport:
  width: 1440
  height: 900
selectorAttribute: data-testid
analyze:
  provider: anthropic
  model: claude-sonnet-4-20250514
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Flows) != 1 || cfg.Flows[0] != "**" {
		t.Errorf("expected flows [**], got %v", cfg.Flows)
	}
	if len(cfg.IncludeTitles) != 1 || cfg.IncludeTitles[0] != "Smoke*" {
		t.Errorf("expected includeTitles [Smoke*], got %v", cfg.IncludeTitles)
	}
	if cfg.Env["USER"] != "test" || cfg.Env["PASS"] != "secret" {
		t.Errorf("expected env {USER:test, PASS:secret}, got %v", cfg.Env)
	}
	if cfg.BaseURL != "https://staging.example.com" {
		t.Errorf("baseUrl = %s", cfg.BaseURL)
	}
	if cfg.TimeoutMs != 10000 {
		t.Errorf("timeout = %d", cfg.TimeoutMs)
	}
	if cfg.Parallel != 3 {
		t.Errorf("parallel = %d", cfg.Parallel)
	}
	if !cfg.Headless {
		t.Error("expected headless true")
	}
	if cfg.Viewport.Width != 1440 || cfg.Viewport.Height != 900 {
		t.Errorf("viewport = %dx%d", cfg.Viewport.Width, cfg.Viewport.Height)
	}
	if cfg.SelectorAttribute != "data-testid" {
		t.Errorf("selectorAttribute = %s", cfg.SelectorAttribute)
	}
	if cfg.Analyze.Provider != "anthropic" {
		t.Errorf("analyze.provider = %s", cfg.Analyze.Provider)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `flows: [invalid yaml`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadFromDir_ConfigYaml(t *testing.T) {
	dir := t.TempDir()
	content := `baseUrl: https://example.com`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://example.com" {
		t.Errorf("baseUrl = %s", cfg.BaseURL)
	}
}

func TestLoadFromDir_NoConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "" || len(cfg.Flows) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestLoadFromDir_PrefersYamlOverYml(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`baseUrl: https://a`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`baseUrl: https://b`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://a" {
		t.Errorf("expected config.yaml to win, got %s", cfg.BaseURL)
	}
}
