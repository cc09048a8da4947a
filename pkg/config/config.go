// Package config handles configuration for recorder-runner.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Viewport is the page viewport applied before each flow.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Analyze configures AI failure analysis.
type Analyze struct {
	Provider string `yaml:"provider"` // anthropic, openai
	Model    string `yaml:"model"`    // provider default when empty
}

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Flow selection
	Flows         []string `yaml:"flows"`         // Glob patterns for flow files
	IncludeTitles []string `yaml:"includeTitles"` // Flow title globs to include
	ExcludeTitles []string `yaml:"excludeTitles"` // Flow title globs to exclude

	// Execution settings
	Env        map[string]string `yaml:"env"`     // Variables for ${} and $VAR expansion
	BaseURL    string            `yaml:"baseUrl"` // Recorded-URL rebase target
	TimeoutMs  int               `yaml:"timeout"` // Default step timeout in ms
	Parallel   int               `yaml:"parallel"`
	StopOnFail bool              `yaml:"stopOnFail"`
	Output     string            `yaml:"output"` // Report output directory

	// Browser settings
	Headless          bool     `yaml:"headless"`
	ChromeBin         string   `yaml:"chromeBin"`
	ControlURL        string   `yaml:"controlUrl"` // Attach instead of launching
	NoSandbox         bool     `yaml:"noSandbox"`
	Viewport          Viewport `yaml:"viewport"`
	SelectorAttribute string   `yaml:"selectorAttribute"`

	// Failure analysis
	Analyze Analyze `yaml:"analyze"`
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return empty config
	return &Config{}, nil
}
