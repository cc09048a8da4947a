package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/recorder-dev/recorder-runner/pkg/ai"
	"github.com/recorder-dev/recorder-runner/pkg/config"
	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/driver/chrome"
	"github.com/recorder-dev/recorder-runner/pkg/driver/mock"
	"github.com/recorder-dev/recorder-runner/pkg/executor"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/logger"
	"github.com/recorder-dev/recorder-runner/pkg/report"
	"github.com/recorder-dev/recorder-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Replay recorded flows in a browser",
	ArgsUsage: "<recording-file-or-folder>...",
	Description: `Replay one or more Chrome DevTools Recorder JSON files.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  # Basic usage
  recorder-runner run checkout.json
  recorder-runner run flows/
  recorder-runner run login.json checkout.json

  # With environment variables
  recorder-runner run flows/ -e USER=test -e PASS=secret

  # With title filtering
  recorder-runner run flows/ --include "Smoke*"

  # Resume a failed flow from its cursor
  recorder-runner run checkout.json --continue-from 4

  # Attach to a running Chrome
  recorder-runner --control-url ws://127.0.0.1:9222/... run flow.json

  # Custom output directory
  recorder-runner run flows/ --output ./my-reports --flatten`,
	Flags: []cli.Flag{
		// Configuration
		&cli.StringFlag{
			Name:  "config",
			Usage: "Path to workspace config.yaml",
		},

		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Variables for flow scripting (KEY=VALUE)",
		},

		// Title filtering
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Only include flows whose title matches these globs",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Exclude flows whose title matches these globs",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Parallelization
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Run flows in parallel across N browser sessions",
		},
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Stop the run after the first failed flow",
		},

		// Cursor controls
		&cli.IntFlag{
			Name:  "continue-from",
			Usage: "Resume the flow at this step index (single flow only)",
		},
		&cli.IntFlag{
			Name:  "up-to",
			Usage: "Stop each flow after this many steps (0 = no limit)",
		},

		// Artifacts
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to capture screenshots and DOM snapshots (failure, always, never)",
			Value: "failure",
		},
		&cli.BoolFlag{
			Name:  "allure",
			Usage: "Also export Allure results after the run",
		},

		// Browser options
		&cli.StringFlag{
			Name:  "base-url",
			Usage: "Rebase recorded navigation URLs onto this origin",
		},
		&cli.IntFlag{
			Name:    "timeout",
			Usage:   "Default step timeout in ms",
			Value:   5000,
			EnvVars: []string{"RECORDER_TIMEOUT"},
		},
		&cli.StringFlag{
			Name:  "viewport",
			Usage: "Page viewport as WIDTHxHEIGHT (e.g. 1280x720)",
		},
		&cli.IntFlag{
			Name:  "slow-motion",
			Usage: "Delay in ms before every browser action (debugging aid)",
		},
		&cli.BoolFlag{
			Name:  "no-sandbox",
			Usage: "Disable the Chrome sandbox (for containers)",
		},
		&cli.StringFlag{
			Name:  "profile",
			Usage: "Named browser profile for authenticated sessions",
		},

		// AI options
		&cli.BoolFlag{
			Name:  "analyze",
			Usage: "Diagnose failures with an AI provider",
		},
		&cli.StringFlag{
			Name:    "ai-provider",
			Usage:   "AI provider for --analyze (anthropic, openai)",
			Value:   "anthropic",
			EnvVars: []string{"RECORDER_AI_PROVIDER"},
		},
		&cli.StringFlag{
			Name:    "ai-model",
			Usage:   "Model override for --analyze",
			EnvVars: []string{"RECORDER_AI_MODEL"},
		},
	},
	Action: runRun,
}

// RunConfig holds the complete run configuration.
type RunConfig struct {
	// Paths
	FlowPaths  []string
	ConfigPath string

	// Environment
	Env map[string]string

	// Filtering
	IncludeTitles []string
	ExcludeTitles []string

	// Output
	OutputDir string // Final resolved output directory

	// Execution
	Parallel   int // Number of browser sessions (0 = single session)
	StopOnFail bool
	StartFrom  int
	UpTo       int
	Artifacts  executor.ArtifactMode
	Allure     bool

	// Browser
	Driver         string // chrome, mock
	Headless       bool
	ChromeBin      string
	ControlURL     string
	NoSandbox      bool
	Profile        string
	ViewportWidth  int
	ViewportHeight int
	TimeoutMs      int
	SlowMotionMs   int
	BaseURL        string

	// AI analysis
	Analyze    bool
	AIProvider string
	AIModel    string

	Verbose bool
}

func runRun(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one recording file or folder is required")
	}

	// Helper to get flag value from current or parent context.
	// When run as subcommand, global flags are in parent context.
	getString := func(name string) string {
		if c.IsSet(name) {
			return c.String(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].String(name)
		}
		return c.String(name)
	}
	getInt := func(name string) int {
		if c.IsSet(name) {
			return c.Int(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Int(name)
		}
		return c.Int(name)
	}
	getBool := func(name string) bool {
		if c.IsSet(name) {
			return c.Bool(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].Bool(name)
		}
		return c.Bool(name)
	}
	getStringSlice := func(name string) []string {
		if c.IsSet(name) {
			return c.StringSlice(name)
		}
		if c.Lineage()[1] != nil {
			return c.Lineage()[1].StringSlice(name)
		}
		return c.StringSlice(name)
	}

	if getBool("no-ansi") {
		colorsEnabled = false
	}

	// Load workspace config if provided, otherwise look in the working dir
	configPath := getString("config")
	var workspaceConfig *config.Config
	var err error
	if configPath != "" {
		workspaceConfig, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		workspaceConfig, err = config.LoadFromDir(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Merge env variables: workspace config env + CLI env (CLI takes precedence)
	mergedEnv := make(map[string]string)
	for k, v := range workspaceConfig.Env {
		mergedEnv[k] = v
	}
	for k, v := range parseEnvVars(getStringSlice("env")) {
		mergedEnv[k] = v
	}

	// Resolve output directory
	output := getString("output")
	if output == "" {
		output = workspaceConfig.Output
	}
	outputDir, err := resolveOutputDir(output, getBool("flatten"))
	if err != nil {
		return err
	}

	artifacts, err := parseArtifactMode(getString("artifacts"))
	if err != nil {
		return err
	}

	// Build run configuration, falling back to workspace config values
	// for flags that were not set on the command line.
	cfg := &RunConfig{
		FlowPaths:     c.Args().Slice(),
		ConfigPath:    configPath,
		Env:           mergedEnv,
		IncludeTitles: getStringSlice("include"),
		ExcludeTitles: getStringSlice("exclude"),
		OutputDir:     outputDir,
		Parallel:      getInt("parallel"),
		StopOnFail:    getBool("stop-on-fail"),
		StartFrom:     getInt("continue-from"),
		UpTo:          getInt("up-to"),
		Artifacts:     artifacts,
		Allure:        getBool("allure"),
		Driver:        getString("driver"),
		Headless:      getBool("headless"),
		ChromeBin:     getString("chrome-bin"),
		ControlURL:    getString("control-url"),
		NoSandbox:     getBool("no-sandbox"),
		Profile:       getString("profile"),
		TimeoutMs:     getInt("timeout"),
		SlowMotionMs:  getInt("slow-motion"),
		BaseURL:       getString("base-url"),
		Analyze:       getBool("analyze"),
		AIProvider:    getString("ai-provider"),
		AIModel:       getString("ai-model"),
		Verbose:       getBool("verbose"),
	}

	if len(cfg.IncludeTitles) == 0 {
		cfg.IncludeTitles = workspaceConfig.IncludeTitles
	}
	if len(cfg.ExcludeTitles) == 0 {
		cfg.ExcludeTitles = workspaceConfig.ExcludeTitles
	}
	if !c.IsSet("parallel") && workspaceConfig.Parallel > 0 {
		cfg.Parallel = workspaceConfig.Parallel
	}
	if !c.IsSet("stop-on-fail") {
		cfg.StopOnFail = workspaceConfig.StopOnFail
	}
	if !c.IsSet("timeout") && workspaceConfig.TimeoutMs > 0 {
		cfg.TimeoutMs = workspaceConfig.TimeoutMs
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = workspaceConfig.BaseURL
	}
	if cfg.ChromeBin == "" {
		cfg.ChromeBin = workspaceConfig.ChromeBin
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = workspaceConfig.ControlURL
	}
	if !getBool("headless") {
		cfg.Headless = workspaceConfig.Headless
	}
	if !getBool("no-sandbox") {
		cfg.NoSandbox = workspaceConfig.NoSandbox
	}
	if cfg.AIModel == "" {
		cfg.AIModel = workspaceConfig.Analyze.Model
	}
	if !c.IsSet("ai-provider") && workspaceConfig.Analyze.Provider != "" {
		cfg.AIProvider = workspaceConfig.Analyze.Provider
	}

	viewport := getString("viewport")
	if viewport != "" {
		w, h, err := parseViewport(viewport)
		if err != nil {
			return err
		}
		cfg.ViewportWidth, cfg.ViewportHeight = w, h
	} else {
		cfg.ViewportWidth = workspaceConfig.Viewport.Width
		cfg.ViewportHeight = workspaceConfig.Viewport.Height
	}

	return executeRun(cfg)
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// parseArtifactMode maps the --artifacts flag value to an executor mode.
func parseArtifactMode(s string) (executor.ArtifactMode, error) {
	switch strings.ToLower(s) {
	case "", "failure", "on-failure":
		return executor.ArtifactOnFailure, nil
	case "always":
		return executor.ArtifactAlways, nil
	case "never":
		return executor.ArtifactNever, nil
	default:
		return 0, fmt.Errorf("invalid --artifacts value %q (use failure, always, or never)", s)
	}
}

// parseViewport parses a WIDTHxHEIGHT string like "1280x720".
func parseViewport(s string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid --viewport value %q (use WIDTHxHEIGHT, e.g. 1280x720)", s)
	}
	width, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport width in %q", s)
	}
	height, err := strconv.Atoi(strings.TrimSpace(h))
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid viewport height in %q", s)
	}
	return width, height, nil
}

func executeRun(cfg *RunConfig) error {
	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "recorder-runner.log")
	if err := logger.Init(logPath); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()
	logger.SetVerbose(cfg.Verbose)

	logger.Info("=== Replay run started ===")
	logger.Info("Output directory: %s", cfg.OutputDir)
	logger.Info("Driver: %s", cfg.Driver)

	// Cancel the run on SIGINT/SIGTERM; flows not yet started are skipped.
	// A second signal exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("Received signal %v, cancelling run...", sig)
		fmt.Fprintf(os.Stderr, "\nReceived %v, finishing current step...\n", sig)
		cancel()
		<-sigCh
		os.Exit(1)
	}()

	// 3. Validate, parse, and resolve flows
	flows, err := validateAndResolveFlows(cfg)
	if err != nil {
		logger.Error("Flow validation failed: %v", err)
		return err
	}
	logger.Info("Validated %d flow(s)", len(flows))

	if cfg.StartFrom > 0 && len(flows) > 1 {
		return fmt.Errorf("--continue-from requires a single flow, got %d", len(flows))
	}

	printSetupSuccess(fmt.Sprintf("Report directory: %s", cfg.OutputDir))
	fmt.Printf("\n%sExecution%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))

	// 4. Execute flows
	var result *executor.RunResult
	if cfg.Parallel > 1 {
		logger.Info("Parallel execution mode: %d browser sessions", cfg.Parallel)
		result, err = executeParallel(ctx, cfg, flows)
	} else {
		logger.Info("Single session execution mode")
		result, err = executeSingleSession(ctx, cfg, flows)
	}
	if err != nil {
		logger.Error("Flow execution failed: %v", err)
		return err
	}
	logger.Info("Flow execution completed: %d passed, %d failed, %d skipped",
		result.PassedFlows, result.FailedFlows, result.SkippedFlows)

	// 5. Print summary
	printSummary(result)

	// 6. Generate and display reports
	logger.Info("Generating reports...")
	fmt.Println()

	htmlPath := filepath.Join(cfg.OutputDir, "report.html")
	jsonPath := filepath.Join(cfg.OutputDir, "report.json")

	htmlGenerated := true
	if err := report.GenerateHTML(cfg.OutputDir, report.HTMLConfig{
		OutputPath: htmlPath,
		Title:      "Replay Report",
	}); err != nil {
		htmlGenerated = false
		fmt.Printf("  %s⚠%s Warning: failed to generate HTML report: %v\n", color(colorYellow), color(colorReset), err)
	}

	allureGenerated := false
	if cfg.Allure {
		if err := report.GenerateAllure(cfg.OutputDir); err != nil {
			fmt.Printf("  %s⚠%s Warning: failed to export Allure results: %v\n", color(colorYellow), color(colorReset), err)
		} else {
			allureGenerated = true
		}
	}

	fmt.Println("  Reports:")
	if htmlGenerated {
		fmt.Printf("    HTML:   %s\n", htmlPath)
	}
	fmt.Printf("    JSON:   %s\n", jsonPath)
	if allureGenerated {
		fmt.Printf("    Allure: %s\n", filepath.Join(cfg.OutputDir, "allure-results"))
	}

	// Exit with code 1 if any flows failed (summary already printed)
	if result.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}

	return nil
}

// validateAndResolveFlows validates all flow files, then resolves imports so
// the runner only sees flat step lists.
func validateAndResolveFlows(cfg *RunConfig) ([]flow.Flow, error) {
	v := validator.New(cfg.IncludeTitles, cfg.ExcludeTitles)
	combined := &validator.Result{}

	for _, path := range cfg.FlowPaths {
		result := v.Validate(path)
		combined.Files = append(combined.Files, result.Files...)
		combined.Flows = append(combined.Flows, result.Flows...)
		combined.Errors = append(combined.Errors, result.Errors...)
		combined.Warnings = append(combined.Warnings, result.Warnings...)
	}

	for _, w := range combined.Warnings {
		fmt.Printf("  %s⚠%s %s\n", color(colorYellow), color(colorReset), w)
	}

	if !combined.IsValid() {
		fmt.Fprintf(os.Stderr, "Validation errors:\n")
		for _, err := range combined.Errors {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(combined.Errors))
	}

	if len(combined.Flows) == 0 {
		return nil, fmt.Errorf("no recorded flows found")
	}

	fmt.Printf("\n%sSetup%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))
	printSetupSuccess(fmt.Sprintf("Found %d flow(s)", len(combined.Flows)))

	var flows []flow.Flow
	for i, f := range combined.Flows {
		resolved, err := flow.Resolve(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", combined.Files[i], err)
		}
		flows = append(flows, *resolved)
	}

	return flows, nil
}

// createDriver builds the replay driver and its cleanup function.
func createDriver(cfg *RunConfig) (core.Driver, func(), error) {
	if strings.ToLower(cfg.Driver) == "mock" {
		return mock.New(mock.Config{Headless: cfg.Headless}), func() {}, nil
	}

	userDataDir := ""
	if cfg.Profile != "" {
		userDataDir = filepath.Join(config.GetProfilesDir(), cfg.Profile)
	}

	d, err := chrome.New(chrome.Config{
		ControlURL:       cfg.ControlURL,
		Bin:              cfg.ChromeBin,
		Headless:         cfg.Headless,
		UserDataDir:      userDataDir,
		NoSandbox:        cfg.NoSandbox,
		ViewportWidth:    cfg.ViewportWidth,
		ViewportHeight:   cfg.ViewportHeight,
		DefaultTimeoutMs: cfg.TimeoutMs,
		SlowMotion:       time.Duration(cfg.SlowMotionMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := d.Close(); err != nil {
			logger.Warn("Failed to close browser: %v", err)
		}
	}
	return d, cleanup, nil
}

// buildBrowserReport creates a report.Browser from driver info.
func buildBrowserReport(driver core.Driver) report.Browser {
	bi := driver.GetBrowserInfo()
	if bi == nil {
		return report.Browser{}
	}
	return report.Browser{
		Name:           bi.Name,
		Version:        bi.Version,
		Headless:       bi.Headless,
		UserAgent:      bi.UserAgent,
		ViewportWidth:  bi.ViewportWidth,
		ViewportHeight: bi.ViewportHeight,
	}
}

// buildRunnerConfig assembles the executor configuration shared by both
// execution modes.
func buildRunnerConfig(cfg *RunConfig, browser report.Browser, driverName string) (executor.RunnerConfig, error) {
	rc := executor.RunnerConfig{
		OutputDir:      cfg.OutputDir,
		StopOnFail:     cfg.StopOnFail,
		Artifacts:      cfg.Artifacts,
		Browser:        browser,
		BaseURL:        cfg.BaseURL,
		CI:             report.DetectCI(),
		RunnerVersion:  Version,
		DriverName:     driverName,
		Env:            cfg.Env,
		StartFrom:      cfg.StartFrom,
		UpTo:           cfg.UpTo,
		OnFlowStart:    onFlowStart,
		OnStepComplete: onStepComplete,
		OnFlowEnd:      onFlowEnd,
	}

	if cfg.Analyze {
		provider, err := ai.NewProvider(cfg.AIProvider, cfg.AIModel)
		if err != nil {
			return rc, fmt.Errorf("--analyze: %w", err)
		}
		logger.Info("Failure analysis enabled: %s", provider.Name())
		rc.Analyzer = provider.Analyze
	}

	return rc, nil
}

// executeSingleSession runs flows sequentially in one browser session.
func executeSingleSession(ctx context.Context, cfg *RunConfig, flows []flow.Flow) (*executor.RunResult, error) {
	logger.Info("Creating driver for single session execution")
	driver, cleanup, err := createDriver(cfg)
	if err != nil {
		logger.Error("Failed to create driver: %v", err)
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}
	defer cleanup()

	rc, err := buildRunnerConfig(cfg, buildBrowserReport(driver), strings.ToLower(cfg.Driver))
	if err != nil {
		return nil, err
	}

	runner := executor.New(driver, rc)
	return runner.Run(ctx, flows)
}

// executeParallel runs flows across N browser sessions pulling from a
// shared queue. The parallel runner owns worker cleanup once it starts.
func executeParallel(ctx context.Context, cfg *RunConfig, flows []flow.Flow) (*executor.RunResult, error) {
	workers := make([]executor.PageWorker, 0, cfg.Parallel)
	cleanupAll := func() {
		for _, w := range workers {
			if w.Cleanup != nil {
				w.Cleanup()
			}
		}
	}

	for i := 0; i < cfg.Parallel; i++ {
		driver, cleanup, err := createDriver(cfg)
		if err != nil {
			cleanupAll()
			return nil, fmt.Errorf("failed to create browser session %d: %w", i+1, err)
		}
		workers = append(workers, executor.PageWorker{ID: i, Driver: driver, Cleanup: cleanup})
	}

	rc, err := buildRunnerConfig(cfg, buildBrowserReport(workers[0].Driver), strings.ToLower(cfg.Driver))
	if err != nil {
		cleanupAll()
		return nil, err
	}

	fmt.Printf("  %sℹ Parallel Mode:%s %d browser sessions\n", color(colorCyan), color(colorReset), cfg.Parallel)

	runner := executor.NewParallelRunner(workers, rc)
	return runner.Run(ctx, flows)
}
