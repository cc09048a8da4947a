// Package cli provides the command-line interface for recorder-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (chrome, mock)",
		Value:   "chrome",
		EnvVars: []string{"RECORDER_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "headless",
		Usage:   "Run the browser without a visible window",
		EnvVars: []string{"RECORDER_HEADLESS"},
	},
	&cli.StringFlag{
		Name:    "chrome-bin",
		Usage:   "Chrome/Chromium binary path (default: auto-detect)",
		EnvVars: []string{"RECORDER_CHROME_BIN"},
	},
	&cli.StringFlag{
		Name:    "control-url",
		Usage:   "Attach to a running browser's DevTools endpoint instead of launching",
		EnvVars: []string{"RECORDER_CONTROL_URL"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"RECORDER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "recorder-runner",
		Usage:   "Replay Chrome DevTools Recorder flows against a real browser",
		Version: Version,
		Description: `Recorder Runner replays JSON recordings exported from the Chrome
DevTools Recorder panel, with reports, screenshots, and failure analysis.

Examples:
  recorder-runner run checkout.json
  recorder-runner run flows/ -e USER=test
  recorder-runner validate flows/
  recorder-runner resolve login.json`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			resolveCommand,
			allureCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
