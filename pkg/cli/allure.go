package cli

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/recorder-dev/recorder-runner/pkg/report"
)

var allureCommand = &cli.Command{
	Name:      "allure",
	Usage:     "Export Allure results from an existing report directory",
	ArgsUsage: "<report-dir>",
	Description: `Convert a generated report into Allure results, ready for
"allure generate".

Examples:
  recorder-runner allure reports/2026-08-24_10-30-00`,
	Action: runAllure,
}

func runAllure(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one report directory is required")
	}

	reportDir := c.Args().First()
	if err := report.GenerateAllure(reportDir); err != nil {
		return fmt.Errorf("failed to export Allure results: %w", err)
	}

	fmt.Printf("  %s✓%s Allure results written to %s\n",
		color(colorGreen), color(colorReset), filepath.Join(reportDir, "allure-results"))
	return nil
}
