package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/recorder-dev/recorder-runner/pkg/validator"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Check recorded flow files without running them",
	ArgsUsage: "<recording-file-or-folder>...",
	Description: `Parse recordings, verify import targets, and report problems.

Examples:
  recorder-runner validate checkout.json
  recorder-runner validate flows/ --include "Smoke*"`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include",
			Usage: "Only include flows whose title matches these globs",
		},
		&cli.StringSliceFlag{
			Name:  "exclude",
			Usage: "Exclude flows whose title matches these globs",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one recording file or folder is required")
	}

	v := validator.New(c.StringSlice("include"), c.StringSlice("exclude"))

	totalFlows := 0
	totalErrors := 0
	for _, path := range c.Args().Slice() {
		result := v.Validate(path)
		totalFlows += len(result.Flows)
		totalErrors += len(result.Errors)

		for _, f := range result.Files {
			fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), f)
		}
		for _, w := range result.Warnings {
			fmt.Printf("  %s⚠%s %s\n", color(colorYellow), color(colorReset), w)
		}
		for _, err := range result.Errors {
			fmt.Printf("  %s✗%s %v\n", color(colorRed), color(colorReset), err)
		}
	}

	fmt.Println()
	if totalErrors > 0 {
		fmt.Printf("  %s%d flow(s), %d error(s)%s\n", color(colorRed), totalFlows, totalErrors, color(colorReset))
		return cli.Exit("", 1)
	}

	fmt.Printf("  %s%d flow(s) valid%s\n", color(colorGreen), totalFlows, color(colorReset))
	return nil
}
