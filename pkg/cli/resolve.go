package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

var resolveCommand = &cli.Command{
	Name:      "resolve",
	Usage:     "Print a recording with all imports spliced in",
	ArgsUsage: "<recording-file>",
	Description: `Resolve import steps and print the flattened recording as JSON.
Useful for checking what the runner will actually execute.

Examples:
  recorder-runner resolve checkout.json
  recorder-runner resolve checkout.json --output flat.json`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "output",
			Usage: "Write the resolved recording to a file instead of stdout",
		},
	},
	Action: runResolve,
}

func runResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one recording file is required")
	}

	f, err := flow.ParseFile(c.Args().First())
	if err != nil {
		return err
	}

	resolved, err := flow.Resolve(f)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(resolved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode resolved flow: %w", err)
	}
	data = append(data, '\n')

	if out := c.String("output"); out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		fmt.Printf("  %s✓%s Resolved flow written to %s\n", color(colorGreen), color(colorReset), out)
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}
