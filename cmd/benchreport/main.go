// benchreport re-renders and compares neobench results files.
//
// Usage:
//
//	benchreport show <results.json>
//	benchreport compare [options] <old.json> <new.json>
//	benchreport baseline add|list|prune [options]
//
// See 'benchreport <command> --help' for command-specific options.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const usage = `benchreport - render and compare neobench results

Usage:
  benchreport <command> [options]

Commands:
  show        Render a saved results file as ranked tables
  compare     Compare two results files (or a results file vs baseline set)
  baseline    Manage baseline entries (add/list/prune)

Examples:
  # Save a run, then render it again later
  neobench run --out results.json
  benchreport show --top 5 results.json

  # Compare two runs with a regression threshold
  benchreport compare --fail-above 5 old.json new.json

  # Add a run to the baseline set and compare against its average
  benchreport baseline add results.json
  benchreport compare --against baseline new.json

Run 'benchreport <command> --help' for command-specific help.
`

// cli holds the output streams of one invocation.
type cli struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr}

	if len(args) < 1 {
		fmt.Fprint(stderr, usage)

		return 1
	}

	cmd := args[0]
	args = args[1:]

	var err error

	switch cmd {
	case "show":
		err = c.runShow(args)
	case "compare":
		err = c.runCompare(args)
	case "baseline":
		err = c.runBaseline(args)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n\n", cmd)
		fmt.Fprint(stderr, usage)

		return 1
	}

	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}

	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)

		return 1
	}

	return 0
}

// newFlagSet creates a flag set that prints usage text on -h and on errors.
func (c *cli) newFlagSet(name, usageText string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() { fmt.Fprint(c.stderr, usageText) }

	return fs
}
