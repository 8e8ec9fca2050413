package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/calvinalkan/neobench"
)

const showUsage = `benchreport show - render a saved results file

Usage:
  benchreport show [options] <results.json>

Options:
  --top N       Show only the N fastest combinations per size (baseline always shown)
  --json        Output the report as JSON instead of tables
  -h, --help    Show this help
`

func (c *cli) runShow(args []string) error {
	fs := c.newFlagSet("show", showUsage)

	top := fs.Int("top", 0, "rows per size")
	outputJSON := fs.Bool("json", false, "output as JSON")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("parse flags: %w", parseErr)
	}

	if fs.NArg() != 1 {
		fs.Usage()

		return errors.New("expected exactly one results file")
	}

	file, err := neobench.LoadResults(fs.Arg(0))
	if err != nil {
		return err
	}

	report := file.Report(*top)

	if *outputJSON {
		return neobench.WriteJSON(c.stdout, report)
	}

	fmt.Fprintf(c.stdout, "Run:   %s on %s (%s)\n", file.Timestamp.Format("2006-01-02 15:04:05 MST"), file.Host.Hostname, file.Host.CPUModel)
	fmt.Fprintf(c.stdout, "Plan:  levels=%s runs=%d\n", levelList(file.Plan.Levels), file.Plan.Runs)

	for _, note := range file.Notes {
		fmt.Fprintf(c.stdout, "Note:  %s\n", note)
	}

	fmt.Fprintln(c.stdout)

	return neobench.WriteText(c.stdout, report)
}

func levelList(levels []neobench.OptLevel) string {
	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, l.String())
	}

	return strings.Join(names, ",")
}
