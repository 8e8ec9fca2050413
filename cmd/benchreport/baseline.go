package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
)

const baselineUsage = `benchreport baseline - manage baseline entries

Usage:
  benchreport baseline add [options] <results.json>
  benchreport baseline prune [options]
  benchreport baseline list [options]

Options:
  --file FILE   Baseline file (default: .benchmarks/baseline.jsonl)
  --keep N      Keep last N entries (for add/prune)
  -h, --help    Show this help

Examples:
  benchreport baseline add results.json
  benchreport baseline prune --keep 5
  benchreport baseline list
`

func (c *cli) runBaseline(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, baselineUsage)

		return errors.New("missing baseline subcommand")
	}

	sub := args[0]
	subArgs := args[1:]

	switch sub {
	case "add":
		return c.baselineAdd(subArgs)
	case "prune":
		return c.baselinePrune(subArgs)
	case "list":
		return c.baselineList(subArgs)
	case "-h", "--help", "help":
		fmt.Fprint(c.stdout, baselineUsage)

		return nil
	default:
		fmt.Fprint(c.stderr, baselineUsage)

		return fmt.Errorf("unknown baseline subcommand: %s", sub)
	}
}

const baselineAddUsage = `benchreport baseline add - append a baseline entry

Usage:
  benchreport baseline add [options] <results.json>

Options:
  --file FILE   Baseline file (default: .benchmarks/baseline.jsonl)
  --keep N      Keep last N entries (optional)
`

func (c *cli) baselineAdd(args []string) error {
	fs := c.newFlagSet("baseline add", baselineAddUsage)

	baselineFile := fs.String("file", ".benchmarks/baseline.jsonl", "baseline file")
	keep := fs.Int("keep", 0, "keep last N entries")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("parse flags: %w", parseErr)
	}

	if fs.NArg() < 1 {
		fs.Usage()

		return errors.New("missing results.json")
	}

	summary, err := loadSummary(fs.Arg(0))
	if err != nil {
		return err
	}

	baselines, err := loadBaselineSet(*baselineFile)
	if err != nil {
		return fmt.Errorf("loading baseline file: %w", err)
	}

	baselines = append(baselines, summary)
	baselines = trimToKeep(baselines, *keep)

	writeErr := writeBaselineSet(*baselineFile, baselines)
	if writeErr != nil {
		return fmt.Errorf("writing baseline file: %w", writeErr)
	}

	fmt.Fprintf(c.stdout, "Wrote %d baseline entries to %s\n", len(baselines), *baselineFile)

	return nil
}

const baselinePruneUsage = `benchreport baseline prune - keep last N baseline entries

Usage:
  benchreport baseline prune [options]

Options:
  --file FILE   Baseline file (default: .benchmarks/baseline.jsonl)
  --keep N      Keep last N entries (required)
`

func (c *cli) baselinePrune(args []string) error {
	fs := c.newFlagSet("baseline prune", baselinePruneUsage)

	baselineFile := fs.String("file", ".benchmarks/baseline.jsonl", "baseline file")
	keep := fs.Int("keep", 0, "keep last N entries")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("parse flags: %w", parseErr)
	}

	if *keep <= 0 {
		fs.Usage()

		return errors.New("--keep must be > 0")
	}

	baselines, err := loadBaselineSet(*baselineFile)
	if err != nil {
		return fmt.Errorf("loading baseline file: %w", err)
	}

	baselines = trimToKeep(baselines, *keep)

	writeErr := writeBaselineSet(*baselineFile, baselines)
	if writeErr != nil {
		return fmt.Errorf("writing baseline file: %w", writeErr)
	}

	fmt.Fprintf(c.stdout, "Trimmed baseline to %d entries in %s\n", len(baselines), *baselineFile)

	return nil
}

const baselineListUsage = `benchreport baseline list - show baseline entries

Usage:
  benchreport baseline list [options]

Options:
  --file FILE   Baseline file (default: .benchmarks/baseline.jsonl)
`

func (c *cli) baselineList(args []string) error {
	fs := c.newFlagSet("baseline list", baselineListUsage)

	baselineFile := fs.String("file", ".benchmarks/baseline.jsonl", "baseline file")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("parse flags: %w", parseErr)
	}

	baselines, err := loadBaselineSet(*baselineFile)
	if err != nil {
		return fmt.Errorf("loading baseline file: %w", err)
	}

	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "#\tTimestamp\tHost\tCombinations\tSource\n")
	fmt.Fprint(w, "-\t---------\t----\t------------\t------\n")

	for idx := range baselines {
		baseline := &baselines[idx]

		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", idx+1, baseline.Timestamp, baseline.Host, len(baseline.Results), baseline.Source)
	}

	flushErr := w.Flush()
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}

	return nil
}

// loadBaselineSet reads a JSONL baseline file, one Summary per line.
// A missing file is an empty set.
func loadBaselineSet(path string) ([]Summary, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read baseline file: %w", err)
	}

	var summaries []Summary

	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var s Summary

		unmarshalErr := json.Unmarshal([]byte(line), &s)
		if unmarshalErr != nil {
			return nil, fmt.Errorf("parse baseline line %d: %w", n+1, unmarshalErr)
		}

		summaries = append(summaries, s)
	}

	return summaries, nil
}

func writeBaselineSet(path string, baselines []Summary) error {
	mkdirErr := os.MkdirAll(filepath.Dir(path), 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create baseline directory: %w", mkdirErr)
	}

	var buf strings.Builder

	for idx := range baselines {
		encoded, err := json.Marshal(&baselines[idx])
		if err != nil {
			return fmt.Errorf("marshal baseline: %w", err)
		}

		buf.Write(encoded)
		buf.WriteByte('\n')
	}

	writeErr := os.WriteFile(path, []byte(buf.String()), 0o644)
	if writeErr != nil {
		return fmt.Errorf("write baseline file: %w", writeErr)
	}

	return nil
}

func trimToKeep(baselines []Summary, keep int) []Summary {
	if keep <= 0 || len(baselines) <= keep {
		return baselines
	}

	return baselines[len(baselines)-keep:]
}
