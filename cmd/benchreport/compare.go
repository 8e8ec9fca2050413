package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/calvinalkan/neobench"
	"github.com/samber/lo"
)

const compareUsage = `benchreport compare - compare results for regression detection

Usage:
  benchreport compare [options] <old.json> <new.json>
  benchreport compare --against baseline [options] <new.json>

Options:
  --against MODE    Comparison mode: file, baseline (default: file)
  --baseline FILE   Baseline file (default: .benchmarks/baseline.jsonl)
  --fail-above PCT  Exit with error if a GFLOPS drop exceeds PCT percent
  --filter SIZES    Comma-separated sizes to filter on (e.g. micro,small)
  --json            Output as JSON instead of table
  -h, --help        Show this help

Comparison Modes:
  file      Compare new.json against old.json
  baseline  Compare new.json against the average of the baseline set

Examples:
  # Compare two runs
  benchreport compare old.json new.json

  # Fail CI when any combination loses more than 5% GFLOPS
  benchreport compare --fail-above 5 old.json new.json

  # Compare against the baseline average, large sizes only
  benchreport compare --against baseline --filter medium,large new.json
`

type CompareResult struct {
	Name            string  `json:"name"`
	LatestGFLOPS    float64 `json:"latest_gflops"`
	TargetGFLOPS    float64 `json:"target_gflops"`
	GFLOPSChangePct float64 `json:"gflops_change_pct"`
	LatestWallS     float64 `json:"latest_wall_s"`
	TargetWallS     float64 `json:"target_wall_s"`
}

type Comparison struct {
	LatestDesc string          `json:"latest_desc"`
	LatestTS   string          `json:"latest_ts"`
	TargetDesc string          `json:"target_desc"`
	TargetTS   string          `json:"target_ts"`
	Benchmarks []CompareResult `json:"benchmarks"`
	// Missing lists keys present in the target but absent from latest.
	Missing []string `json:"missing,omitempty"`
	// WorstRegression is the largest GFLOPS drop in percent, 0 if none.
	WorstRegression float64 `json:"worst_regression"`
}

func (c *cli) runCompare(args []string) error {
	fs := c.newFlagSet("compare", compareUsage)

	against := fs.String("against", "file", "comparison mode: file, baseline")
	baselineFile := fs.String("baseline", ".benchmarks/baseline.jsonl", "path to baseline file")
	failAbove := fs.Float64("fail-above", 0, "fail if a GFLOPS drop exceeds this percent")
	filter := fs.String("filter", "", "comma-separated sizes to filter on")
	outputJSON := fs.Bool("json", false, "output as JSON")

	parseErr := fs.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("parse flags: %w", parseErr)
	}

	var (
		latest, target         Summary
		latestDesc, targetDesc string
	)

	switch *against {
	case "file":
		if fs.NArg() != 2 {
			fs.Usage()

			return errors.New("expected <old.json> <new.json>")
		}

		var err error

		target, err = loadSummary(fs.Arg(0))
		if err != nil {
			return err
		}

		latest, err = loadSummary(fs.Arg(1))
		if err != nil {
			return err
		}

		latestDesc, targetDesc = fs.Arg(1), fs.Arg(0)

	case "baseline":
		if fs.NArg() != 1 {
			fs.Usage()

			return errors.New("expected <new.json>")
		}

		baselines, err := loadBaselineSet(*baselineFile)
		if err != nil {
			return fmt.Errorf("loading baseline: %w (create with: benchreport baseline add <results.json> --file %s)", err, *baselineFile)
		}

		if len(baselines) == 0 {
			return fmt.Errorf("baseline file is empty: %s", *baselineFile)
		}

		latest, err = loadSummary(fs.Arg(0))
		if err != nil {
			return err
		}

		target = averageSummaries(baselines)
		latestDesc = fs.Arg(0)
		targetDesc = fmt.Sprintf("baseline avg (%d runs)", len(baselines))

	default:
		return fmt.Errorf("unknown mode: %s (expected: file, baseline)", *against)
	}

	var filterSizes []string
	if *filter != "" {
		filterSizes = strings.Split(*filter, ",")
	}

	comparison := buildComparison(&latest, &target, filterSizes)
	comparison.LatestDesc = latestDesc
	comparison.TargetDesc = targetDesc

	if *outputJSON {
		enc := json.NewEncoder(c.stdout)
		enc.SetIndent("", "  ")

		err := enc.Encode(comparison)
		if err != nil {
			return fmt.Errorf("encode comparison: %w", err)
		}
	} else {
		printErr := c.printComparison(&comparison)
		if printErr != nil {
			return printErr
		}
	}

	if *failAbove > 0 {
		if comparison.WorstRegression > *failAbove {
			fmt.Fprintf(c.stdout, "\nREGRESSION DETECTED: worst drop is -%.1f%% (threshold: %.1f%%)\n",
				comparison.WorstRegression, *failAbove)

			return fmt.Errorf("regression detected: worst drop is -%.1f%% (threshold: %.1f%%)",
				comparison.WorstRegression, *failAbove)
		}

		fmt.Fprintf(c.stdout, "\nNo significant regression (worst: -%.1f%%, threshold: %.1f%%)\n",
			comparison.WorstRegression, *failAbove)
	}

	return nil
}

func loadSummary(path string) (Summary, error) {
	file, err := neobench.LoadResults(path)
	if err != nil {
		return Summary{}, err
	}

	return summarize(file, path), nil
}

func averageSummaries(summaries []Summary) Summary {
	if len(summaries) == 0 {
		return Summary{}
	}

	// Collect all combination keys
	names := make(map[string]bool)

	for idx := range summaries {
		for name := range summaries[idx].Results {
			names[name] = true
		}
	}

	avgResults := make(map[string]BenchResult, len(names))

	for name := range names {
		var (
			sumGFLOPS, sumWall float64
			count              int
		)

		for idx := range summaries {
			if r, ok := summaries[idx].Results[name]; ok {
				sumGFLOPS += r.GFLOPS
				sumWall += r.WallSeconds
				count++
			}
		}

		avgResults[name] = BenchResult{
			GFLOPS:      sumGFLOPS / float64(count),
			WallSeconds: sumWall / float64(count),
		}
	}

	return Summary{
		Timestamp: fmt.Sprintf("avg(%d runs)", len(summaries)),
		Results:   avgResults,
	}
}

// buildComparison matches combinations by key. Keys only present in latest
// are new and not compared.
func buildComparison(latest, target *Summary, filterSizes []string) Comparison {
	var (
		benchmarks      []CompareResult
		missing         []string
		worstRegression float64
	)

	names := lo.Keys(target.Results)
	slices.Sort(names)

	for _, name := range names {
		if len(filterSizes) > 0 && !slices.Contains(filterSizes, sizeOfKey(name)) {
			continue
		}

		targetR := target.Results[name]

		latestR, ok := latest.Results[name]
		if !ok {
			missing = append(missing, name)

			continue
		}

		change := pctChange(latestR.GFLOPS, targetR.GFLOPS)

		if -change > worstRegression {
			worstRegression = -change
		}

		benchmarks = append(benchmarks, CompareResult{
			Name:            name,
			LatestGFLOPS:    latestR.GFLOPS,
			TargetGFLOPS:    targetR.GFLOPS,
			GFLOPSChangePct: change,
			LatestWallS:     latestR.WallSeconds,
			TargetWallS:     targetR.WallSeconds,
		})
	}

	return Comparison{
		LatestTS:        latest.Timestamp,
		TargetTS:        target.Timestamp,
		Benchmarks:      benchmarks,
		Missing:         missing,
		WorstRegression: worstRegression,
	}
}

func sizeOfKey(key string) string {
	size, _, _ := strings.Cut(key, "/")

	return size
}

func (c *cli) printComparison(cmp *Comparison) error {
	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "============================================================")
	fmt.Fprintln(c.stdout, "Benchmark Comparison")
	fmt.Fprintln(c.stdout, "============================================================")
	fmt.Fprintln(c.stdout)
	fmt.Fprintf(c.stdout, "Latest:  %s (%s)\n", cmp.LatestDesc, cmp.LatestTS)
	fmt.Fprintf(c.stdout, "Target:  %s (%s)\n", cmp.TargetDesc, cmp.TargetTS)
	fmt.Fprintln(c.stdout)

	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprint(w, "Combination\tGFLOPS\tBase\tΔ%\n")
	fmt.Fprint(w, "-----------\t------\t----\t--\n")

	for _, benchmark := range cmp.Benchmarks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			benchmark.Name,
			fmtGFLOPS(benchmark.LatestGFLOPS),
			fmtGFLOPS(benchmark.TargetGFLOPS),
			fmtPctColored(benchmark.GFLOPSChangePct),
		)
	}

	err := w.Flush()
	if err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	for _, name := range cmp.Missing {
		fmt.Fprintf(c.stdout, "missing in latest: %s\n", name)
	}

	fmt.Fprintln(c.stdout)
	fmt.Fprintln(c.stdout, "Legend: Δ% = GFLOPS change from target (negative = slower/regression)")
	fmt.Fprintln(c.stdout, "        red <= -1% regression, green >= +1% improvement")

	return nil
}

func pctChange(newValue, oldValue float64) float64 {
	if oldValue == 0 {
		return 0
	}

	return (newValue - oldValue) / oldValue * 100
}

func fmtGFLOPS(v float64) string {
	if v == 0 {
		return "N/A"
	}

	return fmt.Sprintf("%.2f", v)
}

func fmtPct(v float64) string {
	if v > 0 {
		return fmt.Sprintf("+%.1f%%", v)
	}

	return fmt.Sprintf("%.1f%%", v)
}

func fmtPctColored(v float64) string {
	s := fmtPct(v)
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return s
	}

	switch {
	case v <= -1.0:
		return "\x1b[31m" + s + "\x1b[0m"
	case v >= 1.0:
		return "\x1b[32m" + s + "\x1b[0m"
	default:
		return s
	}
}
