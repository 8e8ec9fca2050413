package neobench

import (
	"cmp"
	"slices"

	"github.com/samber/lo"
)

// ReportRow is one ranked combination within a size.
type ReportRow struct {
	// Rank is the 1-based position by GFLOPS within the size.
	Rank           int         `json:"rank"`
	Key            string      `json:"key"`
	Combination    Combination `json:"combination"`
	GFLOPS         float64     `json:"gflops"`
	WallSeconds    float64     `json:"wall_s"`
	CompileSeconds float64     `json:"compile_s"`
	StdDevGFLOPS   float64     `json:"stddev_gflops,omitempty"`
	Runs           int         `json:"runs"`
	Discarded      int         `json:"discarded,omitempty"`
	Baseline       bool        `json:"baseline,omitempty"`
	// VsBaseline is the GFLOPS change against the baseline in percent.
	// It is 0 when the size has no usable baseline.
	VsBaseline   float64  `json:"vs_baseline_pct"`
	Degradations []string `json:"degradations,omitempty"`
}

// Insight compares one combination against the baseline.
type Insight struct {
	Key    string  `json:"key"`
	GFLOPS float64 `json:"gflops"`
	Pct    float64 `json:"pct"`
	// Label is "gain" for Pct >= 0 and "hit" otherwise.
	Label string `json:"label"`
}

// SizeReport is the ranked table of one matrix size.
type SizeReport struct {
	Size Size        `json:"size"`
	Rows []ReportRow `json:"rows"`
	// Hidden counts rows dropped by the top limit.
	Hidden int      `json:"hidden,omitempty"`
	Best   *Insight `json:"best,omitempty"`
	Worst  *Insight `json:"worst,omitempty"`
}

// FailureRecord is a failed combination in serializable form.
type FailureRecord struct {
	Key         string      `json:"key"`
	Combination Combination `json:"combination"`
	Error       string      `json:"error"`
}

// Report is the ranked outcome of a batch.
type Report struct {
	Sizes    []SizeReport    `json:"sizes"`
	Failures []FailureRecord `json:"failures,omitempty"`
}

// Failures converts combination errors into records. No errors yield nil.
func Failures(errs []*ComboError) []FailureRecord {
	if len(errs) == 0 {
		return nil
	}

	return lo.Map(errs, func(e *ComboError, _ int) FailureRecord {
		return FailureRecord{Key: e.Combination.Key(), Combination: e.Combination, Error: e.Err.Error()}
	})
}

// BuildReport ranks the results of batch per size, in the order of sizes.
//
// Rows are sorted by GFLOPS, highest first, ties broken by key. top > 0
// limits the rows per size; the baseline row is kept regardless of its rank.
// Sizes without any result still get an (empty) table.
func BuildReport(batch Batch, sizes []Size, top int) Report {
	return buildReport(batch.Results, Failures(batch.Failures), sizes, top)
}

func buildReport(results []AggregatedResult, failures []FailureRecord, sizes []Size, top int) Report {
	bySize := lo.GroupBy(results, func(r AggregatedResult) string { return r.Combination.Size.Name })

	report := Report{Failures: failures}

	for _, size := range lo.UniqBy(sizes, func(s Size) string { return s.Name }) {
		report.Sizes = append(report.Sizes, rankSize(size, bySize[size.Name], top))
	}

	return report
}

func rankSize(size Size, results []AggregatedResult, top int) SizeReport {
	sorted := slices.Clone(results)
	slices.SortStableFunc(sorted, func(a, b AggregatedResult) int {
		if c := cmp.Compare(b.GFLOPS, a.GFLOPS); c != 0 {
			return c
		}

		return cmp.Compare(a.Combination.Key(), b.Combination.Key())
	})

	var baseline float64

	if base, ok := lo.Find(sorted, func(r AggregatedResult) bool { return r.Combination.IsBaseline() }); ok {
		baseline = base.GFLOPS
	}

	rep := SizeReport{Size: size}
	rows := make([]ReportRow, 0, len(sorted))

	for i, r := range sorted {
		row := ReportRow{
			Rank:           i + 1,
			Key:            r.Combination.Key(),
			Combination:    r.Combination,
			GFLOPS:         r.GFLOPS,
			WallSeconds:    r.WallSeconds,
			CompileSeconds: r.CompileSeconds,
			StdDevGFLOPS:   r.StdDevGFLOPS,
			Runs:           len(r.Samples),
			Discarded:      r.Discarded,
			Baseline:       r.Combination.IsBaseline(),
			Degradations:   r.Degradations,
		}

		if baseline > 0 {
			row.VsBaseline = VsBaseline(r.GFLOPS, baseline)
		}

		rows = append(rows, row)
	}

	if baseline > 0 {
		candidates := lo.Filter(rows, func(r ReportRow, _ int) bool { return !r.Baseline })
		if len(candidates) > 0 {
			rep.Best = newInsight(candidates[0])
			rep.Worst = newInsight(candidates[len(candidates)-1])
		}
	}

	if top > 0 && len(rows) > top {
		kept := rows[:top]

		if !lo.ContainsBy(kept, func(r ReportRow) bool { return r.Baseline }) {
			if base, ok := lo.Find(rows[top:], func(r ReportRow) bool { return r.Baseline }); ok {
				kept = append(slices.Clone(kept), base)
			}
		}

		rep.Hidden = len(rows) - len(kept)
		rows = kept
	}

	rep.Rows = rows

	return rep
}

// VsBaseline returns the percentage change of gflops against baseline.
func VsBaseline(gflops, baseline float64) float64 {
	if baseline == 0 {
		return 0
	}

	return (gflops - baseline) / baseline * 100
}

// InsightLabel names the direction of a change against the baseline.
func InsightLabel(pct float64) string {
	if pct >= 0 {
		return "gain"
	}

	return "hit"
}

func newInsight(r ReportRow) *Insight {
	return &Insight{Key: r.Key, GFLOPS: r.GFLOPS, Pct: r.VsBaseline, Label: InsightLabel(r.VsBaseline)}
}
