package neobench

import (
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// TrialSample is one measured run of a combination.
type TrialSample struct {
	GFLOPS         float64 `json:"gflops"`
	WallSeconds    float64 `json:"wall_s"`
	CompileSeconds float64 `json:"compile_s"`
}

// AggregatedResult is the robust summary of a combination's samples.
type AggregatedResult struct {
	Combination Combination `json:"combination"`

	// Trimmed means. Zero means no valid measurement.
	GFLOPS         float64 `json:"gflops"`
	WallSeconds    float64 `json:"wall_s"`
	CompileSeconds float64 `json:"compile_s"`

	// StdDevGFLOPS is the sample standard deviation over all kept samples.
	StdDevGFLOPS float64 `json:"stddev_gflops,omitempty"`

	Samples []TrialSample `json:"samples"`
	// Discarded counts runs dropped for unparseable output.
	Discarded int `json:"discarded,omitempty"`
	// Degradations describes fallbacks taken while building (e.g. layout
	// rewrite failed, pre-rewrite binary measured instead).
	Degradations []string `json:"degradations,omitempty"`
}

// TrimmedMean returns an outlier-resistant mean of values.
//
//   - 0 values: 0
//   - 1 value: the value
//   - 2 values: arithmetic mean
//   - 3-4 values: drop min and max, average the rest
//   - 5+ values: drop n/5 from each end, average the rest
//
// A result of 0 means "no valid measurement". values is not modified.
func TrimmedMean(values []float64) float64 {
	switch len(values) {
	case 0:
		return 0
	case 1:
		return values[0]
	case 2:
		return (values[0] + values[1]) / 2
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	trim := 1
	if len(sorted) >= 5 {
		trim = len(sorted) / 5
	}

	kept := sorted[trim : len(sorted)-trim]
	if len(kept) == 0 {
		return 0
	}

	return stat.Mean(kept, nil)
}

// Aggregate reduces samples for c. The same trimming policy is applied to
// each metric independently.
func Aggregate(c Combination, samples []TrialSample) AggregatedResult {
	gflops := lo.Map(samples, func(s TrialSample, _ int) float64 { return s.GFLOPS })
	wall := lo.Map(samples, func(s TrialSample, _ int) float64 { return s.WallSeconds })
	compile := lo.Map(samples, func(s TrialSample, _ int) float64 { return s.CompileSeconds })

	res := AggregatedResult{
		Combination:    c,
		GFLOPS:         TrimmedMean(gflops),
		WallSeconds:    TrimmedMean(wall),
		CompileSeconds: TrimmedMean(compile),
		Samples:        slices.Clone(samples),
	}

	if len(gflops) > 1 {
		res.StdDevGFLOPS = stat.StdDev(gflops, nil)
	}

	return res
}
