package main

import (
	"time"

	"github.com/calvinalkan/neobench"
)

// Summary is the flattened form of one results file: trimmed-mean GFLOPS per
// combination key. Baseline sets store one Summary per line.
type Summary struct {
	Timestamp string `json:"ts"`
	Source    string `json:"source,omitempty"`
	Host      string `json:"host"`
	CPUModel  string `json:"cpu_model"`
	Runs      int    `json:"runs"`

	// Results maps combination key (e.g. "micro/O2/native/x0") to its metrics.
	Results map[string]BenchResult `json:"results"`
}

type BenchResult struct {
	GFLOPS      float64 `json:"gflops"`
	WallSeconds float64 `json:"wall_s"`
	Samples     int     `json:"samples,omitempty"`
}

// summarize flattens a results file. Failed combinations are absent.
func summarize(file neobench.ResultsFile, source string) Summary {
	s := Summary{
		Timestamp: file.Timestamp.Format(time.RFC3339),
		Source:    source,
		Host:      file.Host.Hostname,
		CPUModel:  file.Host.CPUModel,
		Runs:      file.Plan.Runs,
		Results:   make(map[string]BenchResult, len(file.Results)),
	}

	for _, r := range file.Results {
		s.Results[r.Combination.Key()] = BenchResult{
			GFLOPS:      r.GFLOPS,
			WallSeconds: r.WallSeconds,
			Samples:     len(r.Samples),
		}
	}

	return s
}
