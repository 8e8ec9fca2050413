package neobench_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/calvinalkan/neobench"
	"github.com/google/go-cmp/cmp"
)

func result(c neobench.Combination, gflops float64) neobench.AggregatedResult {
	return neobench.AggregatedResult{
		Combination: c,
		GFLOPS:      gflops,
		WallSeconds: 1 / gflops,
		Samples:     []neobench.TrialSample{{GFLOPS: gflops, WallSeconds: 1 / gflops}},
	}
}

func rowKeys(rows []neobench.ReportRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Key)
	}

	return out
}

func Test_BuildReport_Ranks_By_GFLOPS_When_Baseline_Present(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{Results: []neobench.AggregatedResult{
		result(neobench.Baseline(micro), 2),
		result(neobench.Combination{Level: neobench.O1, Size: micro}, 3),
		result(neobench.Combination{Level: neobench.O3, Size: micro}, 5),
		result(neobench.Combination{Level: neobench.O2, Size: micro}, 5),
		result(neobench.Combination{Level: neobench.O2, Size: small}, 1),
	}}

	report := neobench.BuildReport(batch, []neobench.Size{micro, small}, 0)

	if len(report.Sizes) != 2 || report.Sizes[0].Size != micro {
		t.Fatalf("unexpected sizes: %+v", report.Sizes)
	}

	got := report.Sizes[0]

	// Equal GFLOPS break ties by key: O2 before O3.
	want := []string{"micro/O2/none/x0", "micro/O3/none/x0", "micro/O1/none/x0", "micro/O0/none/x0"}
	if diff := cmp.Diff(want, rowKeys(got.Rows)); diff != "" {
		t.Fatalf("ranking mismatch (-want +got):\n%s", diff)
	}

	if !got.Rows[3].Baseline || got.Rows[3].Rank != 4 {
		t.Fatalf("baseline row not flagged: %+v", got.Rows[3])
	}

	if got.Rows[0].VsBaseline != 150 {
		t.Fatalf("vs baseline=%v, want 150", got.Rows[0].VsBaseline)
	}

	wantBest := &neobench.Insight{Key: "micro/O2/none/x0", GFLOPS: 5, Pct: 150, Label: "gain"}
	if diff := cmp.Diff(wantBest, got.Best); diff != "" {
		t.Fatalf("best mismatch (-want +got):\n%s", diff)
	}

	wantWorst := &neobench.Insight{Key: "micro/O1/none/x0", GFLOPS: 3, Pct: 50, Label: "gain"}
	if diff := cmp.Diff(wantWorst, got.Worst); diff != "" {
		t.Fatalf("worst mismatch (-want +got):\n%s", diff)
	}

	// small has no baseline result: no insights, no percentages.
	if report.Sizes[1].Best != nil || report.Sizes[1].Rows[0].VsBaseline != 0 {
		t.Fatalf("insights without baseline: %+v", report.Sizes[1])
	}
}

func Test_BuildReport_Labels_Hit_When_Slower_Than_Baseline(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{Results: []neobench.AggregatedResult{
		result(neobench.Baseline(micro), 4),
		result(neobench.Combination{Level: neobench.O1, PGO: true, Size: micro}, 3),
		result(neobench.Combination{Level: neobench.O2, Size: micro}, 8),
	}}

	got := neobench.BuildReport(batch, []neobench.Size{micro}, 0).Sizes[0]

	if got.Worst == nil || got.Worst.Label != "hit" || math.Abs(got.Worst.Pct-(-25)) > 1e-9 {
		t.Fatalf("unexpected worst: %+v", got.Worst)
	}

	if got.Best == nil || got.Best.Label != "gain" || got.Best.Pct != 100 {
		t.Fatalf("unexpected best: %+v", got.Best)
	}
}

func Test_BuildReport_Keeps_Baseline_When_Top_Truncates(t *testing.T) {
	t.Parallel()

	results := []neobench.AggregatedResult{result(neobench.Baseline(micro), 1)}
	for x := neobench.ExtraFlags(0); x <= neobench.ExtraAll; x++ {
		results = append(results, result(neobench.Combination{Level: neobench.O3, Extra: x, Size: micro}, 10+float64(x)))
	}

	got := neobench.BuildReport(neobench.Batch{Results: results}, []neobench.Size{micro}, 3).Sizes[0]

	want := []string{"micro/O3/none/x7", "micro/O3/none/x6", "micro/O3/none/x5", "micro/O0/none/x0"}
	if diff := cmp.Diff(want, rowKeys(got.Rows)); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	if got.Hidden != 5 {
		t.Fatalf("hidden=%d, want 5", got.Hidden)
	}

	// Insights consider every row, not only the shown ones.
	if got.Worst == nil || got.Worst.Key != "micro/O3/none/x0" {
		t.Fatalf("unexpected worst: %+v", got.Worst)
	}
}

func Test_BuildReport_Omits_Insights_When_Baseline_Zero(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{Results: []neobench.AggregatedResult{
		{Combination: neobench.Baseline(micro)},
		result(neobench.Combination{Level: neobench.O2, Size: micro}, 8),
	}}

	got := neobench.BuildReport(batch, []neobench.Size{micro}, 0).Sizes[0]

	if got.Best != nil || got.Worst != nil {
		t.Fatalf("expected no insights, got best=%+v worst=%+v", got.Best, got.Worst)
	}
}

func Test_WriteText_Renders_Title_Cased_Headings_And_Failures(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{
		Results: []neobench.AggregatedResult{
			result(neobench.Baseline(micro), 2),
			result(neobench.Combination{Level: neobench.O2, Size: micro}, 3),
		},
		Failures: []*neobench.ComboError{{
			Combination: neobench.Combination{Level: neobench.O3, PGO: true, Size: micro},
			Err:         &neobench.ProfileError{Dir: "/tmp/p", Err: errors.New("training run produced no profile data")},
		}},
	}

	var out bytes.Buffer

	err := neobench.WriteText(&out, neobench.BuildReport(batch, []neobench.Size{micro, small}, 0))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Micro (64x64)",
		"Small (512x512)",
		"no results",
		"micro/O2/none/x0",
		"+50.0%",
		"base",
		"Best:  micro/O2/none/x0 3.00 GFLOPS (+50.0% gain)",
		"Failed combinations (1):",
		"micro/O3/none/x0/pgo",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("missing %q in:\n%s", want, text)
		}
	}
}

func Test_WriteJSON_Encodes_Report_When_Called(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{Results: []neobench.AggregatedResult{result(neobench.Baseline(micro), 2)}}
	report := neobench.BuildReport(batch, []neobench.Size{micro}, 0)

	var out bytes.Buffer

	err := neobench.WriteJSON(&out, report)
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	var decoded neobench.Report

	unmarshalErr := json.Unmarshal(out.Bytes(), &decoded)
	if unmarshalErr != nil {
		t.Fatalf("decode: %v", unmarshalErr)
	}

	if diff := cmp.Diff(report, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if !strings.Contains(out.String(), `"level": "O0"`) {
		t.Fatalf("levels not encoded as text:\n%s", out.String())
	}
}

func Test_WriteText_Shows_Zero_Change_When_Row_Ties_Baseline(t *testing.T) {
	t.Parallel()

	batch := neobench.Batch{Results: []neobench.AggregatedResult{
		result(neobench.Baseline(micro), 4),
		result(neobench.Combination{Level: neobench.O2, Size: micro}, 4),
		result(neobench.Combination{Level: neobench.O2, Size: small}, 7),
	}}

	var out bytes.Buffer

	err := neobench.WriteText(&out, neobench.BuildReport(batch, []neobench.Size{micro, small}, 0))
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	lines := strings.Split(out.String(), "\n")

	rowLine := func(key string) string {
		for _, line := range lines {
			if strings.Contains(line, key) && !strings.HasPrefix(line, "Best") && !strings.HasPrefix(line, "Worst") {
				return line
			}
		}

		t.Fatalf("no row for %s in:\n%s", key, out.String())

		return ""
	}

	if tie := rowLine("micro/O2/none/x0"); !strings.Contains(tie, "0.0%") || strings.Contains(tie, "N/A") {
		t.Fatalf("tie with baseline rendered as %q", tie)
	}

	if noBase := rowLine("small/O2/none/x0"); !strings.Contains(noBase, "N/A") {
		t.Fatalf("row without baseline rendered as %q", noBase)
	}
}

func Test_BuildReport_Omits_Failures_When_None(t *testing.T) {
	t.Parallel()

	report := neobench.BuildReport(neobench.Batch{}, []neobench.Size{micro}, 0)
	if report.Failures != nil {
		t.Fatalf("failures=%#v, want nil", report.Failures)
	}
}
