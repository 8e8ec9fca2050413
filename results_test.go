package neobench_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/neobench"
	"github.com/google/go-cmp/cmp"
)

func Test_SaveResults_Round_Trips_When_Loaded(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O3},
		Sizes:  []neobench.Size{micro},
		PGO:    true,
		Runs:   2,
	})
	exp := neobench.Generate(plan)

	batch := neobench.Batch{
		Results: []neobench.AggregatedResult{
			result(neobench.Baseline(micro), 2),
			result(neobench.Combination{Level: neobench.O3, Arch: neobench.ArchNative, Extra: neobench.ExtraFastMath, Size: micro}, 9),
		},
		Failures: []*neobench.ComboError{{
			Combination: neobench.Combination{Level: neobench.O3, PGO: true, Size: micro},
			Err:         errors.New("profile generation: empty"),
		}},
	}

	host := neobench.HostInfo{Hostname: "ci", GOOS: "linux", GOARCH: "arm64", CPUModel: "Neoverse-V2", NumCPU: 64, Available: 64}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	want := neobench.NewResultsFile(plan, exp, batch, host, now)
	path := filepath.Join(t.TempDir(), "results.json")

	err := neobench.SaveResults(path, want)
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := neobench.LoadResults(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	if got.Failures[0].Key != "micro/O3/none/x0/pgo" {
		t.Fatalf("failure key=%q", got.Failures[0].Key)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func Test_ResultsFile_Report_Matches_BuildReport(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O0, neobench.O2},
		Sizes:  []neobench.Size{micro, small},
	})

	batch := neobench.Batch{Results: []neobench.AggregatedResult{
		result(neobench.Baseline(micro), 2),
		result(neobench.Combination{Level: neobench.O2, Size: micro}, 3),
		result(neobench.Baseline(small), 1),
	}}

	file := neobench.NewResultsFile(plan, neobench.Generate(plan), batch, neobench.HostInfo{}, time.Now())

	if diff := cmp.Diff(neobench.BuildReport(batch, plan.Sizes(), 1), file.Report(1)); diff != "" {
		t.Fatalf("report mismatch (-direct +file):\n%s", diff)
	}
}

func Test_LoadResults_Returns_Error_When_File_Invalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := neobench.LoadResults(filepath.Join(dir, "missing.json"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")

	writeErr := os.WriteFile(bad, []byte("{not json"), 0o644)
	if writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	_, err = neobench.LoadResults(bad)
	if err == nil {
		t.Fatal("expected parse error")
	}
}
