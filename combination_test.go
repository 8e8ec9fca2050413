package neobench_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/neobench"
	"github.com/google/go-cmp/cmp"
)

var (
	micro = neobench.Size{Name: "micro", Dim: 64}
	small = neobench.Size{Name: "small", Dim: 512}
)

func mustPlan(t *testing.T, spec neobench.PlanSpec) neobench.RunPlan {
	t.Helper()

	if spec.Runs == 0 {
		spec.Runs = 1
	}

	plan, err := neobench.NewRunPlan(spec)
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}

	return plan
}

func keys(combos []neobench.Combination) []string {
	out := make([]string, 0, len(combos))
	for _, c := range combos {
		out = append(out, c.Key())
	}

	return out
}

func Test_Generate_Yields_Level_Product_When_Toggles_Off(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O0, neobench.O2},
		Sizes:  []neobench.Size{micro},
	})

	exp := neobench.Generate(plan)

	want := []string{"micro/O0/none/x0", "micro/O2/none/x0"}
	if diff := cmp.Diff(want, keys(exp.Combinations)); diff != "" {
		t.Fatalf("combinations mismatch (-want +got):\n%s", diff)
	}

	if len(exp.Notes) != 0 {
		t.Fatalf("unexpected notes: %v", exp.Notes)
	}

	if !exp.Combinations[0].IsBaseline() {
		t.Fatalf("first combination is not the baseline: %s", exp.Combinations[0].Key())
	}
}

func Test_Generate_Count_Matches_Product_When_All_Toggles_On(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels:     neobench.AllOptLevels,
		Sizes:      []neobench.Size{micro, small},
		ArchFlags:  true,
		ExtraFlags: true,
		PGO:        true,
		BOLT:       true,
	})

	exp := neobench.Generate(plan)

	// 4 levels x 2 arch x 8 extra x 2 pgo x 2 bolt, per size.
	const want = 2 * 4 * 2 * 8 * 2 * 2
	if len(exp.Combinations) != want {
		t.Fatalf("got %d combinations, want %d", len(exp.Combinations), want)
	}

	if got := neobench.CombinationCount(plan); got != want {
		t.Fatalf("CombinationCount=%d, want %d", got, want)
	}

	seen := make(map[neobench.Combination]bool, len(exp.Combinations))
	for _, c := range exp.Combinations {
		if seen[c] {
			t.Fatalf("duplicate combination %s", c.Key())
		}

		seen[c] = true
	}
}

func Test_Generate_Inserts_Baseline_When_O0_Not_Requested(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O2, neobench.O3},
		Sizes:  []neobench.Size{micro, small},
		PGO:    true,
	})

	exp := neobench.Generate(plan)

	if len(exp.Combinations) != neobench.CombinationCount(plan) {
		t.Fatalf("count mismatch: generated %d, CombinationCount %d", len(exp.Combinations), neobench.CombinationCount(plan))
	}

	baselines := 0

	for _, c := range exp.Combinations {
		if c.IsBaseline() {
			baselines++
		}
	}

	if baselines != 2 {
		t.Fatalf("got %d baselines, want one per size", baselines)
	}

	if exp.Combinations[0] != neobench.Baseline(micro) {
		t.Fatalf("first combination %s, want micro baseline", exp.Combinations[0].Key())
	}

	if len(exp.Notes) != 2 || !strings.Contains(exp.Notes[0], "micro") {
		t.Fatalf("unexpected notes: %v", exp.Notes)
	}
}

func Test_Generate_Is_Deterministic_When_Called_Twice(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels:     []neobench.OptLevel{neobench.O3, neobench.O1},
		Sizes:      []neobench.Size{small, micro},
		ArchFlags:  true,
		ExtraFlags: true,
	})

	first := neobench.Generate(plan)
	second := neobench.Generate(plan)

	if diff := cmp.Diff(keys(first.Combinations), keys(second.Combinations)); diff != "" {
		t.Fatalf("expansion not deterministic (-first +second):\n%s", diff)
	}

	if first.Combinations[0].Size != small {
		t.Fatalf("sizes not in plan order: first is %s", first.Combinations[0].Key())
	}
}

func Test_Generate_Yields_One_Baseline_Per_Size_When_BaselineOnly(t *testing.T) {
	t.Parallel()

	plan := mustPlan(t, neobench.PlanSpec{
		Levels:       []neobench.OptLevel{neobench.O3},
		Sizes:        []neobench.Size{micro, small},
		PGO:          true,
		BaselineOnly: true,
	})

	exp := neobench.Generate(plan)

	want := []string{"micro/O0/none/x0", "small/O0/none/x0"}
	if diff := cmp.Diff(want, keys(exp.Combinations)); diff != "" {
		t.Fatalf("combinations mismatch (-want +got):\n%s", diff)
	}

	if neobench.CombinationCount(plan) != 2 {
		t.Fatalf("CombinationCount=%d, want 2", neobench.CombinationCount(plan))
	}
}

func Test_Combination_CompilerFlags_Follow_Arch_When_Native(t *testing.T) {
	t.Parallel()

	c := neobench.Combination{
		Level: neobench.O3,
		Arch:  neobench.ArchNative,
		Extra: neobench.ExtraUnrollLoops | neobench.ExtraOmitFramePointer,
		BOLT:  true,
		Size:  micro,
	}

	arm := c.CompilerFlags("arm64")
	wantARM := []string{"-O3", "-mcpu=native", "-funroll-loops", "-fomit-frame-pointer", "-Wl,--emit-relocs"}

	if diff := cmp.Diff(wantARM, arm); diff != "" {
		t.Fatalf("arm64 flags mismatch (-want +got):\n%s", diff)
	}

	x86 := c.CompilerFlags("amd64")
	if x86[1] != "-march=native" {
		t.Fatalf("amd64 arch flag=%q, want -march=native", x86[1])
	}

	if got := c.Key(); got != "micro/O3/native/x5/bolt" {
		t.Fatalf("key=%q", got)
	}

	if got := c.Signature(); strings.Contains(got, "/") {
		t.Fatalf("signature contains separator: %q", got)
	}
}

func Test_Combination_IsBaseline_Only_When_Nothing_Enabled(t *testing.T) {
	t.Parallel()

	base := neobench.Baseline(micro)
	if !base.IsBaseline() {
		t.Fatal("Baseline() is not a baseline")
	}

	variants := []neobench.Combination{
		{Level: neobench.O1, Size: micro},
		{Arch: neobench.ArchNative, Size: micro},
		{Extra: neobench.ExtraFastMath, Size: micro},
		{PGO: true, Size: micro},
		{BOLT: true, Size: micro},
	}

	for _, v := range variants {
		if v.IsBaseline() {
			t.Fatalf("%s reported as baseline", v.Key())
		}
	}
}
