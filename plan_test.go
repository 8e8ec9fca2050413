package neobench_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/neobench"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
)

func Test_ParsePlan_Returns_Defaults_When_No_Args(t *testing.T) {
	t.Parallel()

	plan, err := neobench.ParsePlan(nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	want := neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O0, neobench.O1, neobench.O2, neobench.O3},
		Sizes:  []neobench.Size{{Name: "micro", Dim: 64}, {Name: "small", Dim: 512}},
		Runs:   3,
	}

	if diff := cmp.Diff(want, plan.Spec()); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
}

func Test_ParsePlan_Normalizes_Levels_And_Sizes_When_Repeated(t *testing.T) {
	t.Parallel()

	plan, err := neobench.ParsePlan([]string{
		"--opt-levels", "O3,-O1,3,o1",
		"--sizes", "large,micro,LARGE",
		"--runs", "5",
		"--pgo", "--bolt", "--arch-flags", "--extra-flags",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if diff := cmp.Diff([]neobench.OptLevel{neobench.O1, neobench.O3}, plan.Levels()); diff != "" {
		t.Fatalf("levels mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]neobench.Size{{Name: "large", Dim: 8192}, {Name: "micro", Dim: 64}}, plan.Sizes()); diff != "" {
		t.Fatalf("sizes mismatch (-want +got):\n%s", diff)
	}

	if plan.Runs() != 5 || !plan.PGO() || !plan.BOLT() || !plan.ArchFlags() || !plan.ExtraFlags() {
		t.Fatalf("unexpected plan: %+v", plan.Spec())
	}
}

func Test_ParsePlan_Returns_ConfigError_When_Input_Invalid(t *testing.T) {
	t.Parallel()

	type testCase struct {
		name      string
		args      []string
		wantField string
	}

	tests := []testCase{
		{name: "RunsZero", args: []string{"--runs", "0"}, wantField: "runs"},
		{name: "RunsTooMany", args: []string{"-r", "8"}, wantField: "runs"},
		{name: "UnknownLevel", args: []string{"-O", "4"}, wantField: "opt-levels"},
		{name: "LevelNotNumber", args: []string{"-O", "Ofast"}, wantField: "opt-levels"},
		{name: "UnknownSize", args: []string{"--sizes", "huge"}, wantField: "sizes"},
		{name: "EmptySizes", args: []string{"--sizes", ""}, wantField: "sizes"},
		{name: "UnknownFlag", args: []string{"--turbo"}, wantField: "arguments"},
		{name: "StrayArgument", args: []string{"micro"}, wantField: "arguments"},
		{name: "RunsNotNumber", args: []string{"--runs", "many"}, wantField: "arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := neobench.ParsePlan(tt.args)
			if err == nil {
				t.Fatal("expected error")
			}

			var cfgErr *neobench.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T: %v", err, err)
			}

			if cfgErr.Field != tt.wantField {
				t.Fatalf("field=%q, want %q (%v)", cfgErr.Field, tt.wantField, err)
			}
		})
	}
}

func Test_ParsePlan_Returns_ErrHelp_When_Help_Requested(t *testing.T) {
	t.Parallel()

	for _, arg := range []string{"-h", "--help"} {
		_, err := neobench.ParsePlan([]string{arg})
		if !errors.Is(err, pflag.ErrHelp) {
			t.Fatalf("%s: expected pflag.ErrHelp, got %v", arg, err)
		}
	}
}

func Test_RunPlan_Accessors_Return_Copies_When_Caller_Mutates(t *testing.T) {
	t.Parallel()

	plan, err := neobench.NewRunPlan(neobench.PlanSpec{
		Levels: []neobench.OptLevel{neobench.O2},
		Sizes:  []neobench.Size{{Name: "micro", Dim: 64}},
		Runs:   1,
	})
	if err != nil {
		t.Fatalf("new plan: %v", err)
	}

	levels := plan.Levels()
	levels[0] = neobench.O3

	sizes := plan.Sizes()
	sizes[0].Name = "changed"

	if plan.Levels()[0] != neobench.O2 || plan.Sizes()[0].Name != "micro" {
		t.Fatalf("plan changed through accessor: %+v", plan.Spec())
	}
}

func Test_ParseOptLevel_Accepts_All_Spellings(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2", "O2", "o2", "-O2", " O2 "} {
		got, err := neobench.ParseOptLevel(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}

		if got != neobench.O2 {
			t.Fatalf("%q: got %v, want O2", in, got)
		}
	}

	for _, in := range []string{"", "O", "O4", "O-1", "fast"} {
		_, err := neobench.ParseOptLevel(in)
		if err == nil {
			t.Fatalf("%q: expected error", in)
		}
	}
}
