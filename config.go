package neobench

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

// PlanFlags holds raw command-line values for a [RunPlan].
type PlanFlags struct {
	Runs         int
	Levels       []string
	Sizes        []string
	ArchFlags    bool
	ExtraFlags   bool
	PGO          bool
	BOLT         bool
	BaselineOnly bool
}

// Register binds the plan flags on fs.
func (f *PlanFlags) Register(fs *pflag.FlagSet) {
	fs.IntVarP(&f.Runs, "runs", "r", 3, fmt.Sprintf("repetitions per combination (%d-%d)", MinRuns, MaxRuns))
	fs.StringSliceVarP(&f.Levels, "opt-levels", "O", []string{"0", "1", "2", "3"}, "optimization levels (e.g. 0,2 or O2,O3)")
	fs.StringSliceVarP(&f.Sizes, "sizes", "s", []string{"micro", "small"}, "matrix sizes: "+knownSizeNames())
	fs.BoolVar(&f.ArchFlags, "arch-flags", false, "also test native CPU targeting")
	fs.BoolVar(&f.ExtraFlags, "extra-flags", false, "also test all 8 extra flag combinations")
	fs.BoolVar(&f.PGO, "pgo", false, "also test profile-guided optimization")
	fs.BoolVar(&f.BOLT, "bolt", false, "also test post-link layout optimization (perf + llvm-bolt)")
	fs.BoolVar(&f.BaselineOnly, "baseline-only", false, "only run the O0 baseline per size")
}

// Plan validates the flag values and builds the run plan.
// Errors are [*ConfigError].
func (f *PlanFlags) Plan() (RunPlan, error) {
	spec := PlanSpec{
		ArchFlags:    f.ArchFlags,
		ExtraFlags:   f.ExtraFlags,
		PGO:          f.PGO,
		BOLT:         f.BOLT,
		BaselineOnly: f.BaselineOnly,
		Runs:         f.Runs,
	}

	for _, raw := range f.Levels {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		level, err := ParseOptLevel(raw)
		if err != nil {
			return RunPlan{}, &ConfigError{Field: "opt-levels", Value: raw, Reason: "expected 0-3"}
		}

		spec.Levels = append(spec.Levels, level)
	}

	for _, raw := range f.Sizes {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		size, ok := LookupSize(raw)
		if !ok {
			return RunPlan{}, &ConfigError{Field: "sizes", Value: raw, Reason: "expected one of " + knownSizeNames()}
		}

		spec.Sizes = append(spec.Sizes, size)
	}

	return NewRunPlan(spec)
}

// ParsePlan parses command-line style args into a plan.
//
// Unknown flags and stray arguments are reported as [*ConfigError].
// -h/--help returns [pflag.ErrHelp].
func ParsePlan(args []string) (RunPlan, error) {
	fs := pflag.NewFlagSet("plan", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var flags PlanFlags

	flags.Register(fs)

	parseErr := fs.Parse(args)
	if errors.Is(parseErr, pflag.ErrHelp) {
		return RunPlan{}, pflag.ErrHelp
	}

	if parseErr != nil {
		return RunPlan{}, &ConfigError{Field: "arguments", Reason: parseErr.Error()}
	}

	if fs.NArg() > 0 {
		return RunPlan{}, &ConfigError{Field: "arguments", Value: fs.Arg(0), Reason: "unexpected argument"}
	}

	return flags.Plan()
}

func knownSizeNames() string {
	names := make([]string, 0, len(KnownSizes))
	for _, s := range KnownSizes {
		names = append(names, s.Name)
	}

	return strings.Join(names, ", ")
}
