package neobench

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

const (
	// MinRuns and MaxRuns bound [RunPlan] repetitions.
	MinRuns = 1
	MaxRuns = 7
)

// OptLevel is a compiler optimization level.
type OptLevel uint8

const (
	O0 OptLevel = iota
	O1
	O2
	O3
)

// AllOptLevels lists every supported level in ascending order.
var AllOptLevels = []OptLevel{O0, O1, O2, O3}

func (l OptLevel) String() string {
	return "O" + strconv.Itoa(int(l))
}

// Flag returns the compiler flag for the level (e.g. "-O2").
func (l OptLevel) Flag() string {
	return "-" + l.String()
}

func (l OptLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *OptLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseOptLevel(string(text))
	if err != nil {
		return err
	}

	*l = parsed

	return nil
}

// ParseOptLevel accepts "2", "O2", "o2" and "-O2".
func ParseOptLevel(s string) (OptLevel, error) {
	token := strings.TrimPrefix(strings.TrimSpace(s), "-")
	token = strings.TrimPrefix(strings.TrimPrefix(token, "O"), "o")

	n, err := strconv.Atoi(token)
	if err != nil || n < int(O0) || n > int(O3) {
		return 0, fmt.Errorf("unknown optimization level %q (expected 0-3)", s)
	}

	return OptLevel(n), nil
}

// Size is a named matrix dimension understood by the benchmark binary.
type Size struct {
	Name string `json:"name"`
	Dim  int    `json:"dim"`
}

func (s Size) String() string {
	return fmt.Sprintf("%s (%dx%d)", s.Name, s.Dim, s.Dim)
}

// KnownSizes are the size tokens the embedded benchmark source accepts.
var KnownSizes = []Size{
	{Name: "micro", Dim: 64},
	{Name: "small", Dim: 512},
	{Name: "medium", Dim: 2048},
	{Name: "large", Dim: 8192},
}

// LookupSize resolves a size token.
func LookupSize(name string) (Size, bool) {
	return lo.Find(KnownSizes, func(s Size) bool {
		return strings.EqualFold(s.Name, strings.TrimSpace(name))
	})
}

// RunPlan is a validated benchmark plan. Construct with [NewRunPlan].
//
// The zero value is not a valid plan. Accessors return copies so a plan
// cannot be modified after construction.
type RunPlan struct {
	levels       []OptLevel
	sizes        []Size
	archFlags    bool
	extraFlags   bool
	pgo          bool
	bolt         bool
	baselineOnly bool
	runs         int
}

// PlanSpec is the raw input to [NewRunPlan].
type PlanSpec struct {
	Levels       []OptLevel `json:"levels"`
	Sizes        []Size     `json:"sizes"`
	ArchFlags    bool       `json:"arch_flags"`
	ExtraFlags   bool       `json:"extra_flags"`
	PGO          bool       `json:"pgo"`
	BOLT         bool       `json:"bolt"`
	BaselineOnly bool       `json:"baseline_only,omitempty"`
	Runs         int        `json:"runs"`
}

// NewRunPlan validates spec and returns an immutable plan.
//
// Levels are deduplicated and sorted ascending. Sizes are deduplicated
// keeping first occurrence order.
func NewRunPlan(spec PlanSpec) (RunPlan, error) {
	if spec.Runs < MinRuns || spec.Runs > MaxRuns {
		return RunPlan{}, &ConfigError{
			Field:  "runs",
			Value:  strconv.Itoa(spec.Runs),
			Reason: fmt.Sprintf("must be between %d and %d", MinRuns, MaxRuns),
		}
	}

	if len(spec.Levels) == 0 {
		return RunPlan{}, &ConfigError{Field: "opt-levels", Reason: "at least one level is required"}
	}

	for _, l := range spec.Levels {
		if l > O3 {
			return RunPlan{}, &ConfigError{Field: "opt-levels", Value: l.String(), Reason: "unknown level"}
		}
	}

	if len(spec.Sizes) == 0 {
		return RunPlan{}, &ConfigError{Field: "sizes", Reason: "at least one size is required"}
	}

	for _, s := range spec.Sizes {
		if s.Name == "" || s.Dim <= 0 {
			return RunPlan{}, &ConfigError{Field: "sizes", Value: s.Name, Reason: "invalid size"}
		}
	}

	levels := lo.Uniq(spec.Levels)
	slices.Sort(levels)

	sizes := lo.UniqBy(spec.Sizes, func(s Size) string { return s.Name })

	return RunPlan{
		levels:       levels,
		sizes:        sizes,
		archFlags:    spec.ArchFlags,
		extraFlags:   spec.ExtraFlags,
		pgo:          spec.PGO,
		bolt:         spec.BOLT,
		baselineOnly: spec.BaselineOnly,
		runs:         spec.Runs,
	}, nil
}

func (p RunPlan) Levels() []OptLevel { return slices.Clone(p.levels) }
func (p RunPlan) Sizes() []Size      { return slices.Clone(p.sizes) }
func (p RunPlan) ArchFlags() bool    { return p.archFlags }
func (p RunPlan) ExtraFlags() bool   { return p.extraFlags }
func (p RunPlan) PGO() bool          { return p.pgo }
func (p RunPlan) BOLT() bool         { return p.bolt }
func (p RunPlan) BaselineOnly() bool { return p.baselineOnly }
func (p RunPlan) Runs() int          { return p.runs }

// Spec returns the plan as a [PlanSpec]. Used for persistence.
func (p RunPlan) Spec() PlanSpec {
	return PlanSpec{
		Levels:       p.Levels(),
		Sizes:        p.Sizes(),
		ArchFlags:    p.archFlags,
		ExtraFlags:   p.extraFlags,
		PGO:          p.pgo,
		BOLT:         p.bolt,
		BaselineOnly: p.baselineOnly,
		Runs:         p.runs,
	}
}
