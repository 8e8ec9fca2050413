package neobench

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ArchVariant selects CPU targeting flags.
type ArchVariant uint8

const (
	// ArchNone uses the compiler's generic target.
	ArchNone ArchVariant = iota
	// ArchNative targets the host CPU.
	ArchNative
)

func (a ArchVariant) String() string {
	if a == ArchNative {
		return "native"
	}

	return "none"
}

func (a ArchVariant) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *ArchVariant) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*a = ArchNone
	case "native":
		*a = ArchNative
	default:
		return fmt.Errorf("unknown arch variant %q", text)
	}

	return nil
}

// flag returns the targeting flag for goarch, or "" for ArchNone.
// On arm64, -mcpu=native selects both the architecture and the tuning model.
func (a ArchVariant) flag(goarch string) string {
	if a == ArchNone {
		return ""
	}

	if goarch == "arm64" {
		return "-mcpu=native"
	}

	return "-march=native"
}

// ExtraFlags is a bitmask of optional code generation flags.
type ExtraFlags uint8

const (
	ExtraUnrollLoops ExtraFlags = 1 << iota
	ExtraFastMath
	ExtraOmitFramePointer

	// ExtraAll is the highest mask value; masks range over [0, ExtraAll].
	ExtraAll = ExtraUnrollLoops | ExtraFastMath | ExtraOmitFramePointer
)

var extraFlagNames = []struct {
	bit  ExtraFlags
	flag string
}{
	{ExtraUnrollLoops, "-funroll-loops"},
	{ExtraFastMath, "-ffast-math"},
	{ExtraOmitFramePointer, "-fomit-frame-pointer"},
}

// Flags returns the compiler flags selected by the mask, in bit order.
func (x ExtraFlags) Flags() []string {
	var out []string

	for _, e := range extraFlagNames {
		if x&e.bit != 0 {
			out = append(out, e.flag)
		}
	}

	return out
}

func (x ExtraFlags) String() string {
	if x == 0 {
		return "-"
	}

	return strings.Join(x.Flags(), " ")
}

// Combination is one point of the flag/size product under test.
//
// Combination is comparable and is used directly as a map key.
type Combination struct {
	Level OptLevel    `json:"level"`
	Arch  ArchVariant `json:"arch"`
	Extra ExtraFlags  `json:"extra"`
	PGO   bool        `json:"pgo"`
	BOLT  bool        `json:"bolt"`
	Size  Size        `json:"size"`
}

// Baseline returns the reference combination for size: O0 with nothing else.
func Baseline(size Size) Combination {
	return Combination{Level: O0, Size: size}
}

// IsBaseline reports whether c is the reference combination for its size.
func (c Combination) IsBaseline() bool {
	return c.Level == O0 && c.Arch == ArchNone && c.Extra == 0 && !c.PGO && !c.BOLT
}

// Key returns a stable, human-readable identity such as "micro/O2/native/x5/pgo/bolt".
// Keys are safe to use as file and lock names.
func (c Combination) Key() string {
	var b strings.Builder

	b.WriteString(c.Size.Name)
	b.WriteByte('/')
	b.WriteString(c.Level.String())
	b.WriteByte('/')
	b.WriteString(c.Arch.String())
	b.WriteString("/x")
	b.WriteString(strconv.Itoa(int(c.Extra)))

	if c.PGO {
		b.WriteString("/pgo")
	}

	if c.BOLT {
		b.WriteString("/bolt")
	}

	return b.String()
}

// Signature is Key with path separators replaced, for use in file names.
func (c Combination) Signature() string {
	return strings.ReplaceAll(c.Key(), "/", "-")
}

// CompilerFlags returns the flag list for c, excluding PGO stage flags and
// output/input paths. The list is only turned into a command line when the
// compiler is invoked.
func (c Combination) CompilerFlags(goarch string) []string {
	flags := []string{c.Level.Flag()}

	if f := c.Arch.flag(goarch); f != "" {
		flags = append(flags, f)
	}

	flags = append(flags, c.Extra.Flags()...)

	if c.BOLT {
		// llvm-bolt needs relocations to reorder functions.
		flags = append(flags, "-Wl,--emit-relocs")
	}

	return flags
}

// Expansion is the output of [Generate].
type Expansion struct {
	Combinations []Combination
	// Notes records adjustments made during expansion, such as an inserted baseline.
	Notes []string
}

// Generate expands plan into its ordered combinations.
//
// Order: size (plan order), level, arch, extra mask, PGO, BOLT. The baseline
// combination is first within every size. When plan omits O0, a single
// baseline per size is inserted and noted.
func Generate(plan RunPlan) Expansion {
	exp := Expansion{Combinations: make([]Combination, 0, combinationCount(plan))}

	levels := plan.Levels()
	hasO0 := slices.Contains(levels, O0)

	if plan.BaselineOnly() {
		for _, size := range plan.Sizes() {
			exp.Combinations = append(exp.Combinations, Baseline(size))
		}

		return exp
	}

	archs := []ArchVariant{ArchNone}
	if plan.ArchFlags() {
		archs = append(archs, ArchNative)
	}

	extras := []ExtraFlags{0}
	if plan.ExtraFlags() {
		extras = extras[:0]
		for x := ExtraFlags(0); x <= ExtraAll; x++ {
			extras = append(extras, x)
		}
	}

	pgos := toggles(plan.PGO())
	bolts := toggles(plan.BOLT())

	for _, size := range plan.Sizes() {
		if !hasO0 {
			exp.Combinations = append(exp.Combinations, Baseline(size))
			exp.Notes = append(exp.Notes,
				fmt.Sprintf("%s: O0 not requested, added baseline %s for comparison", size.Name, Baseline(size).Key()))
		}

		for _, level := range levels {
			for _, arch := range archs {
				for _, extra := range extras {
					for _, pgo := range pgos {
						for _, bolt := range bolts {
							exp.Combinations = append(exp.Combinations, Combination{
								Level: level,
								Arch:  arch,
								Extra: extra,
								PGO:   pgo,
								BOLT:  bolt,
								Size:  size,
							})
						}
					}
				}
			}
		}
	}

	return exp
}

// combinationCount returns the number of combinations [Generate] yields for plan.
func combinationCount(plan RunPlan) int {
	sizes := len(plan.Sizes())
	if plan.BaselineOnly() {
		return sizes
	}

	perSize := len(plan.Levels())
	if plan.ArchFlags() {
		perSize *= 2
	}

	if plan.ExtraFlags() {
		perSize *= int(ExtraAll) + 1
	}

	if plan.PGO() {
		perSize *= 2
	}

	if plan.BOLT() {
		perSize *= 2
	}

	if !slices.Contains(plan.Levels(), O0) {
		perSize++
	}

	return perSize * sizes
}

func toggles(enabled bool) []bool {
	if enabled {
		return []bool{false, true}
	}

	return []bool{false}
}
