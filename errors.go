package neobench

import (
	"errors"
	"fmt"
	"time"
)

// ErrStepTimeout is wrapped by errors from subprocesses that exceeded the
// per-step timeout.
var ErrStepTimeout = errors.New("step timed out")

// ConfigError is returned for invalid run configuration. It is the only error
// that is fatal to a whole invocation.
type ConfigError struct {
	// Field is the flag or plan field that failed validation.
	Field string
	// Value is the offending input, if any.
	Value string
	// Reason describes the constraint that was violated.
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}

	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// CompileError is returned when a toolchain invocation for a combination fails.
type CompileError struct {
	// Stage is the build stage: "build", "pgo-instrument" or "pgo-use".
	Stage string
	// Output is the combined compiler output, possibly truncated.
	Output string
	// Err is the underlying error.
	Err error
}

func (e *CompileError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("compile (%s): %v", e.Stage, e.Err)
	}

	return fmt.Sprintf("compile (%s): %v: %s", e.Stage, e.Err, e.Output)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ProfileError is returned when the PGO training run fails or produces no
// profile data.
type ProfileError struct {
	// Dir is the profile output directory.
	Dir string
	// Err is the underlying error.
	Err error
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("profile generation %s: %v", e.Dir, e.Err)
}

func (e *ProfileError) Unwrap() error {
	return e.Err
}

// LayoutError is recorded when trace collection or layout rewriting fails.
// The pre-rewrite binary is used instead.
type LayoutError struct {
	// Op is the failing operation: "record", "convert" or "rewrite".
	Op string
	// Err is the underlying error.
	Err error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout %s: %v", e.Op, e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// MeasurementError is returned when benchmark output cannot be parsed.
type MeasurementError struct {
	// Run is the 1-based run index, or 0 when all runs were discarded.
	Run int
	// Output is the (truncated) benchmark output.
	Output string
	// Err is the underlying error.
	Err error
}

func (e *MeasurementError) Error() string {
	if e.Run == 0 {
		return fmt.Sprintf("measure: %v", e.Err)
	}

	return fmt.Sprintf("measure run %d: %v", e.Run, e.Err)
}

func (e *MeasurementError) Unwrap() error {
	return e.Err
}

// LockError is returned when an advisory lock cannot be acquired in time.
type LockError struct {
	// Name is the lock name.
	Name string
	// Waited is how long the requester waited.
	Waited time.Duration
	// Err is the underlying error (context error or lock I/O error).
	Err error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s: gave up after %s: %v", e.Name, e.Waited.Round(time.Millisecond), e.Err)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// ComboError ties a per-combination failure to its combination.
type ComboError struct {
	Combination Combination
	Err         error
}

func (e *ComboError) Error() string {
	return fmt.Sprintf("%s: %v", e.Combination.Key(), e.Err)
}

func (e *ComboError) Unwrap() error {
	return e.Err
}

// truncate limits captured tool output kept in errors.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "...(truncated)"
}
