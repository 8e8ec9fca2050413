package neobench

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Option configures an [Executor]. Options are applied in order.
type Option func(*options)

// PGOFailurePolicy decides what happens to a PGO combination whose profile
// generation fails.
type PGOFailurePolicy uint8

const (
	// PGOSkip drops the combination. Default.
	PGOSkip PGOFailurePolicy = iota
	// PGODegrade rebuilds without profile data and records a degradation.
	PGODegrade
)

func (p PGOFailurePolicy) String() string {
	if p == PGODegrade {
		return "degrade"
	}

	return "skip"
}

// ParsePGOFailurePolicy parses "skip" or "degrade".
func ParsePGOFailurePolicy(s string) (PGOFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return PGOSkip, nil
	case "degrade":
		return PGODegrade, nil
	default:
		return PGOSkip, &ConfigError{Field: "pgo-failure", Value: s, Reason: "expected skip or degrade"}
	}
}

// WithWorkers sets the worker pool size.
//
// # Default
//
// [AvailableCPUs] minus the reserve (see [WithReserve]), minimum 1.
// Benchmark runs are CPU bound and share the machine, so running more
// workers than CPUs distorts the measurements of every combination.
//
// Values <= 0 use the default.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.Workers = n
	}
}

// WithReserve sets how many CPUs are kept free when sizing the default pool.
// Values < 0 use the default of 1.
func WithReserve(n int) Option {
	return func(o *options) {
		o.Reserve = n
	}
}

// WithToolchain overrides compiler and profiling tool paths.
func WithToolchain(t Toolchain) Option {
	return func(o *options) {
		o.Toolchain = t
	}
}

// WithWorkDir sets the root under which per-combination workspaces and lock
// files are created. Default: $TMPDIR/neobench.
func WithWorkDir(dir string) Option {
	return func(o *options) {
		o.WorkDir = dir
	}
}

// WithSource replaces the embedded benchmark source. The source must honor
// the size-token argument and output format of the embedded kernel.
func WithSource(src []byte) Option {
	return func(o *options) {
		o.Source = src
	}
}

// WithStepTimeout bounds every subprocess invocation (compile, training run,
// benchmark run, trace record, rewrite). Default 10m. Values <= 0 use the default.
func WithStepTimeout(d time.Duration) Option {
	return func(o *options) {
		o.StepTimeout = d
	}
}

// WithLockWait bounds how long a worker waits for an advisory lock.
// Default 5m. Values <= 0 use the default.
func WithLockWait(d time.Duration) Option {
	return func(o *options) {
		o.LockWait = d
	}
}

// WithLockStale sets the age after which a held lock is considered abandoned
// and may be reclaimed. Default 30m. Values <= 0 use the default.
func WithLockStale(d time.Duration) Option {
	return func(o *options) {
		o.LockStale = d
	}
}

// WithPGOFailure sets the [PGOFailurePolicy]. Default [PGOSkip].
func WithPGOFailure(p PGOFailurePolicy) Option {
	return func(o *options) {
		o.PGOFailure = p
	}
}

// WithMinTraceBytes sets the minimum perf trace size accepted for layout
// rewriting. Smaller traces are treated as failed collection. Default 8 KiB.
func WithMinTraceBytes(n int64) Option {
	return func(o *options) {
		o.MinTraceBytes = n
	}
}

// WithOnFailure registers a handler for per-combination failures and
// degradations.
//
// err is a [*ComboError]. failures is the cumulative count of failed
// combinations, including this one when fatal is true. The handler is
// serialized across workers.
func WithOnFailure(fn func(err error, fatal bool, failures int)) Option {
	return func(o *options) {
		o.OnFailure = fn
	}
}

// WithStatusBoard makes the executor publish progress to board.
func WithStatusBoard(board *StatusBoard) Option {
	return func(o *options) {
		o.Status = board
	}
}

// WithGOARCH sets the target architecture used to pick arch flags.
// Default runtime.GOARCH.
func WithGOARCH(goarch string) Option {
	return func(o *options) {
		o.GOARCH = goarch
	}
}

type options struct {
	// Workers is the worker pool size.
	Workers int
	// Reserve is the CPU count kept free when Workers is defaulted.
	Reserve int
	// Toolchain names the external tools.
	Toolchain Toolchain
	// WorkDir is the workspace and lock root.
	WorkDir string
	// Source is the benchmark C source.
	Source []byte
	// StepTimeout bounds each subprocess.
	StepTimeout time.Duration
	// LockWait bounds advisory lock acquisition.
	LockWait time.Duration
	// LockStale is the lock reclaim age.
	LockStale time.Duration
	// PGOFailure decides skip vs degrade.
	PGOFailure PGOFailurePolicy
	// MinTraceBytes is the smallest acceptable perf trace.
	MinTraceBytes int64
	// OnFailure observes failures and degradations.
	OnFailure func(err error, fatal bool, failures int)
	// Status receives progress updates.
	Status *StatusBoard
	// GOARCH selects arch flag spelling.
	GOARCH string
}

const (
	defaultReserve       = 1
	defaultStepTimeout   = 10 * time.Minute
	defaultLockWait      = 5 * time.Minute
	defaultLockStale     = 30 * time.Minute
	defaultMinTraceBytes = 8 << 10
)

// applyOptions merges option values and applies defaults.
func applyOptions(opts []Option) options {
	cfg := options{Reserve: -1}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	if cfg.Reserve < 0 {
		cfg.Reserve = defaultReserve
	}

	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers(cfg.Reserve)
	}

	cfg.Toolchain = cfg.Toolchain.withDefaults()

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "neobench")
	}

	if len(cfg.Source) == 0 {
		cfg.Source = BenchmarkSource()
	}

	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = defaultStepTimeout
	}

	if cfg.LockWait <= 0 {
		cfg.LockWait = defaultLockWait
	}

	if cfg.LockStale <= 0 {
		cfg.LockStale = defaultLockStale
	}

	if cfg.MinTraceBytes <= 0 {
		cfg.MinTraceBytes = defaultMinTraceBytes
	}

	if cfg.GOARCH == "" {
		cfg.GOARCH = runtime.GOARCH
	}

	return cfg
}

// DefaultWorkers returns the pool size used when [WithWorkers] is not set:
// [AvailableCPUs] minus reserve, minimum 1.
func DefaultWorkers(reserve int) int {
	return max(AvailableCPUs()-max(reserve, 0), 1)
}
