package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/calvinalkan/neobench"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var errAllFailed = errors.New("every combination failed")

type runFlags struct {
	plan neobench.PlanFlags

	jobs           int
	reserve        int
	workDir        string
	sourcePath     string
	timeout        time.Duration
	lockWait       time.Duration
	lockStale      time.Duration
	pgoFailure     string
	top            int
	json           bool
	out            string
	statusInterval time.Duration
	noStatus       bool
	toolchain      neobench.Toolchain
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	f.plan.Register(fs)

	def := neobench.DefaultToolchain()

	fs.IntVarP(&f.jobs, "jobs", "j", 0, "parallel combinations (default: available CPUs minus --reserve)")
	fs.IntVar(&f.reserve, "reserve", 1, "CPUs kept free when sizing the default worker pool")
	fs.StringVar(&f.workDir, "work-dir", "", "root for per-combination workspaces and lock files (default: $TMPDIR/neobench)")
	fs.StringVar(&f.sourcePath, "source", "", "benchmark C source (default: embedded matmul kernel)")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Minute, "timeout per subprocess step")
	fs.DurationVar(&f.lockWait, "lock-wait", 5*time.Minute, "maximum wait for a combination lock")
	fs.DurationVar(&f.lockStale, "lock-stale", 30*time.Minute, "age after which a held lock is reclaimed")
	fs.StringVar(&f.pgoFailure, "pgo-failure", "skip", "on PGO profile failure: skip | degrade")
	fs.IntVar(&f.top, "top", 0, "show only the N fastest combinations per size (baseline always shown)")
	fs.BoolVar(&f.json, "json", false, "print the report as JSON")
	fs.StringVar(&f.out, "out", "", "also save the results file to this path")
	fs.DurationVar(&f.statusInterval, "status-interval", time.Second, "live status refresh interval")
	fs.BoolVar(&f.noStatus, "no-status", false, "disable the live status display")
	fs.StringVar(&f.toolchain.CC, "cc", def.CC, "C compiler")
	fs.StringVar(&f.toolchain.Perf, "perf", def.Perf, "perf binary")
	fs.StringVar(&f.toolchain.Perf2Bolt, "perf2bolt", def.Perf2Bolt, "perf2bolt binary")
	fs.StringVar(&f.toolchain.Bolt, "llvm-bolt", def.Bolt, "llvm-bolt binary")
}

// options converts the executor flags. Errors are *neobench.ConfigError.
func (f *runFlags) options() ([]neobench.Option, error) {
	policy, err := neobench.ParsePGOFailurePolicy(f.pgoFailure)
	if err != nil {
		return nil, err
	}

	if f.jobs < 0 {
		return nil, &neobench.ConfigError{Field: "jobs", Value: fmt.Sprint(f.jobs), Reason: "must not be negative"}
	}

	if f.top < 0 {
		return nil, &neobench.ConfigError{Field: "top", Value: fmt.Sprint(f.top), Reason: "must not be negative"}
	}

	opts := []neobench.Option{
		neobench.WithWorkers(f.jobs),
		neobench.WithReserve(f.reserve),
		neobench.WithToolchain(f.toolchain),
		neobench.WithStepTimeout(f.timeout),
		neobench.WithLockWait(f.lockWait),
		neobench.WithLockStale(f.lockStale),
		neobench.WithPGOFailure(policy),
	}

	if f.workDir != "" {
		opts = append(opts, neobench.WithWorkDir(f.workDir))
	}

	if f.sourcePath != "" {
		src, readErr := os.ReadFile(f.sourcePath)
		if readErr != nil {
			return nil, &neobench.ConfigError{Field: "source", Value: f.sourcePath, Reason: readErr.Error()}
		}

		opts = append(opts, neobench.WithSource(src))
	}

	return opts, nil
}

func (a *app) runCommand() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Build, measure and rank every combination",
		Example: `  # O0 vs O2 on the micro size, one run each
  neobench run -O 0,2 -s micro -r 1

  # Full sweep with native targeting, extra flags and PGO, saved for later
  neobench run --arch-flags --extra-flags --pgo --out results.json

  # Only the baseline, as JSON
  neobench run --baseline-only --json`,
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runBatch(cmd.Context(), &flags)
		},
	}

	flags.register(cmd.Flags())

	return cmd
}

func (a *app) runBatch(ctx context.Context, flags *runFlags) error {
	plan, err := flags.plan.Plan()
	if err != nil {
		return err
	}

	opts, err := flags.options()
	if err != nil {
		return err
	}

	exp := neobench.Generate(plan)
	for _, note := range exp.Notes {
		fmt.Fprintf(a.stderr, "note: %s\n", note)
	}

	board := neobench.NewStatusBoard(exp.Combinations)
	diag := &diagnostics{w: a.stderr, verbose: a.verbose}

	opts = append(opts,
		neobench.WithStatusBoard(board),
		neobench.WithOnFailure(diag.record),
	)

	executor, err := neobench.NewExecutor(a.runner, opts...)
	if err != nil {
		return fmt.Errorf("create executor: %w", err)
	}

	fmt.Fprintf(a.stderr, "running %d combinations x %d runs on %d workers\n",
		len(exp.Combinations), plan.Runs(), executor.Workers())

	watchCtx, stopWatch := context.WithCancel(ctx)

	var watchers sync.WaitGroup

	if !flags.noStatus {
		watchers.Go(func() {
			neobench.WatchStatus(watchCtx, board, flags.statusInterval, a.stderr)
		})
	}

	start := a.now()
	batch := executor.Run(ctx, plan, exp.Combinations)

	stopWatch()
	watchers.Wait()

	diag.summary(len(batch.Failures))
	fmt.Fprintf(a.stderr, "finished in %s\n", a.now().Sub(start).Round(time.Millisecond))

	report := neobench.BuildReport(batch, plan.Sizes(), flags.top)

	writeErr := a.writeReport(a.stdout, report, flags.json)
	if writeErr != nil {
		return writeErr
	}

	if flags.out != "" {
		file := neobench.NewResultsFile(plan, exp, batch, a.host(), a.now())

		saveErr := neobench.SaveResults(flags.out, file)
		if saveErr != nil {
			return saveErr
		}

		fmt.Fprintf(a.stderr, "results saved to %s\n", flags.out)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted: %w", ctx.Err())
	}

	if len(batch.Results) == 0 && len(exp.Combinations) > 0 {
		return errAllFailed
	}

	return nil
}

func (a *app) writeReport(w io.Writer, report neobench.Report, asJSON bool) error {
	if asJSON {
		return neobench.WriteJSON(w, report)
	}

	return neobench.WriteText(w, report)
}

// diagnostics reports failures inline in verbose mode and as a count otherwise.
type diagnostics struct {
	w       io.Writer
	verbose bool

	mu       sync.Mutex
	degraded int
}

func (d *diagnostics) record(err error, fatal bool, _ int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !fatal {
		d.degraded++
	}

	if !d.verbose {
		return
	}

	if fatal {
		fmt.Fprintf(d.w, "FAIL %v\n", err)
	} else {
		fmt.Fprintf(d.w, "WARN %v\n", err)
	}
}

func (d *diagnostics) summary(failed int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if failed == 0 && d.degraded == 0 {
		return
	}

	fmt.Fprintf(d.w, "%d combinations failed, %d warnings", failed, d.degraded)

	if !d.verbose {
		fmt.Fprint(d.w, " (use --verbose for details)")
	}

	fmt.Fprintln(d.w)
}
