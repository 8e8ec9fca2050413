package neobench

// executor.go runs a batch of combinations on a bounded worker pool.
//
// Each combination runs end-to-end on one worker:
//
//	workspace ─> [lock] ─> build (plain | PGO) ─> [layout rewrite] ─> [unlock] ─> runs × N ─> aggregate
//	    └──────────────────────── removed on every exit path ────────────────────────┘
//
// The lock is only taken for PGO/BOLT combinations. Failures are contained
// per combination: they are reported through WithOnFailure and collected in
// Batch.Failures, and never stop other combinations.

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Batch is the outcome of [Executor.Run].
type Batch struct {
	// Results holds one entry per successful combination, in input order.
	Results []AggregatedResult
	// Failures holds one entry per failed combination, in input order.
	Failures []*ComboError
}

// Executor builds and measures combinations.
type Executor struct {
	runner CommandRunner
	cfg    options
	locks  *LockSet

	failMu   sync.Mutex
	failures int
}

// NewExecutor creates an executor that runs subprocesses through runner.
func NewExecutor(runner CommandRunner, opts ...Option) (*Executor, error) {
	if runner == nil {
		return nil, errors.New("nil command runner")
	}

	cfg := applyOptions(opts)

	locks, err := NewLockSet(filepath.Join(cfg.WorkDir, "locks"), cfg.LockStale)
	if err != nil {
		return nil, err
	}

	return &Executor{runner: runner, cfg: cfg, locks: locks}, nil
}

// Workers returns the configured pool size.
func (e *Executor) Workers() int {
	return e.cfg.Workers
}

// Run builds and measures every combination with plan.Runs() repetitions.
//
// Run blocks until all combinations finished or failed. Canceling ctx kills
// in-flight subprocesses; affected and not-yet-started combinations are
// reported as failures.
func (e *Executor) Run(ctx context.Context, plan RunPlan, combos []Combination) Batch {
	results := make([]*AggregatedResult, len(combos))
	failures := make([]*ComboError, len(combos))

	var g errgroup.Group

	g.SetLimit(e.cfg.Workers)

	klog.V(1).Infof("running %d combinations on %d workers", len(combos), e.cfg.Workers)

	for i, c := range combos {
		g.Go(func() error {
			res, err := e.runCombination(ctx, c, plan.Runs())
			if err != nil {
				failures[i] = &ComboError{Combination: c, Err: err}
				e.notify(failures[i], true)

				return nil
			}

			results[i] = &res

			return nil
		})
	}

	_ = g.Wait()

	var batch Batch

	for i := range combos {
		if results[i] != nil {
			batch.Results = append(batch.Results, *results[i])
		}

		if failures[i] != nil {
			batch.Failures = append(batch.Failures, failures[i])
		}
	}

	return batch
}

func (e *Executor) runCombination(ctx context.Context, c Combination, runs int) (res AggregatedResult, err error) {
	board := e.cfg.Status

	board.Start(c, runs)
	defer func() { board.Finish(c, err != nil) }()

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return AggregatedResult{}, fmt.Errorf("not started: %w", ctxErr)
	}

	ws, err := newWorkspace(e.cfg.WorkDir, c, e.cfg.Source)
	if err != nil {
		return AggregatedResult{}, err
	}

	defer func() {
		removeErr := ws.remove()
		if removeErr != nil {
			klog.Warningf("%s: %v", c.Key(), removeErr)
		}
	}()

	built, err := e.buildLocked(ctx, ws, c)
	if err != nil {
		return AggregatedResult{}, err
	}

	samples, discarded, err := e.measure(ctx, c, built, runs)
	if err != nil {
		return AggregatedResult{}, err
	}

	res = Aggregate(c, samples)
	res.Discarded = discarded
	res.Degradations = built.degradations

	klog.V(1).Infof("%s: %.2f GFLOPS (%d/%d runs kept)", c.Key(), res.GFLOPS, len(samples), runs)

	return res, nil
}

// buildLocked builds c, holding the combination's advisory lock while PGO or
// layout tooling runs.
func (e *Executor) buildLocked(ctx context.Context, ws *workspace, c Combination) (buildOutput, error) {
	if !c.PGO && !c.BOLT {
		return e.build(ctx, ws, c)
	}

	release, err := e.locks.Acquire(ctx, c.Signature(), e.cfg.LockWait)
	if err != nil {
		return buildOutput{}, err
	}

	defer release()

	return e.build(ctx, ws, c)
}

// measure runs the final binary runs times.
//
// Unparseable output and failed runs discard that sample. Timeouts and
// cancellation fail the combination.
func (e *Executor) measure(ctx context.Context, c Combination, built buildOutput, runs int) ([]TrialSample, int, error) {
	samples := make([]TrialSample, 0, runs)
	discarded := 0

	for run := 1; run <= runs; run++ {
		e.cfg.Status.SetRun(c, run)

		res, err := e.runner.Run(ctx, e.stepCommand(built.dir, built.binary, c.Size.Name))
		if err != nil && (errors.Is(err, ErrStepTimeout) || ctx.Err() != nil) {
			return nil, discarded, fmt.Errorf("benchmark run %d: %w", run, err)
		}

		if err == nil {
			gflops, seconds, parseErr := ParseBenchOutput(res.Stdout)
			if parseErr == nil {
				samples = append(samples, TrialSample{
					GFLOPS:         gflops,
					WallSeconds:    seconds,
					CompileSeconds: built.compileTime.Seconds(),
				})

				continue
			}

			err = parseErr
		}

		discarded++

		e.notify(&ComboError{Combination: c, Err: &MeasurementError{
			Run:    run,
			Output: truncate(res.Combined(), 512),
			Err:    err,
		}}, false)
	}

	if len(samples) == 0 {
		return nil, discarded, &MeasurementError{Err: fmt.Errorf("all %d runs discarded", runs)}
	}

	return samples, discarded, nil
}

// notify logs err and forwards it to the OnFailure handler. fatal marks a
// failed combination; non-fatal errors are discarded samples or degradations.
func (e *Executor) notify(err *ComboError, fatal bool) {
	e.failMu.Lock()
	defer e.failMu.Unlock()

	if fatal {
		e.failures++
		klog.V(1).Infof("combination failed: %v", err)
	} else {
		klog.V(2).Infof("combination degraded: %v", err)
	}

	if e.cfg.OnFailure != nil {
		e.cfg.OnFailure(err, fatal, e.failures)
	}
}

// stepCommand builds a subprocess command with the per-step timeout.
func (e *Executor) stepCommand(dir, name string, args ...string) Command {
	return Command{Name: name, Args: args, Dir: dir, Timeout: e.cfg.StepTimeout}
}
