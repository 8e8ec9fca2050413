package neobench

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// rewriteLayout records a perf trace of binary and rewrites its layout with
// llvm-bolt. It returns the path of the rewritten binary; binary itself is
// never modified. Errors are [*LayoutError].
func (e *Executor) rewriteLayout(ctx context.Context, ws *workspace, c Combination, binary string) (string, error) {
	tools := e.cfg.Toolchain
	trace := ws.path("perf.data")

	// Branch stacks (LBR/BRBE) give llvm-bolt edge profiles. Hosts without
	// them fall back to plain sampling, which perf2bolt reads with -nl.
	branchStacks := true

	_, err := e.runner.Run(ctx, e.stepCommand(ws.dir, tools.Perf,
		"record", "-e", "cycles:u", "-j", "any,u", "-o", trace, "--", binary, c.Size.Name))
	if err != nil {
		// Only a refused -j is retried; a timeout has used the step budget.
		if ctx.Err() != nil || errors.Is(err, ErrStepTimeout) {
			return "", &LayoutError{Op: "record", Err: err}
		}

		branchStacks = false

		_, err = e.runner.Run(ctx, e.stepCommand(ws.dir, tools.Perf,
			"record", "-e", "cycles:u", "-o", trace, "--", binary, c.Size.Name))
		if err != nil {
			return "", &LayoutError{Op: "record", Err: err}
		}
	}

	info, statErr := os.Stat(trace)
	if statErr != nil {
		return "", &LayoutError{Op: "record", Err: statErr}
	}

	if info.Size() < e.cfg.MinTraceBytes {
		return "", &LayoutError{Op: "record", Err: fmt.Errorf("trace has %d bytes, need at least %d", info.Size(), e.cfg.MinTraceBytes)}
	}

	fdata := ws.path("perf.fdata")

	convertArgs := []string{"-p", trace, "-o", fdata}
	if !branchStacks {
		convertArgs = append(convertArgs, "-nl")
	}

	convertArgs = append(convertArgs, binary)

	_, err = e.runner.Run(ctx, e.stepCommand(ws.dir, tools.Perf2Bolt, convertArgs...))
	if err != nil {
		return "", &LayoutError{Op: "convert", Err: err}
	}

	rewritten := binary + ".bolt"

	_, err = e.runner.Run(ctx, e.stepCommand(ws.dir, tools.Bolt,
		binary, "-o", rewritten, "-data="+fdata,
		"-reorder-blocks=ext-tsp", "-reorder-functions=hfsort",
		"-split-functions", "-split-all-cold"))
	if err != nil {
		return "", &LayoutError{Op: "rewrite", Err: err}
	}

	_, statErr = os.Stat(rewritten)
	if statErr != nil {
		return "", &LayoutError{Op: "rewrite", Err: fmt.Errorf("no rewritten binary: %w", statErr)}
	}

	return rewritten, nil
}
