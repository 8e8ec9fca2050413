package neobench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

const compileOutputLimit = 2048

// buildOutput is the binary to measure and how it was produced.
type buildOutput struct {
	dir    string
	binary string
	// compileTime sums the compiler invocations that produced binary.
	compileTime time.Duration
	// degradations are fallbacks taken (PGO dropped, rewrite skipped).
	degradations []string
}

// build compiles c inside ws, applying PGO and layout rewriting when requested.
func (e *Executor) build(ctx context.Context, ws *workspace, c Combination) (buildOutput, error) {
	flags := c.CompilerFlags(e.cfg.GOARCH)
	out := buildOutput{dir: ws.dir, binary: ws.path("bench")}

	if c.PGO {
		took, err := e.buildPGO(ctx, ws, c, flags, out.binary)

		var profErr *ProfileError
		if errors.As(err, &profErr) && e.cfg.PGOFailure == PGODegrade {
			e.degrade(c, &out, err)

			took, err = e.compile(ctx, ws, "build", flags, out.binary)
		}

		if err != nil {
			return buildOutput{}, err
		}

		out.compileTime = took
	} else {
		took, err := e.compile(ctx, ws, "build", flags, out.binary)
		if err != nil {
			return buildOutput{}, err
		}

		out.compileTime = took
	}

	if c.BOLT {
		rewritten, err := e.rewriteLayout(ctx, ws, c, out.binary)
		if err != nil {
			e.degrade(c, &out, err)
		} else {
			out.binary = rewritten
		}
	}

	return out, nil
}

// compile runs the compiler for one stage and checks that it produced output.
func (e *Executor) compile(ctx context.Context, ws *workspace, stage string, flags []string, output string) (time.Duration, error) {
	args := slices.Concat(flags, []string{"-o", output, ws.src})

	res, err := e.runner.Run(ctx, e.stepCommand(ws.dir, e.cfg.Toolchain.CC, args...))
	if err != nil {
		return 0, &CompileError{Stage: stage, Output: truncate(res.Combined(), compileOutputLimit), Err: err}
	}

	_, statErr := os.Stat(output)
	if statErr != nil {
		return 0, &CompileError{Stage: stage, Err: fmt.Errorf("compiler produced no binary: %w", statErr)}
	}

	return res.Duration, nil
}

func (e *Executor) degrade(c Combination, out *buildOutput, err error) {
	out.degradations = append(out.degradations, err.Error())
	e.notify(&ComboError{Combination: c, Err: err}, false)
}
