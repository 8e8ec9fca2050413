package neobench

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"
)

var errEmptyProfile = errors.New("training run produced no profile data")

// buildPGO performs the two-pass profile-guided build of c into binary.
//
// Instrumented build and training run write into <ws>/profile; the final
// build reads it back. The returned duration covers both compiles.
// Training failures and empty profiles are [*ProfileError]; compiler
// failures are [*CompileError].
func (e *Executor) buildPGO(ctx context.Context, ws *workspace, c Combination, flags []string, binary string) (time.Duration, error) {
	profileDir := ws.path("profile")

	mkdirErr := os.MkdirAll(profileDir, 0o755)
	if mkdirErr != nil {
		return 0, &ProfileError{Dir: profileDir, Err: mkdirErr}
	}

	instrumented := ws.path("bench-instr")

	instrTook, err := e.compile(ctx, ws, "pgo-instrument",
		slices.Concat(flags, []string{"-fprofile-generate=" + profileDir}), instrumented)
	if err != nil {
		return 0, err
	}

	res, runErr := e.runner.Run(ctx, e.stepCommand(ws.dir, instrumented, c.Size.Name))
	if runErr != nil {
		return 0, &ProfileError{Dir: profileDir, Err: fmt.Errorf("training run: %w: %s", runErr, truncate(res.Combined(), 512))}
	}

	n, sizeErr := treeBytes(profileDir)
	if sizeErr != nil {
		return 0, &ProfileError{Dir: profileDir, Err: sizeErr}
	}

	if n == 0 {
		return 0, &ProfileError{Dir: profileDir, Err: errEmptyProfile}
	}

	useTook, err := e.compile(ctx, ws, "pgo-use",
		slices.Concat(flags, []string{
			"-fprofile-use=" + profileDir,
			"-fprofile-correction",
			"-Wno-missing-profile",
		}), binary)
	if err != nil {
		return 0, err
	}

	return instrTook + useTook, nil
}
