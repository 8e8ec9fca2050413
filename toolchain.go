package neobench

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// Toolchain names the external programs the executor shells out to.
// Empty fields use the defaults from [DefaultToolchain].
type Toolchain struct {
	CC        string `json:"cc"`
	Perf      string `json:"perf"`
	Perf2Bolt string `json:"perf2bolt"`
	Bolt      string `json:"llvm_bolt"`
}

// DefaultToolchain returns gcc, perf, perf2bolt and llvm-bolt from PATH.
func DefaultToolchain() Toolchain {
	return Toolchain{
		CC:        "gcc",
		Perf:      "perf",
		Perf2Bolt: "perf2bolt",
		Bolt:      "llvm-bolt",
	}
}

func (t Toolchain) withDefaults() Toolchain {
	def := DefaultToolchain()

	if t.CC == "" {
		t.CC = def.CC
	}

	if t.Perf == "" {
		t.Perf = def.Perf
	}

	if t.Perf2Bolt == "" {
		t.Perf2Bolt = def.Perf2Bolt
	}

	if t.Bolt == "" {
		t.Bolt = def.Bolt
	}

	return t
}

// Command is one subprocess invocation.
type Command struct {
	// Name is the program to run.
	Name string
	// Args are the program arguments.
	Args []string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
	// Timeout bounds the invocation. Zero means no timeout.
	Timeout time.Duration
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandResult is the captured output of a finished [Command].
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Combined returns stdout followed by stderr.
func (r CommandResult) Combined() string {
	return strings.TrimSpace(string(r.Stdout) + "\n" + string(r.Stderr))
}

// CommandRunner runs subprocesses. Implementations must be safe for
// concurrent use.
//
// A non-nil error means the command did not exit successfully. The result
// holds whatever output was captured either way.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (CommandResult, error)
}

const waitDelay = 2 * time.Second

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ CommandRunner = ExecRunner{}

// Run starts cmd and waits for it. A command killed by its timeout returns
// an error wrapping [ErrStepTimeout].
func (ExecRunner) Run(ctx context.Context, cmd Command) (CommandResult, error) {
	runCtx := ctx

	if cmd.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(runCtx, cmd.Name, cmd.Args...)
	proc.Dir = cmd.Dir
	// Children that inherited the output pipes must not keep Wait blocked
	// after the kill.
	proc.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer

	proc.Stdout = &stdout
	proc.Stderr = &stderr

	klog.V(3).InfoS("exec", "cmd", cmd.String(), "dir", cmd.Dir)

	start := time.Now()
	runErr := proc.Run()

	res := CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		return res, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, fmt.Errorf("%s: %w after %s", cmd.Name, ErrStepTimeout, cmd.Timeout)
	}

	return res, fmt.Errorf("%s: %w", cmd.Name, runErr)
}
