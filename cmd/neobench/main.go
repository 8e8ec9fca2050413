// neobench builds a matrix-multiplication benchmark under many compiler
// configurations, measures each one and ranks them against an O0 baseline.
//
// Usage:
//
//	neobench run [flags]       build, measure and rank
//	neobench plan [flags]      print the combinations a run would execute
//	neobench serve [flags]     serve a saved results file as JSON
//	neobench sysinfo           print host CPU information
//
// See 'neobench <command> --help' for command-specific flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/calvinalkan/neobench"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

// app carries the process-level dependencies of every command so tests can
// replace them.
type app struct {
	stdout io.Writer
	stderr io.Writer
	runner neobench.CommandRunner
	host   func() neobench.HostInfo
	now    func() time.Time

	verbose bool
	logV    int
}

func newApp(stdout, stderr io.Writer, runner neobench.CommandRunner) *app {
	return &app{
		stdout: stdout,
		stderr: &lockedWriter{w: stderr},
		runner: runner,
		host:   neobench.DetectHost,
		now:    time.Now,
	}
}

// lockedWriter serializes writes from the status watcher, failure
// diagnostics and klog, which all share stderr.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.w.Write(p)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	a := newApp(os.Stdout, os.Stderr, neobench.ExecRunner{})

	code := a.execute(ctx, os.Args[1:])

	stop()
	klog.Flush()
	os.Exit(code)
}

// execute runs the command line args and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}

	fmt.Fprintf(a.stderr, "error: %v\n", err)

	var cfgErr *neobench.ConfigError
	if errors.As(err, &cfgErr) {
		fmt.Fprintf(a.stderr, "Run '%s --help' for usage.\n", commandPath(root, args))

		return exitConfig
	}

	return exitFailed
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "neobench",
		Short: "Compiler optimization benchmark runner",
		Long: `neobench - compiler optimization benchmark runner

Builds a matrix-multiplication kernel under every combination of optimization
level, CPU targeting, extra flags, PGO and BOLT, runs each build several times,
and ranks the trimmed-mean GFLOPS per matrix size against the O0 baseline.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setupLogging()
		},
	}

	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(flagError)

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print per-combination diagnostics while running")
	root.PersistentFlags().IntVar(&a.logV, "log-v", 0, "klog verbosity level")

	root.AddCommand(
		a.runCommand(),
		a.planCommand(),
		a.serveCommand(),
		a.sysinfoCommand(),
	)

	return root
}

// setupLogging routes klog to stderr at the requested verbosity.
// --verbose implies at least level 2.
func (a *app) setupLogging() error {
	fs := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(fs)

	level := a.logV
	if a.verbose {
		level = max(level, 2)
	}

	setErr := fs.Set("v", strconv.Itoa(level))
	if setErr != nil {
		return fmt.Errorf("set log level: %w", setErr)
	}

	klog.SetOutput(a.stderr)
	klog.LogToStderr(false)

	return nil
}

// flagError turns cobra flag parse failures into configuration errors.
func flagError(_ *cobra.Command, err error) error {
	return &neobench.ConfigError{Field: "flags", Reason: err.Error()}
}

// commandPath returns the invoked command path for usage hints.
func commandPath(root *cobra.Command, args []string) string {
	cmd, _, findErr := root.Find(args)
	if findErr != nil || cmd == nil {
		return root.CommandPath()
	}

	return cmd.CommandPath()
}

// noPositionalArgs rejects stray arguments as configuration errors.
func noPositionalArgs(_ *cobra.Command, args []string) error {
	if len(args) > 0 {
		return &neobench.ConfigError{Field: "args", Value: args[0], Reason: "unexpected argument"}
	}

	return nil
}
