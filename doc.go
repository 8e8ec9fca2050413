// Package neobench runs a matrix-multiplication benchmark across a product of
// compiler configurations and ranks them against an unoptimized baseline.
//
// # Pipeline
//
// A [RunPlan] (see [ParsePlan] and [NewRunPlan]) is expanded by [Generate]
// into [Combination] values: optimization level, CPU targeting, extra flag
// mask, profile-guided optimization, post-link layout rewriting and matrix
// size. An [Executor] builds and measures each combination on a bounded
// worker pool, [Aggregate] reduces repeated runs with an outlier-trimmed
// mean, and [BuildReport] ranks the results per size.
//
//	RunPlan ─> Generate ─> Executor.Run ─> Batch ─> BuildReport ─> WriteText / WriteJSON
//	                            │
//	                            └─> StatusBoard <── WatchStatus
//
// # Baseline
//
// Every size is compared against its O0 combination with no other flags.
// When a plan omits O0, [Generate] inserts that baseline and records a note.
// Reports always show the baseline row, even when it ranks outside the
// requested top rows.
//
// # Failures
//
// Only configuration errors ([*ConfigError]) are fatal. A combination whose
// build, profiling or measurement fails is reported as a [*ComboError] and
// the batch continues. Discarded runs and fallbacks (a PGO build without
// profile data, a binary whose layout could not be rewritten) are reported
// through [WithOnFailure] as non-fatal and recorded on the result.
//
// # External tools
//
// The executor shells out to a C compiler and, for profile and layout
// combinations, perf, perf2bolt and llvm-bolt. All invocations go through a
// [CommandRunner]; [ExecRunner] is the real implementation.
//
// # Concurrency
//
// Workers default to the CPUs available to the process minus one. PGO and
// layout builds of the same combination are serialized through an advisory
// lock that is shared with other neobench processes using the same work
// directory.
package neobench
