// Package executor runs external commands for the install pipeline.
//
// Every package manager invocation, process query and sysctl write goes
// through an Executor, so a dry run swaps in DryRunExecutor and nothing on
// the host changes.
package executor
