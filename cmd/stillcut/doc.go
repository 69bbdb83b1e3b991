// Package main hosts the stillcut CLI entrypoint and command graph.
//
// Commands queue render jobs, run the worker, and inspect or prune the job
// history. Configuration resolution and store wiring live in commandContext
// so subcommands only deal with flags and output.
package main
