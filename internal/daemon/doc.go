// Package daemon owns the lifecycle of the render worker process.
//
// It wires configuration, queue storage and the workflow manager into a
// single lifecycle with flock-based locking so only one worker drains a
// queue database at a time. Both the long-running `stillcut run` mode and the
// one-shot drain mode go through the same lock.
package daemon
