package preflight

import (
	"context"
	"fmt"
	"strings"

	"stillcut/internal/config"
)

// minScratchBytes is the free space required to stage a group's segments.
const minScratchBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks the worker needs before starting a job.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Scratch directory", cfg.Paths.ScratchDir),
		CheckFreeSpace("Scratch space", cfg.Paths.ScratchDir, minScratchBytes),
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Detail}
		if result.Passed {
			result.Detail = status.Path
		}
		results = append(results, result)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// Summary joins failed results into one line for logs and job errors.
func Summary(results []Result) string {
	failed := Failed(results)
	if len(failed) == 0 {
		return ""
	}
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return strings.Join(parts, "; ")
}
