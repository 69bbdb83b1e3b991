// Package preflight provides readiness checks for the binaries and
// filesystem paths stillcut depends on.
//
// These checks run in two contexts:
//   - The workflow manager calls RunAll before starting each job. A failing
//     check leaves the job queued and the worker retries after
//     workflow.error_retry_interval.
//   - The CLI "stillcut deps" command prints CheckSystemDeps and RunAll.
package preflight
