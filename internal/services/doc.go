// Package services defines shared utilities consumed by the listing, planning
// and rendering packages and by the workflow manager.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, group labels, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so enqueue-time and
//     render-time failures keep a stable taxonomy name that callers match
//     with errors.Is and that ends up verbatim in job logs.
//
// Use these helpers when wiring new pipeline logic so error reporting and
// observability stay uniform.
package services
