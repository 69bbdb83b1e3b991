// Package config loads, normalizes, and validates stillcut configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files and applies STILLCUT_* environment overrides. The Config type
// holds every knob the worker and CLI need: where the queue database and logs
// live, the fixed render parameters shared by every job, worker timing and
// notification targets.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical enum values, and clear validation errors.
package config
