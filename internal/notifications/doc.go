// Package notifications delivers job events via pluggable notifiers.
//
// ntfy receives a short human-readable message per event; NATS receives a
// JSON envelope on "<subject>.<event>" for machine consumers. Either backend
// is optional and the service degrades to a no-op when neither is configured.
// Per-event toggles in config.toml filter what reaches the backends.
//
// Notification failures never affect job outcomes: the workflow logs them
// and carries on.
package notifications
