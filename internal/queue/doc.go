// Package queue persists render jobs in SQLite and exposes the operations the
// worker uses to drive their lifecycle.
//
// A job carries its folders, grouping mode, the groups resolved at enqueue
// time, progress, counters and an ordered log. Jobs move
// queued -> running -> succeeded | failed | partially_succeeded and stay in
// the database as history until the user clears them. The oldest queued job
// (lowest id) is always next.
//
// The database doubles as the hand-off between the CLI and the worker: every
// read returns a fresh snapshot, and every mutation is a single statement or
// transaction. Schema changes bump schemaVersion in schema.go; users clear the
// database to adopt the new schema.
package queue
