// Package workflow drains the render queue.
//
// The Manager is the status channel for callers: Enqueue plans a job
// synchronously (listing, pairing and grouping both folders) and rejects bad
// input before anything is stored; List and Get return fresh snapshots from
// the queue database; Remove drops a job that has not started.
//
// A single worker goroutine takes the oldest queued job, renders its groups
// one at a time through the render unit, records per-group outcomes and log
// lines, and folds them into the job's terminal status. A failing group never
// stops the worker or the remaining groups. Progress and status changes are
// fanned out to in-process subscribers and to the notification service.
package workflow
