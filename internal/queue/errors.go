package queue

import "errors"

var (
	// ErrNotQueued is returned when a transition expects a queued job.
	ErrNotQueued = errors.New("job is not queued")
	// ErrNotRemovable is returned when removing a job that already started.
	ErrNotRemovable = errors.New("only queued jobs can be removed")
)
