package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued             Status = "queued"
	StatusRunning            Status = "running"
	StatusSucceeded          Status = "succeeded"
	StatusFailed             Status = "failed"
	StatusPartiallySucceeded Status = "partially_succeeded"
)

// InterruptedReason is recorded when a running job is cut short by shutdown
// or a crash.
const InterruptedReason = "interrupted before completion"

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusSucceeded,
	StatusFailed,
	StatusPartiallySucceeded,
}

var terminalStatuses = []Status{StatusSucceeded, StatusFailed, StatusPartiallySucceeded}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// TerminalStatuses returns the statuses a finished job can end in.
func TerminalStatuses() []Status {
	return append([]Status(nil), terminalStatuses...)
}

// ParseStatus converts a string into a known Status. Hyphens and case are
// tolerated so "partially-succeeded" works on the command line.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "-", "_"))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Terminal reports whether no further transitions happen from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusPartiallySucceeded:
		return true
	default:
		return false
	}
}

// Label returns the display name, e.g. "PartiallySucceeded".
func (s Status) Label() string {
	switch s {
	case StatusQueued:
		return "Queued"
	case StatusRunning:
		return "Running"
	case StatusSucceeded:
		return "Succeeded"
	case StatusFailed:
		return "Failed"
	case StatusPartiallySucceeded:
		return "PartiallySucceeded"
	default:
		return string(s)
	}
}

// TerminalStatus folds per-group outcomes into the job's final status.
func TerminalStatus(succeeded, failed int) Status {
	switch {
	case failed == 0 && succeeded > 0:
		return StatusSucceeded
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartiallySucceeded
	}
}

// GroupStatus tracks one group inside a job.
type GroupStatus string

const (
	GroupPending   GroupStatus = "pending"
	GroupRendering GroupStatus = "rendering"
	GroupSucceeded GroupStatus = "succeeded"
	GroupSkipped   GroupStatus = "skipped"
	GroupFailed    GroupStatus = "failed"
)

// Done reports whether the group produced (or kept) an output file.
func (s GroupStatus) Done() bool {
	return s == GroupSucceeded || s == GroupSkipped
}

// Pair is a persisted image/audio pair.
type Pair struct {
	Index int    `json:"index"`
	Image string `json:"image"`
	Audio string `json:"audio"`
}

// Group is a persisted group with its render outcome.
type Group struct {
	Index          int         `json:"index"`
	OutputFilename string      `json:"output_filename"`
	Pairs          []Pair      `json:"pairs"`
	Status         GroupStatus `json:"status"`
	OutputPath     string      `json:"output_path,omitempty"`
	Error          string      `json:"error,omitempty"`
	ErrorKind      string      `json:"error_kind,omitempty"`
}

// Label names the group by its first and last image file.
func (g Group) Label() string {
	if len(g.Pairs) == 0 {
		return g.OutputFilename
	}
	first := filepath.Base(g.Pairs[0].Image)
	if len(g.Pairs) == 1 {
		return first
	}
	return first + ".." + filepath.Base(g.Pairs[len(g.Pairs)-1].Image)
}

// LogLevel grades job log lines.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one human-readable line in a job's log.
type LogEntry struct {
	ID        int64     `json:"id"`
	JobID     int64     `json:"job_id"`
	Level     LogLevel  `json:"level"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Job is a persisted render request.
type Job struct {
	ID              int64      `json:"id"`
	ImagesDir       string     `json:"images_dir"`
	AudioDir        string     `json:"audio_dir"`
	OutDir          string     `json:"out_dir"`
	GroupMode       string     `json:"group_mode"`
	OnExisting      string     `json:"on_existing"`
	Status          Status     `json:"status"`
	Groups          []Group    `json:"groups"`
	CurrentGroup    int        `json:"current_group"`
	GroupPercent    float64    `json:"group_percent"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	SucceededGroups int        `json:"succeeded_groups"`
	FailedGroups    int        `json:"failed_groups"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Log             []LogEntry `json:"log"`
}

// OutputPaths lists the files produced or kept by finished groups.
func (j *Job) OutputPaths() []string {
	var paths []string
	for _, g := range j.Groups {
		if g.Status.Done() && g.OutputPath != "" {
			paths = append(paths, g.OutputPath)
		}
	}
	return paths
}

// PairCount totals pairs across groups.
func (j *Job) PairCount() int {
	n := 0
	for _, g := range j.Groups {
		n += len(g.Pairs)
	}
	return n
}

// NewJob is the input to Store.Enqueue.
type NewJob struct {
	ImagesDir  string
	AudioDir   string
	OutDir     string
	GroupMode  string
	OnExisting string
	Groups     []Group
	// Log lines recorded atomically with the job, such as unmatched file warnings.
	Log []LogEntry
}

// Progress is the worker's view of a running job.
type Progress struct {
	CurrentGroup int
	GroupPercent float64
	Percent      float64
	Message      string
}
