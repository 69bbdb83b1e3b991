package notifications

import (
	"fmt"
	"strconv"
	"strings"
)

// Event identifies a job milestone.
type Event string

const (
	EventJobQueued    Event = "job_queued"
	EventJobStarted   Event = "job_started"
	EventJobCompleted Event = "job_completed"
	EventGroupFailed  Event = "group_failed"
	EventError        Event = "error"
	EventTest         Event = "test"
)

// Payload carries event fields. Keys are camelCase to match the JSON envelope.
type Payload map[string]any

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return v.String()
	case error:
		return v.Error()
	default:
		return fmt.Sprint(v)
	}
}

func (p Payload) num(key string) int64 {
	if p == nil {
		return 0
	}
	switch v := p[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n
	default:
		return 0
	}
}
