package workflow

import (
	"time"

	"stillcut/internal/queue"
)

// EventType names a status channel event.
type EventType string

const (
	EventQueued        EventType = "queued"
	EventRemoved       EventType = "removed"
	EventStarted       EventType = "started"
	EventGroupStarted  EventType = "group_started"
	EventProgress      EventType = "progress"
	EventGroupFinished EventType = "group_finished"
	EventFinished      EventType = "finished"
)

// Event is a snapshot of worker activity for in-process listeners.
type Event struct {
	Type        EventType
	JobID       int64
	Status      queue.Status
	Groups      int
	GroupIndex  int
	GroupLabel  string
	GroupStatus queue.GroupStatus
	// GroupPercent and Percent are 0..100 for the current group and the job.
	GroupPercent float64
	Percent      float64
	Message      string
	Time         time.Time
}

const subscriberBuffer = 64

// Subscribe registers a listener. Slow listeners miss events rather than
// stall the worker. The returned func unsubscribes and closes the channel.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		if sub, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(sub)
		}
		m.subMu.Unlock()
	}
}

func (m *Manager) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
