package queue

import "time"

// EventType names a scheduler notification.
type EventType string

const (
	EventAdded     EventType = "added"
	EventActive    EventType = "active"
	EventCompleted EventType = "completed"
	EventRetrying  EventType = "retrying"
	EventFailed    EventType = "failed"
	EventStalled   EventType = "stalled"
	EventLeaseLost EventType = "lease_lost"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventCleaned   EventType = "cleaned"
	EventError     EventType = "error"
)

// Event is one scheduler notification.
type Event struct {
	Type    EventType     `json:"type"`
	Queue   string        `json:"queue"`
	JobID   string        `json:"job_id,omitempty"`
	Attempt int           `json:"attempt,omitempty"`
	Delay   time.Duration `json:"delay,omitempty"`
	Count   int           `json:"count,omitempty"`
	Error   string        `json:"error,omitempty"`
	Time    time.Time     `json:"time"`
}

// DefaultEventBuffer is the capacity of the events channel.
const DefaultEventBuffer = 256

// emit publishes e without blocking; a full channel drops it.
func (s *Scheduler) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	select {
	case s.events <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the notification channel. It is never closed; consumers
// stop on their own context.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// DroppedEvents returns how many events were dropped on a full channel.
func (s *Scheduler) DroppedEvents() int64 {
	return s.dropped.Load()
}
