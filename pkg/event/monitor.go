package event

import (
	"context"
	"maps"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deskpilot/deskpilot/pkg/queue"
)

// TopicQueue carries every scheduler event as a queue.Event.
const TopicQueue = "queue"

// QueueTopic is the per-type topic for t, e.g. "queue.failed".
func QueueTopic(t queue.EventType) string {
	return TopicQueue + "." + string(t)
}

// Source yields scheduler events. *queue.Scheduler implements it.
type Source interface {
	Events() <-chan queue.Event
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the monitor logger.
func WithLogger(logger zerolog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger.With().Str("component", "event").Logger()
	}
}

// Monitor drains a scheduler's event channel. Each event is logged, counted
// per queue and type, and republished on the bus under TopicQueue and its
// per-type topic.
type Monitor struct {
	source Source
	bus    *Bus
	logger zerolog.Logger

	mu     sync.RWMutex
	counts map[string]map[queue.EventType]int64
}

// NewMonitor creates a monitor. A nil bus only logs and counts.
func NewMonitor(source Source, bus *Bus, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		source: source,
		bus:    bus,
		logger: zerolog.Nop(),
		counts: make(map[string]map[queue.EventType]int64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run drains events until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	events := m.source.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			m.handle(ctx, e)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, e queue.Event) {
	m.mu.Lock()
	byType, ok := m.counts[e.Queue]
	if !ok {
		byType = make(map[queue.EventType]int64)
		m.counts[e.Queue] = byType
	}
	byType[e.Type]++
	m.mu.Unlock()

	m.log(e)

	if m.bus != nil {
		m.bus.PublishSync(ctx, TopicQueue, e)
		m.bus.PublishSync(ctx, QueueTopic(e.Type), e)
	}
}

func (m *Monitor) log(e queue.Event) {
	var ev *zerolog.Event
	switch e.Type {
	case queue.EventFailed, queue.EventError:
		ev = m.logger.Error()
	case queue.EventRetrying, queue.EventStalled, queue.EventLeaseLost:
		ev = m.logger.Warn()
	case queue.EventCompleted, queue.EventPaused, queue.EventResumed, queue.EventCleaned:
		ev = m.logger.Info()
	default:
		ev = m.logger.Debug()
	}

	ev = ev.Str("queue", e.Queue).Str("event", string(e.Type))
	if e.JobID != "" {
		ev = ev.Str("job_id", e.JobID)
	}
	if e.Attempt > 0 {
		ev = ev.Int("attempt", e.Attempt)
	}
	if e.Delay > 0 {
		ev = ev.Dur("delay", e.Delay)
	}
	if e.Count > 0 {
		ev = ev.Int("count", e.Count)
	}
	if e.Error != "" {
		ev = ev.Str("error", e.Error)
	}
	ev.Msg("Queue event")
}

// Counts returns a copy of the per-queue event counters.
func (m *Monitor) Counts() map[string]map[queue.EventType]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[queue.EventType]int64, len(m.counts))
	for q, byType := range m.counts {
		out[q] = maps.Clone(byType)
	}
	return out
}

// Count returns how many events of type t were seen on queue q.
func (m *Monitor) Count(q string, t queue.EventType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[q][t]
}
