package queue

import (
	"context"
	"time"
)

// HealthStatus is the overall scheduler condition.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// errorWindow is how long a queue error keeps the queue reported as failing.
const errorWindow = time.Minute

// BrokerHealth reports broker connectivity.
type BrokerHealth struct {
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

// QueueHealth reports one queue.
type QueueHealth struct {
	Healthy bool       `json:"healthy"`
	Stats   *Stats     `json:"stats,omitempty"`
	Error   string     `json:"error,omitempty"`
	ErrorAt *time.Time `json:"error_at,omitempty"`
}

// Health aggregates broker connectivity and per-queue state.
type Health struct {
	Status        HealthStatus           `json:"status"`
	Broker        BrokerHealth           `json:"broker"`
	Queues        map[string]QueueHealth `json:"queues"`
	DroppedEvents int64                  `json:"dropped_events"`
}

// Health reports healthy when the broker is reachable and no queue has an
// error, degraded when a queue errored recently while the broker is
// reachable, and unhealthy when the broker is unreachable.
func (s *Scheduler) Health(ctx context.Context) Health {
	h := Health{
		Status:        StatusHealthy,
		Broker:        BrokerHealth{Name: s.broker.Name(), Reachable: true},
		Queues:        make(map[string]QueueHealth),
		DroppedEvents: s.DroppedEvents(),
	}

	if err := s.broker.Ping(ctx); err != nil {
		h.Status = StatusUnhealthy
		h.Broker.Reachable = false
		h.Broker.Error = err.Error()
	}

	now := s.now()
	for _, name := range s.Queues() {
		q, err := s.lookup(name)
		if err != nil {
			continue
		}

		qh := QueueHealth{Healthy: true}
		if h.Broker.Reachable {
			stats, err := s.Stats(ctx, name)
			if err != nil {
				qh.Healthy = false
				qh.Error = err.Error()
			} else {
				qh.Stats = &stats
			}
		}

		if at, lastErr := q.lastError(now.Add(-errorWindow)); lastErr != nil {
			qh.Healthy = false
			if qh.Error == "" {
				qh.Error = lastErr.Error()
			}
			errAt := at
			qh.ErrorAt = &errAt
		}

		if !qh.Healthy && h.Status == StatusHealthy {
			h.Status = StatusDegraded
		}
		h.Queues[name] = qh
	}
	return h
}
