// Package api holds the shared types and helpers of the ops HTTP API.
package api

import (
	"context"
	"sync/atomic"

	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/queue"
)

// Deps holds dependencies for API handlers.
type Deps struct {
	// Queues answers queue and job lookups. *queue.Scheduler implements it.
	Queues QueueService

	// Health reports the aggregated service health.
	Health HealthService

	// Events streams scheduler notifications. Nil disables /api/v1/events.
	Events event.EventBus

	// Ready flag for readiness check
	Ready *atomic.Bool

	// Done is closed when the server starts shutting down. Hijacked
	// connections such as event streams end on it.
	Done <-chan struct{}

	Config Config
}

// QueueService is the subset of the scheduler the API reads from.
type QueueService interface {
	Queues() []string
	Stats(ctx context.Context, name string) (queue.Stats, error)
	Job(ctx context.Context, name, id string) (*queue.Job, error)
}

// HealthService reports service health.
type HealthService interface {
	HealthStatus(ctx context.Context) HealthReport
}

// EngineHealth is the health of one triage engine.
type EngineHealth struct {
	Status queue.HealthStatus `json:"status"`
	Error  string             `json:"error,omitempty"`
}

// HealthReport is the body of GET /api/v1/health.
type HealthReport struct {
	Status    queue.HealthStatus      `json:"status"`
	Version   string                  `json:"version"`
	Uptime    string                  `json:"uptime"`
	Engines   map[string]EngineHealth `json:"engines"`
	Scheduler queue.Health            `json:"scheduler"`
	Settings  SettingsInfo            `json:"settings"`
}

// SettingsInfo describes the settings snapshot in force.
type SettingsInfo struct {
	Revision      int64  `json:"revision"`
	SchemaVersion string `json:"schema_version"`
}
