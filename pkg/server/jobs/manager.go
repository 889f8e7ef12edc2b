// Package jobs runs the background side of the server: the ticket queues,
// their settings-driven reconfiguration and the event monitor.
package jobs

import "context"

// Manager defines the interface for background job processing.
type Manager interface {
	// Start registers queues and starts their workers. It returns once they
	// are running.
	Start(ctx context.Context) error

	// Stop gracefully shuts down job processing.
	// Waits for in-flight jobs to complete or context timeout.
	Stop(ctx context.Context) error
}
