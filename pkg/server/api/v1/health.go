package v1

import (
	"net/http"
	"sync/atomic"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

// ReadyzHandler returns 200 when server is ready, 503 otherwise.
//
// This is used by orchestrators (Kubernetes, Docker, etc.) for readiness checks.
// Unlike /healthz (liveness), this checks if the server is fully initialized
// and ready to accept traffic.
//
// The ready flag is set by the app runtime after:
// - HTTP server starts
// - Queue workers start
// - All components initialize successfully
func ReadyzHandler(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ready"))
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("Not Ready"))
		}
	}
}

// HealthHandler returns the aggregated service health.
//
// GET /api/v1/health
//
// The status code is 200 while the service is healthy or degraded and 503
// once it is unhealthy, so the endpoint can back a load balancer check.
func HealthHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := deps.Config.WithHandlerTimeout(r.Context())
		defer cancel()

		report := deps.Health.HealthStatus(ctx)
		code := http.StatusOK
		if report.Status == queue.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		api.WriteJSON(w, code, report)
	}
}
