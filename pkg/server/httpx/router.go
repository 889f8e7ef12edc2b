package httpx

import (
	"net/http"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/server/api"
	v1 "github.com/deskpilot/deskpilot/pkg/server/api/v1"
)

// NewRouter creates the ops HTTP router.
//
// Liveness and readiness probes are always mounted. The queue API needs
// deps.Queues, the health report needs deps.Health, and the event stream
// needs both deps.Events and cfg.EventsEnabled.
func NewRouter(cfg config.ServerConfig, deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps.Ready))

	if deps.Health != nil {
		mux.HandleFunc("GET /api/v1/health", v1.HealthHandler(deps))
	}
	if deps.Queues != nil {
		mux.HandleFunc("GET /api/v1/queues", v1.ListQueuesHandler(deps))
		mux.HandleFunc("GET /api/v1/queues/{queue}/stats", v1.QueueStatsHandler(deps))
		mux.HandleFunc("GET /api/v1/queues/{queue}/jobs/{id}", v1.JobHandler(deps))
	}
	if cfg.EventsEnabled && deps.Events != nil {
		mux.HandleFunc("GET /api/v1/events", v1.EventsHandler(deps))
	}

	return mux
}

// HealthzHandler responds with 200 OK while the process is alive. It checks
// no dependencies; /readyz and /api/v1/health do.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
