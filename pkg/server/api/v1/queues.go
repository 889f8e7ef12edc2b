package v1

import (
	"net/http"
	"sort"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

// QueueListResponse is the body of GET /api/v1/queues.
type QueueListResponse struct {
	Queues []queue.Stats `json:"queues"`
}

// ListQueuesHandler returns stats for every registered queue.
//
// GET /api/v1/queues
func ListQueuesHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := deps.Config.WithHandlerTimeout(r.Context())
		defer cancel()

		names := deps.Queues.Queues()
		sort.Strings(names)

		resp := QueueListResponse{Queues: make([]queue.Stats, 0, len(names))}
		for _, name := range names {
			stats, err := deps.Queues.Stats(ctx, name)
			if err != nil {
				api.WriteError(w, r, err)
				return
			}
			resp.Queues = append(resp.Queues, stats)
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// QueueStatsHandler returns per-state counts for one queue.
//
// GET /api/v1/queues/{queue}/stats
//
// Responses:
//   - 200 OK: queue.Stats
//   - 400 Bad Request: malformed queue name
//   - 404 Not Found: queue is not registered
func QueueStatsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("queue")
		if err := ValidateQueueName(name); err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx, cancel := deps.Config.WithHandlerTimeout(r.Context())
		defer cancel()

		stats, err := deps.Queues.Stats(ctx, name)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, stats)
	}
}

// JobHandler returns one job, including its result once completed.
//
// GET /api/v1/queues/{queue}/jobs/{id}
func JobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("queue")
		if err := ValidateQueueName(name); err != nil {
			api.WriteError(w, r, err)
			return
		}
		id := r.PathValue("id")
		if err := ValidateJobID(id); err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx, cancel := deps.Config.WithHandlerTimeout(r.Context())
		defer cancel()

		job, err := deps.Queues.Job(ctx, name, id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		if job == nil {
			api.WriteJSONError(w, http.StatusNotFound, "Not Found", "job not found: "+id)
			return
		}
		api.WriteJSON(w, http.StatusOK, job)
	}
}
