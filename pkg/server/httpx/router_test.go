package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

type stubQueues struct{}

func (stubQueues) Queues() []string { return []string{"tickets"} }

func (stubQueues) Stats(_ context.Context, name string) (queue.Stats, error) {
	if name != "tickets" {
		return queue.Stats{}, &queue.QueueNotFoundError{Queue: name}
	}
	return queue.Stats{Queue: name}, nil
}

func (stubQueues) Job(context.Context, string, string) (*queue.Job, error) { return nil, nil }

type stubHealth struct{}

func (stubHealth) HealthStatus(context.Context) api.HealthReport {
	return api.HealthReport{Status: queue.StatusHealthy}
}

func fullDeps() *api.Deps {
	ready := &atomic.Bool{}
	ready.Store(true)
	return &api.Deps{
		Queues: stubQueues{},
		Health: stubHealth{},
		Events: event.New(),
		Ready:  ready,
		Config: api.DefaultConfig(),
	}
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewRouter_Routes(t *testing.T) {
	router := NewRouter(config.DefaultServerConfig(), fullDeps())

	tests := []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/api/v1/health", http.StatusOK},
		{"/api/v1/queues", http.StatusOK},
		{"/api/v1/queues/tickets/stats", http.StatusOK},
		{"/api/v1/queues/billing/stats", http.StatusNotFound},
		{"/api/v1/queues/tickets/jobs/T-1", http.StatusNotFound},
		{"/api/v1/events", http.StatusBadRequest}, // not a websocket handshake
		{"/api/v1/scans", http.StatusNotFound},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, get(router, tt.path).Code, tt.path)
	}
}

func TestNewRouter_OptionalRoutes(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.EventsEnabled = false
	router := NewRouter(cfg, &api.Deps{Ready: &atomic.Bool{}, Events: event.New()})

	require.Equal(t, http.StatusServiceUnavailable, get(router, "/readyz").Code)
	require.Equal(t, http.StatusNotFound, get(router, "/api/v1/health").Code)
	require.Equal(t, http.StatusNotFound, get(router, "/api/v1/queues").Code)
	require.Equal(t, http.StatusNotFound, get(router, "/api/v1/events").Code)
}

func TestNewRouter_EventsThroughChain(t *testing.T) {
	cfg := config.DefaultServerConfig()
	cfg.Auth = config.AuthConfig{Mode: "token", Token: "ops-token-123"}
	deps := fullDeps()
	bus := deps.Events.(*event.Bus)

	srv := httptest.NewServer(Chain(cfg, NewRouter(cfg, deps)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{"Authorization": []string{"Bearer ops-token-123"}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.Subscribers(event.TopicQueue) == 1
	}, time.Second, 5*time.Millisecond)

	bus.PublishSync(context.Background(), event.TopicQueue, queue.Event{Type: queue.EventAdded, Queue: "tickets", JobID: "T-7"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got queue.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "T-7", got.JobID)
}

func TestHealthzHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthzHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "OK", w.Body.String())
}
