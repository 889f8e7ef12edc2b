package v1

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

func TestEventsHandler_StreamsFilteredEvents(t *testing.T) {
	bus := event.New()
	deps := &api.Deps{Events: bus, Config: api.DefaultConfig()}

	srv := httptest.NewServer(EventsHandler(deps))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?queue=tickets"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.Subscribers(event.TopicQueue) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	bus.PublishSync(ctx, event.TopicQueue, queue.Event{Type: queue.EventAdded, Queue: "other", JobID: "x"})
	bus.PublishSync(ctx, event.TopicQueue, queue.Event{Type: queue.EventCompleted, Queue: "tickets", JobID: "T-1"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got queue.Event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, queue.EventCompleted, got.Type)
	require.Equal(t, "T-1", got.JobID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return bus.Subscribers(event.TopicQueue) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsHandler_ClosesOnServerShutdown(t *testing.T) {
	bus := event.New()
	done := make(chan struct{})
	deps := &api.Deps{Events: bus, Done: done, Config: api.DefaultConfig()}

	srv := httptest.NewServer(EventsHandler(deps))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return bus.Subscribers(event.TopicQueue) == 1
	}, time.Second, 5*time.Millisecond)

	close(done)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	require.Eventually(t, func() bool {
		return bus.Subscribers(event.TopicQueue) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEventsHandler_RejectsBadFilter(t *testing.T) {
	deps := &api.Deps{Events: event.New(), Config: api.DefaultConfig()}

	w := httptest.NewRecorder()
	EventsHandler(deps)(w, httptest.NewRequest(http.MethodGet, "/api/v1/events?type=nope", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventsHandler_PlainHTTP(t *testing.T) {
	deps := &api.Deps{Events: event.New(), Config: api.DefaultConfig()}

	w := httptest.NewRecorder()
	EventsHandler(deps)(w, httptest.NewRequest(http.MethodGet, "/api/v1/events", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}
