package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/deskpilot/deskpilot/pkg/event"
	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

const (
	eventBuffer = 64
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsHandler streams scheduler events over a websocket.
//
// GET /api/v1/events?queue=<name>&type=<t1,t2>
//
// Each message is one queue.Event encoded as JSON. A client that cannot
// keep up misses events rather than slowing the scheduler down.
func EventsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := ParseEventsQuery(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Str("component", "api").Err(err).Msg("Websocket upgrade failed")
			return
		}
		defer conn.Close()

		events := make(chan queue.Event, eventBuffer)
		id := deps.Events.Subscribe(event.TopicQueue, func(_ context.Context, data any) {
			e, ok := data.(queue.Event)
			if !ok || !filter.Match(e) {
				return
			}
			select {
			case events <- e:
			default:
			}
		})
		defer deps.Events.Unsubscribe(id)

		log.Debug().Str("component", "api").Str("remote", r.RemoteAddr).Msg("Event stream opened")

		// The read loop only notices the client going away. Deadlines set by
		// the http.Server survive the hijack.
		_ = conn.SetReadDeadline(time.Time{})
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				log.Debug().Str("component", "api").Str("remote", r.RemoteAddr).Msg("Event stream closed")
				return
			case <-r.Context().Done():
				return
			case <-deps.Done:
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
				return
			case e := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(e); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}
}
