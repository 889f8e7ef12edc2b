package v1

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

// --- helper for request ---
func newRequestWithQuery(params map[string]string) *http.Request {
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	r, _ := http.NewRequest(http.MethodGet, "/api/v1/events?"+q.Encode(), nil)
	return r
}

func TestValidation_ValidateQueueName(t *testing.T) {
	assert.Error(t, ValidateQueueName(""))                        // required
	assert.Error(t, ValidateQueueName("  "))                      // required
	assert.Error(t, ValidateQueueName("bad name"))                // space
	assert.Error(t, ValidateQueueName("-leading"))                // leading hyphen
	assert.Error(t, ValidateQueueName(strings.Repeat("q", 65)))   // too long
	assert.NoError(t, ValidateQueueName("tickets"))               // ok
	assert.NoError(t, ValidateQueueName("tickets.eu-west_1"))     // ok
	assert.NoError(t, ValidateQueueName(strings.Repeat("q", 64))) // ok

	var verr *api.ValidationError
	assert.True(t, errors.As(ValidateQueueName(""), &verr))
	assert.Equal(t, "queue", verr.Field)
}

func TestValidation_ValidateJobID(t *testing.T) {
	assert.Error(t, ValidateJobID(""))
	assert.Error(t, ValidateJobID("has space"))
	assert.Error(t, ValidateJobID(strings.Repeat("x", 129)))
	assert.NoError(t, ValidateJobID("T-100"))
	assert.NoError(t, ValidateJobID("0f8fad5b-d9cb-469f-a165-70867728950e"))
}

func TestValidation_ParseEventsQuery_Defaults(t *testing.T) {
	got, err := ParseEventsQuery(newRequestWithQuery(nil))
	assert.NoError(t, err)
	assert.Equal(t, "", got.Queue)
	assert.Empty(t, got.Types)
	assert.True(t, got.Match(queue.Event{Type: queue.EventAdded, Queue: "any"}))
}

func TestValidation_ParseEventsQuery_Filters(t *testing.T) {
	got, err := ParseEventsQuery(newRequestWithQuery(map[string]string{
		"queue": "tickets",
		"type":  "failed, lease_lost",
	}))
	assert.NoError(t, err)
	assert.Equal(t, "tickets", got.Queue)
	assert.Len(t, got.Types, 2)

	assert.True(t, got.Match(queue.Event{Type: queue.EventFailed, Queue: "tickets"}))
	assert.True(t, got.Match(queue.Event{Type: queue.EventLeaseLost, Queue: "tickets"}))
	assert.False(t, got.Match(queue.Event{Type: queue.EventCompleted, Queue: "tickets"}))
	assert.False(t, got.Match(queue.Event{Type: queue.EventFailed, Queue: "other"}))
}

func TestValidation_ParseEventsQuery_Invalid(t *testing.T) {
	got, err := ParseEventsQuery(newRequestWithQuery(map[string]string{"queue": "bad name"}))
	assert.Nil(t, got)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "queue")

	got, err = ParseEventsQuery(newRequestWithQuery(map[string]string{"type": "exploded"}))
	assert.Nil(t, got)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}
