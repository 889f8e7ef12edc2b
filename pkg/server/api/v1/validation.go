package v1

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/deskpilot/deskpilot/pkg/queue"
	"github.com/deskpilot/deskpilot/pkg/server/api"
)

var validate = validator.New()

const eventTypes = "oneof=added active completed retrying failed stalled lease_lost paused resumed cleaned error"

var queueNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateQueueName validates a queue path segment.
func ValidateQueueName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &api.ValidationError{Field: "queue", Reason: "required"}
	}
	if err := validate.Var(name, "max=64"); err != nil {
		return &api.ValidationError{Field: "queue", Reason: "must be at most 64 characters"}
	}
	if !queueNameRe.MatchString(name) {
		return &api.ValidationError{Field: "queue", Reason: "invalid format (alnum, dot, hyphen, underscore)"}
	}
	return nil
}

// ValidateJobID validates a job id path segment.
func ValidateJobID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &api.ValidationError{Field: "id", Reason: "required"}
	}
	if err := validate.Var(id, "max=128,printascii,excludesall= "); err != nil {
		return &api.ValidationError{Field: "id", Reason: "must be printable ASCII without spaces, at most 128 characters"}
	}
	return nil
}

// EventsQuery holds the optional filters of GET /api/v1/events.
type EventsQuery struct {
	Queue string
	Types map[queue.EventType]struct{}
}

// Match reports whether e passes the filters.
func (q *EventsQuery) Match(e queue.Event) bool {
	if q.Queue != "" && e.Queue != q.Queue {
		return false
	}
	if len(q.Types) > 0 {
		if _, ok := q.Types[e.Type]; !ok {
			return false
		}
	}
	return true
}

// ParseEventsQuery parses ?queue=<name>&type=<t1,t2>.
func ParseEventsQuery(r *http.Request) (*EventsQuery, error) {
	q := r.URL.Query()
	var res EventsQuery

	if v := strings.TrimSpace(q.Get("queue")); v != "" {
		if err := ValidateQueueName(v); err != nil {
			return nil, err
		}
		res.Queue = v
	}

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		res.Types = make(map[queue.EventType]struct{})
		for _, t := range strings.Split(v, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if err := validate.Var(t, eventTypes); err != nil {
				return nil, &api.ValidationError{Field: "type", Reason: "unknown event type " + t}
			}
			res.Types[queue.EventType(t)] = struct{}{}
		}
	}
	return &res, nil
}
