// Package ticket holds the support-ticket domain types shared by the
// triage pipeline, the auto-resolution gate and the queue payloads.
package ticket

import (
	"strings"
	"time"
)

// Priority is the customer-facing urgency of a ticket.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRanks = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// ParsePriority normalizes s into a Priority. Unknown values are returned
// as-is (lowercased) so callers can still report them.
func ParsePriority(s string) Priority {
	return Priority(strings.ToLower(strings.TrimSpace(s)))
}

// Rank returns the ordering rank of p, lower is less urgent. The second
// return value is false for priorities outside the known set.
func (p Priority) Rank() (int, bool) {
	r, ok := priorityRanks[p]
	return r, ok
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	_, ok := priorityRanks[p]
	return ok
}

func (p Priority) String() string { return string(p) }

// Ticket is an inbound support request.
type Ticket struct {
	ID        string            `json:"id" yaml:"id"`
	Subject   string            `json:"subject" yaml:"subject"`
	Body      string            `json:"body" yaml:"body"`
	Customer  string            `json:"customer,omitempty" yaml:"customer,omitempty"`
	Channel   string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	Priority  Priority          `json:"priority" yaml:"priority"`
	Tags      []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Normalize trims the identifier and fills the priority with medium when
// the caller left it empty.
func (t Ticket) Normalize() Ticket {
	t.ID = strings.TrimSpace(t.ID)
	if strings.TrimSpace(string(t.Priority)) == "" {
		t.Priority = PriorityMedium
	} else {
		t.Priority = ParsePriority(string(t.Priority))
	}
	return t
}

// Text is the subject and body joined, the input most engines work on.
func (t Ticket) Text() string {
	if t.Subject == "" {
		return t.Body
	}
	if t.Body == "" {
		return t.Subject
	}
	return t.Subject + "\n" + t.Body
}
