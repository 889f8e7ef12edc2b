package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// ticketFlags reads a ticket from a JSON or YAML file (or stdin with "-")
// and lets individual flags override its fields.
type ticketFlags struct {
	file     string
	id       string
	subject  string
	body     string
	customer string
	channel  string
	priority string
	tags     []string
	meta     map[string]string
}

func (tf *ticketFlags) bind(flags *pflag.FlagSet) {
	flags.StringVarP(&tf.file, "file", "f", "", "Ticket file (JSON or YAML), - for stdin")
	flags.StringVar(&tf.id, "id", "", "Ticket ID")
	flags.StringVar(&tf.subject, "subject", "", "Ticket subject")
	flags.StringVar(&tf.body, "body", "", "Ticket body")
	flags.StringVar(&tf.customer, "customer", "", "Customer identifier")
	flags.StringVar(&tf.channel, "channel", "", "Inbound channel (email, chat, web)")
	flags.StringVar(&tf.priority, "priority", "", "Priority (low, medium, high, urgent)")
	flags.StringSliceVar(&tf.tags, "tag", nil, "Ticket tag (repeatable)")
	flags.StringToStringVar(&tf.meta, "meta", nil, "Metadata key=value pairs")
}

// ticket builds the normalized ticket. stdin is read when the file is "-".
func (tf *ticketFlags) ticket(stdin io.Reader) (ticket.Ticket, error) {
	var t ticket.Ticket
	if tf.file != "" {
		var (
			data []byte
			err  error
		)
		if tf.file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(tf.file)
		}
		if err != nil {
			return ticket.Ticket{}, fmt.Errorf("read ticket: %w", err)
		}
		t, err = decodeTicket(data)
		if err != nil {
			return ticket.Ticket{}, err
		}
	}

	if tf.id != "" {
		t.ID = tf.id
	}
	if tf.subject != "" {
		t.Subject = tf.subject
	}
	if tf.body != "" {
		t.Body = tf.body
	}
	if tf.customer != "" {
		t.Customer = tf.customer
	}
	if tf.channel != "" {
		t.Channel = tf.channel
	}
	if tf.priority != "" {
		t.Priority = ticket.Priority(tf.priority)
	}
	if len(tf.tags) > 0 {
		t.Tags = append(t.Tags, tf.tags...)
	}
	for k, v := range tf.meta {
		if t.Metadata == nil {
			t.Metadata = map[string]string{}
		}
		t.Metadata[k] = v
	}

	t = t.Normalize()
	if t.ID == "" {
		return ticket.Ticket{}, &pipeline.InvalidTicketError{Reason: "id is required"}
	}
	return t, nil
}

// ticketDoc is the file form of a ticket. The id and metadata values may be
// any scalar and are coerced to strings.
type ticketDoc struct {
	ID        any            `json:"id" yaml:"id"`
	Subject   string         `json:"subject" yaml:"subject"`
	Body      string         `json:"body" yaml:"body"`
	Customer  string         `json:"customer" yaml:"customer"`
	Channel   string         `json:"channel" yaml:"channel"`
	Priority  string         `json:"priority" yaml:"priority"`
	Tags      []string       `json:"tags" yaml:"tags"`
	Metadata  map[string]any `json:"metadata" yaml:"metadata"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
}

func decodeTicket(data []byte) (ticket.Ticket, error) {
	var doc ticketDoc
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return ticket.Ticket{}, &pipeline.InvalidTicketError{Reason: "decode JSON: " + err.Error()}
		}
	} else if err := yaml.Unmarshal(trimmed, &doc); err != nil {
		return ticket.Ticket{}, &pipeline.InvalidTicketError{Reason: "decode YAML: " + err.Error()}
	}

	id, err := cast.ToStringE(doc.ID)
	if err != nil {
		return ticket.Ticket{}, &pipeline.InvalidTicketError{Reason: "id: " + err.Error()}
	}
	meta, err := cast.ToStringMapStringE(doc.Metadata)
	if err != nil {
		return ticket.Ticket{}, &pipeline.InvalidTicketError{Reason: "metadata: " + err.Error()}
	}
	if len(meta) == 0 {
		meta = nil
	}

	return ticket.Ticket{
		ID:        id,
		Subject:   doc.Subject,
		Body:      doc.Body,
		Customer:  doc.Customer,
		Channel:   doc.Channel,
		Priority:  ticket.Priority(doc.Priority),
		Tags:      doc.Tags,
		Metadata:  meta,
		CreatedAt: doc.CreatedAt,
	}, nil
}

// jobPriority maps ticket urgency onto scheduler priority, where lower values
// run first. Unknown priorities sort with medium.
func jobPriority(p ticket.Priority) int {
	rank, ok := p.Rank()
	if !ok {
		rank, _ = ticket.PriorityMedium.Rank()
	}
	urgent, _ := ticket.PriorityUrgent.Rank()
	return urgent - rank
}
