package commands

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/pipeline"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

func TestDecodeTicket_JSON(t *testing.T) {
	tk, err := decodeTicket([]byte(`  {"id": 42, "subject": "Refund", "priority": "HIGH", "metadata": {"seats": 3, "trial": true}}`))
	require.NoError(t, err)

	assert.Equal(t, "42", tk.ID)
	assert.Equal(t, "Refund", tk.Subject)
	assert.Equal(t, ticket.Priority("HIGH"), tk.Priority)
	assert.Equal(t, map[string]string{"seats": "3", "trial": "true"}, tk.Metadata)
}

func TestDecodeTicket_YAML(t *testing.T) {
	tk, err := decodeTicket([]byte("id: T-9\nsubject: Login loop\ntags: [web, sso]\n"))
	require.NoError(t, err)

	assert.Equal(t, "T-9", tk.ID)
	assert.Equal(t, []string{"web", "sso"}, tk.Tags)
	assert.Nil(t, tk.Metadata)
}

func TestDecodeTicket_Malformed(t *testing.T) {
	for _, doc := range []string{`{"id": `, "id: [unclosed", "id: {a: 1}"} {
		_, err := decodeTicket([]byte(doc))
		require.Error(t, err, doc)
		assert.True(t, errors.Is(err, pipeline.ErrInvalidTicket), doc)
	}
}

func TestTicketFlags_OverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticket.yaml")
	require.NoError(t, os.WriteFile(path, []byte("id: T-1\nsubject: Old\npriority: low\nmetadata:\n  plan: free\n"), 0o600))

	tf := ticketFlags{
		file:     path,
		subject:  "New",
		priority: "urgent",
		tags:     []string{"vip"},
		meta:     map[string]string{"plan": "pro"},
	}
	tk, err := tf.ticket(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, "T-1", tk.ID)
	assert.Equal(t, "New", tk.Subject)
	assert.Equal(t, ticket.PriorityUrgent, tk.Priority)
	assert.Equal(t, []string{"vip"}, tk.Tags)
	assert.Equal(t, "pro", tk.Metadata["plan"])
}

func TestTicketFlags_Stdin(t *testing.T) {
	tf := ticketFlags{file: "-"}
	tk, err := tf.ticket(strings.NewReader(`{"id": " T-5 ", "body": "help"}`))
	require.NoError(t, err)

	assert.Equal(t, "T-5", tk.ID)
	assert.Equal(t, ticket.PriorityMedium, tk.Priority)
}

func TestTicketFlags_MissingID(t *testing.T) {
	tf := ticketFlags{subject: "Hello"}
	_, err := tf.ticket(strings.NewReader(""))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrInvalidTicket))
	assert.Contains(t, err.Error(), "id is required")
}

func TestTicketFlags_MissingFile(t *testing.T) {
	tf := ticketFlags{file: filepath.Join(t.TempDir(), "absent.yaml")}
	_, err := tf.ticket(strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read ticket")
}

func TestJobPriority(t *testing.T) {
	assert.Equal(t, 0, jobPriority(ticket.PriorityUrgent))
	assert.Equal(t, 1, jobPriority(ticket.PriorityHigh))
	assert.Equal(t, 2, jobPriority(ticket.PriorityMedium))
	assert.Equal(t, 3, jobPriority(ticket.PriorityLow))
	assert.Equal(t, jobPriority(ticket.PriorityMedium), jobPriority(ticket.Priority("whenever")))
}
