package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/settings"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

func passing() (*ticket.ProcessingResult, ticket.Ticket, settings.Settings) {
	result := &ticket.ProcessingResult{
		TicketID:       "T-1",
		Classification: &ticket.Classification{Category: "password_reset", Confidence: 0.95},
		Confidence:     0.9,
	}
	tk := ticket.Ticket{ID: "T-1", Priority: ticket.PriorityMedium}
	return result, tk, settings.Defaults()
}

func TestDecide_AllConditionsMet(t *testing.T) {
	result, tk, s := passing()
	require.Equal(t, 0.85, s.AutoResolveThreshold)

	d := Evaluate(result, tk, s)
	assert.True(t, d.AutoResolve)
	assert.Empty(t, d.Reasons)
	assert.True(t, Decide(result, tk, s))
}

func TestDecide_PriorityAboveCeiling(t *testing.T) {
	result, tk, s := passing()
	tk.Priority = ticket.PriorityHigh

	d := Evaluate(result, tk, s)
	assert.False(t, d.AutoResolve)
	require.Len(t, d.Reasons, 1)
	assert.Contains(t, d.Reasons[0], "priority")
}

func TestDecide_Blockers(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*ticket.ProcessingResult, *ticket.Ticket, *settings.Settings)
	}{
		{"stage error", func(r *ticket.ProcessingResult, _ *ticket.Ticket, _ *settings.Settings) {
			r.Errors = []ticket.StageError{{Step: ticket.StepKnowledge, Message: "timeout"}}
		}},
		{"below threshold", func(r *ticket.ProcessingResult, _ *ticket.Ticket, _ *settings.Settings) {
			r.Confidence = 0.84
		}},
		{"category not allow-listed", func(r *ticket.ProcessingResult, _ *ticket.Ticket, _ *settings.Settings) {
			r.Classification.Category = "bug_report"
		}},
		{"no classification", func(r *ticket.ProcessingResult, _ *ticket.Ticket, _ *settings.Settings) {
			r.Classification = nil
		}},
		{"urgent priority", func(_ *ticket.ProcessingResult, tk *ticket.Ticket, _ *settings.Settings) {
			tk.Priority = ticket.PriorityUrgent
		}},
		{"unknown priority", func(_ *ticket.ProcessingResult, tk *ticket.Ticket, _ *settings.Settings) {
			tk.Priority = "p0"
		}},
		{"disabled", func(_ *ticket.ProcessingResult, _ *ticket.Ticket, s *settings.Settings) {
			s.AutoResolve.Enabled = false
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, tk, s := passing()
			tt.modify(result, &tk, &s)
			d := Evaluate(result, tk, s)
			assert.False(t, d.AutoResolve)
			assert.NotEmpty(t, d.Reasons)
		})
	}
}

func TestDecide_ThresholdIsInclusive(t *testing.T) {
	result, tk, s := passing()
	result.Confidence = s.AutoResolveThreshold
	assert.True(t, Decide(result, tk, s))
}

func TestDecide_LowPriorityUnderCeiling(t *testing.T) {
	result, tk, s := passing()
	tk.Priority = ticket.PriorityLow
	assert.True(t, Decide(result, tk, s))
}

func TestDecide_NilResult(t *testing.T) {
	_, tk, s := passing()
	d := Evaluate(nil, tk, s)
	assert.False(t, d.AutoResolve)
}
