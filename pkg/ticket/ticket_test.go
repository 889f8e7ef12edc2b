package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityRank(t *testing.T) {
	low, ok := PriorityLow.Rank()
	require.True(t, ok)
	urgent, ok := PriorityUrgent.Rank()
	require.True(t, ok)
	assert.Less(t, low, urgent)

	_, ok = Priority("critical").Rank()
	assert.False(t, ok)
}

func TestParsePriority(t *testing.T) {
	assert.Equal(t, PriorityHigh, ParsePriority("  HIGH "))
	assert.True(t, ParsePriority("Medium").Valid())
	assert.False(t, ParsePriority("p1").Valid())
}

func TestNormalize(t *testing.T) {
	tk := Ticket{ID: "  T-1 ", Priority: ""}.Normalize()
	assert.Equal(t, "T-1", tk.ID)
	assert.Equal(t, PriorityMedium, tk.Priority)

	tk = Ticket{ID: "T-2", Priority: "Urgent"}.Normalize()
	assert.Equal(t, PriorityUrgent, tk.Priority)
}

func TestText(t *testing.T) {
	assert.Equal(t, "subj\nbody", Ticket{Subject: "subj", Body: "body"}.Text())
	assert.Equal(t, "body", Ticket{Body: "body"}.Text())
	assert.Equal(t, "subj", Ticket{Subject: "subj"}.Text())
}

func TestProcessingResultFailed(t *testing.T) {
	r := &ProcessingResult{Errors: []StageError{{Step: StepKnowledge, Message: "down"}}}
	assert.True(t, r.Failed(StepKnowledge))
	assert.False(t, r.Failed(StepClassification))
}
