package ticket

import "time"

// Pipeline step names as they appear in StageError.Step.
const (
	StepClassification = "classification"
	StepKnowledge      = "knowledge"
	StepResponse       = "response"
	StepConfidence     = "confidence"
)

// Classification is the output of the classification step.
type Classification struct {
	Category   string   `json:"category" yaml:"category"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	Tags       []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// KnowledgeMatch is one knowledge-base article relevant to a ticket.
type KnowledgeMatch struct {
	ArticleID string  `json:"article_id" yaml:"article_id"`
	Title     string  `json:"title,omitempty" yaml:"title,omitempty"`
	Score     float64 `json:"score" yaml:"score"`
	Snippet   string  `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// SuggestedResponse is a drafted reply for a human agent or for auto-resolution.
type SuggestedResponse struct {
	Text            string   `json:"text" yaml:"text"`
	CitedArticleIDs []string `json:"cited_article_ids,omitempty" yaml:"cited_article_ids,omitempty"`
}

// StageError records a pipeline step that failed and was skipped.
type StageError struct {
	Step    string `json:"step" yaml:"step"`
	Message string `json:"message" yaml:"message"`
}

// ProcessingResult is the outcome of one pipeline run over a ticket.
// It is built fresh per run and not mutated after being returned.
type ProcessingResult struct {
	TicketID           string             `json:"ticket_id" yaml:"ticket_id"`
	Timestamp          time.Time          `json:"timestamp" yaml:"timestamp"`
	ProcessingTimeMs   int64              `json:"processing_time_ms" yaml:"processing_time_ms"`
	Classification     *Classification    `json:"classification" yaml:"classification"`
	KnowledgeMatches   []KnowledgeMatch   `json:"knowledge_matches" yaml:"knowledge_matches"`
	SuggestedResponse  *SuggestedResponse `json:"suggested_response" yaml:"suggested_response"`
	Confidence         float64            `json:"confidence" yaml:"confidence"`
	AutoResolve        bool               `json:"auto_resolve" yaml:"auto_resolve"`
	ResolutionBlockers []string           `json:"resolution_blockers,omitempty" yaml:"resolution_blockers,omitempty"`
	Errors             []StageError       `json:"errors" yaml:"errors"`
	SettingsRevision   int64              `json:"settings_revision" yaml:"settings_revision"`
}

// Failed reports whether the given step recorded an error.
func (r *ProcessingResult) Failed(step string) bool {
	for _, e := range r.Errors {
		if e.Step == step {
			return true
		}
	}
	return false
}
