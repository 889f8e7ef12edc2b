package pipeline

import (
	"context"

	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// Classifier assigns a category to a ticket.
type Classifier interface {
	Classify(ctx context.Context, t ticket.Ticket) (*ticket.Classification, error)
}

// KnowledgeSearcher finds knowledge-base articles relevant to a ticket.
// classification may be nil. No match is an empty result, not an error.
type KnowledgeSearcher interface {
	Search(ctx context.Context, t ticket.Ticket, c *ticket.Classification) ([]ticket.KnowledgeMatch, error)
}

// ResponseGenerator drafts a reply. classification may be nil and matches empty.
type ResponseGenerator interface {
	Generate(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch) (*ticket.SuggestedResponse, error)
}

// ConfidenceScorer estimates in [0,1] how likely the drafted reply resolves the ticket.
type ConfidenceScorer interface {
	Score(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch, r *ticket.SuggestedResponse) (float64, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, t ticket.Ticket) (*ticket.Classification, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, t ticket.Ticket) (*ticket.Classification, error) {
	return f(ctx, t)
}

// KnowledgeSearcherFunc adapts a function to KnowledgeSearcher.
type KnowledgeSearcherFunc func(ctx context.Context, t ticket.Ticket, c *ticket.Classification) ([]ticket.KnowledgeMatch, error)

// Search implements KnowledgeSearcher.
func (f KnowledgeSearcherFunc) Search(ctx context.Context, t ticket.Ticket, c *ticket.Classification) ([]ticket.KnowledgeMatch, error) {
	return f(ctx, t, c)
}

// ResponseGeneratorFunc adapts a function to ResponseGenerator.
type ResponseGeneratorFunc func(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch) (*ticket.SuggestedResponse, error)

// Generate implements ResponseGenerator.
func (f ResponseGeneratorFunc) Generate(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch) (*ticket.SuggestedResponse, error) {
	return f(ctx, t, c, matches)
}

// ConfidenceScorerFunc adapts a function to ConfidenceScorer.
type ConfidenceScorerFunc func(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch, r *ticket.SuggestedResponse) (float64, error)

// Score implements ConfidenceScorer.
func (f ConfidenceScorerFunc) Score(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch, r *ticket.SuggestedResponse) (float64, error) {
	return f(ctx, t, c, matches, r)
}

// Collaborators are the four stage engines the orchestrator drives.
type Collaborators struct {
	Classifier Classifier
	Knowledge  KnowledgeSearcher
	Responder  ResponseGenerator
	Scorer     ConfidenceScorer
}
