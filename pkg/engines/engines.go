// Package engines provides the built-in triage collaborators: a keyword
// classifier, a term-overlap knowledge index, a template responder and a
// weighted confidence scorer. They are deterministic and need no external
// services, which keeps the CLI and server runnable end to end.
package engines

import (
	"context"
	"strings"
	"unicode"

	"github.com/deskpilot/deskpilot/pkg/pipeline"
)

// Engine is a collaborator that reports its own health.
type Engine interface {
	Name() string
	Health(ctx context.Context) error
}

// Set bundles the built-in engines.
type Set struct {
	Classifier *KeywordClassifier
	Index      *ArticleIndex
	Responder  *TemplateResponder
	Scorer     *WeightedScorer
}

// NewSet builds the engines from the embedded rules and the given articles.
// A nil index uses the embedded articles.
func NewSet(index *ArticleIndex) (*Set, error) {
	classifier, err := NewKeywordClassifier(nil)
	if err != nil {
		return nil, err
	}
	if index == nil {
		if index, err = BuiltinIndex(); err != nil {
			return nil, err
		}
	}
	return &Set{
		Classifier: classifier,
		Index:      index,
		Responder:  NewTemplateResponder(),
		Scorer:     NewWeightedScorer(),
	}, nil
}

// Collaborators returns the set in the shape the orchestrator takes.
func (s *Set) Collaborators() pipeline.Collaborators {
	return pipeline.Collaborators{
		Classifier: s.Classifier,
		Knowledge:  s.Index,
		Responder:  s.Responder,
		Scorer:     s.Scorer,
	}
}

// Engines lists the set members for health reporting.
func (s *Set) Engines() []Engine {
	return []Engine{s.Classifier, s.Index, s.Responder, s.Scorer}
}

// stopwords are dropped before matching.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "you": {}, "your": {}, "are": {}, "was": {},
	"with": {}, "this": {}, "that": {}, "have": {}, "has": {}, "not": {}, "but": {},
	"can": {}, "from": {}, "our": {}, "its": {}, "into": {}, "when": {}, "will": {},
}

// terms lower-cases text and splits it into distinct words of three or more
// letters, stopwords removed.
func terms(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) < 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}
