package engines

import (
	"context"
	"fmt"

	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// WeightedScorer blends classification confidence, the best knowledge match
// and whether the reply cites an article.
type WeightedScorer struct {
	Classification float64
	Knowledge      float64
	Citation       float64
}

// NewWeightedScorer returns the default weighting.
func NewWeightedScorer() *WeightedScorer {
	return &WeightedScorer{Classification: 0.5, Knowledge: 0.35, Citation: 0.15}
}

// Name implements Engine.
func (s *WeightedScorer) Name() string { return "weighted-scorer" }

// Health implements Engine.
func (s *WeightedScorer) Health(context.Context) error {
	if s.Classification < 0 || s.Knowledge < 0 || s.Citation < 0 {
		return fmt.Errorf("negative scorer weight")
	}
	if s.Classification+s.Knowledge+s.Citation <= 0 {
		return fmt.Errorf("scorer weights sum to zero")
	}
	return nil
}

// Score returns the weighted mean in [0,1]. Missing inputs contribute zero.
func (s *WeightedScorer) Score(ctx context.Context, _ ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch, r *ticket.SuggestedResponse) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.Health(ctx); err != nil {
		return 0, err
	}

	var sum float64
	if c != nil {
		sum += s.Classification * clamp(c.Confidence)
	}
	var best float64
	for _, m := range matches {
		best = max(best, m.Score)
	}
	sum += s.Knowledge * clamp(best)
	if r != nil && len(r.CitedArticleIDs) > 0 {
		sum += s.Citation
	}
	return clamp(sum / (s.Classification + s.Knowledge + s.Citation)), nil
}

func clamp(v float64) float64 {
	return min(max(v, 0), 1)
}
