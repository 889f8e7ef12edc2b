package engines

import (
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

//go:embed data/rules.yaml
var embeddedRulesYAML []byte

// FallbackCategory is assigned when no rule scores high enough.
const FallbackCategory = "general"

// Rule maps keywords to a category.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// ParseRules parses classifier rules from YAML, either a bare list or a
// document with a top-level "rules" key.
func ParseRules(data []byte) ([]Rule, error) {
	var wrapper struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Rules) > 0 {
		return wrapper.Rules, validateRules(wrapper.Rules)
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse classifier rules: %w", err)
	}
	return rules, validateRules(rules)
}

func validateRules(rules []Rule) error {
	if len(rules) == 0 {
		return fmt.Errorf("no classifier rules found")
	}
	for i, r := range rules {
		if r.Category == "" || len(r.Keywords) == 0 {
			return fmt.Errorf("invalid classifier rule at index %d: category and keywords are required", i)
		}
	}
	return nil
}

// KeywordClassifier assigns the category whose keywords occur most often in
// the ticket text.
type KeywordClassifier struct {
	rules []Rule
}

// NewKeywordClassifier returns a classifier over rules. Nil rules load the
// embedded rule set.
func NewKeywordClassifier(rules []Rule) (*KeywordClassifier, error) {
	if rules == nil {
		parsed, err := ParseRules(embeddedRulesYAML)
		if err != nil {
			return nil, fmt.Errorf("load embedded classifier rules: %w", err)
		}
		rules = parsed
	} else if err := validateRules(rules); err != nil {
		return nil, err
	}

	prepared := make([]Rule, len(rules))
	for i, r := range rules {
		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		prepared[i] = Rule{Category: r.Category, Keywords: kws}
	}
	return &KeywordClassifier{rules: prepared}, nil
}

// Name implements Engine.
func (c *KeywordClassifier) Name() string { return "keyword-classifier" }

// Health implements Engine.
func (c *KeywordClassifier) Health(context.Context) error {
	if len(c.rules) == 0 {
		return fmt.Errorf("no classifier rules loaded")
	}
	return nil
}

// Classify scores every rule against the ticket. Confidence is the winning
// rule's share of all keyword hits. Categories missing from the configured
// category list are skipped, and a winner under the configured minimum
// confidence falls back to FallbackCategory.
func (c *KeywordClassifier) Classify(ctx context.Context, t ticket.Ticket) (*ticket.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := appctx.Settings(ctx).Classification
	text := strings.ToLower(t.Text())

	var (
		best     string
		bestHits int
		total    int
		tags     []string
	)
	for _, r := range c.rules {
		if len(cfg.Categories) > 0 && !slices.Contains(cfg.Categories, r.Category) {
			continue
		}
		hits := 0
		var matched []string
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				hits++
				matched = append(matched, kw)
			}
		}
		total += hits
		if hits > bestHits {
			best, bestHits, tags = r.Category, hits, matched
		}
	}

	if bestHits == 0 {
		return &ticket.Classification{Category: FallbackCategory, Confidence: 0}, nil
	}

	confidence := float64(bestHits) / float64(total)
	// A single hit is weak evidence even when it is the only one.
	if bestHits == 1 {
		confidence *= 0.6
	}
	if confidence < cfg.MinConfidence {
		return &ticket.Classification{Category: FallbackCategory, Confidence: confidence, Tags: tags}, nil
	}
	return &ticket.Classification{Category: best, Confidence: confidence, Tags: tags}, nil
}
