package engines

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

//go:embed data/articles.yaml
var embeddedArticlesYAML []byte

const (
	snippetLength = 160
	categoryBonus = 0.25
)

// Article is one knowledge-base entry.
type Article struct {
	ID       string   `yaml:"id" json:"id"`
	Title    string   `yaml:"title" json:"title"`
	Category string   `yaml:"category" json:"category"`
	Tags     []string `yaml:"tags" json:"tags"`
	Body     string   `yaml:"body" json:"body"`
}

// ErrEmptyIndex is returned by Health when no articles are loaded.
var ErrEmptyIndex = errors.New("knowledge index is empty")

// ParseArticles parses articles from YAML, either a bare list or a document
// with a top-level "articles" key.
func ParseArticles(data []byte) ([]Article, error) {
	var wrapper struct {
		Articles []Article `yaml:"articles"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err == nil && len(wrapper.Articles) > 0 {
		return wrapper.Articles, validateArticles(wrapper.Articles)
	}

	var articles []Article
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to parse articles: %w", err)
	}
	return articles, validateArticles(articles)
}

func validateArticles(articles []Article) error {
	seen := make(map[string]struct{}, len(articles))
	for i, a := range articles {
		if a.ID == "" || a.Title == "" {
			return fmt.Errorf("invalid article at index %d: id and title are required", i)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate article id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}

// LoadArticlesFromFile reads articles from a YAML file.
func LoadArticlesFromFile(path string) ([]Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read articles: %w", err)
	}
	return ParseArticles(data)
}

type indexedArticle struct {
	Article
	terms map[string]struct{}
}

// ArticleIndex searches articles by term overlap with the ticket.
type ArticleIndex struct {
	articles []indexedArticle
}

// NewArticleIndex indexes articles.
func NewArticleIndex(articles []Article) *ArticleIndex {
	idx := &ArticleIndex{articles: make([]indexedArticle, 0, len(articles))}
	for _, a := range articles {
		text := a.Title + " " + a.Body + " " + strings.Join(a.Tags, " ")
		idx.articles = append(idx.articles, indexedArticle{Article: a, terms: terms(text)})
	}
	return idx
}

// BuiltinIndex indexes the embedded articles.
func BuiltinIndex() (*ArticleIndex, error) {
	articles, err := ParseArticles(embeddedArticlesYAML)
	if err != nil {
		return nil, fmt.Errorf("load embedded articles: %w", err)
	}
	return NewArticleIndex(articles), nil
}

// Len returns the number of indexed articles.
func (x *ArticleIndex) Len() int { return len(x.articles) }

// Name implements Engine.
func (x *ArticleIndex) Name() string { return "article-index" }

// Health implements Engine.
func (x *ArticleIndex) Health(context.Context) error {
	if len(x.articles) == 0 {
		return ErrEmptyIndex
	}
	return nil
}

// Search scores each article by the share of ticket terms it contains, plus
// a bonus when its category matches the classification. Matches below the
// configured minimum score are dropped; at most the configured number of
// results is returned, best first.
func (x *ArticleIndex) Search(ctx context.Context, t ticket.Ticket, c *ticket.Classification) ([]ticket.KnowledgeMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cfg := appctx.Settings(ctx).Knowledge

	query := terms(t.Text())
	if len(query) == 0 {
		return []ticket.KnowledgeMatch{}, nil
	}

	matches := make([]ticket.KnowledgeMatch, 0, len(x.articles))
	for _, a := range x.articles {
		overlap := 0
		for term := range query {
			if _, ok := a.terms[term]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		score := float64(overlap) / float64(len(query))
		if c != nil && c.Category == a.Category {
			score += categoryBonus
		}
		score = min(score, 1)
		if score < cfg.MinScore {
			continue
		}
		matches = append(matches, ticket.KnowledgeMatch{
			ArticleID: a.ID,
			Title:     a.Title,
			Score:     score,
			Snippet:   snippet(a.Body),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ArticleID < matches[j].ArticleID
	})
	if cfg.MaxResults > 0 && len(matches) > cfg.MaxResults {
		matches = matches[:cfg.MaxResults]
	}
	return matches, nil
}

func snippet(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) <= snippetLength {
		return body
	}
	cut := strings.LastIndex(body[:snippetLength], " ")
	if cut <= 0 {
		cut = snippetLength
	}
	return body[:cut] + "..."
}
