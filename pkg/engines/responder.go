package engines

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// maxCitations caps the articles a drafted reply links to.
const maxCitations = 2

const fallbackTemplate = `Hi{{if .Customer}} {{.Customer}}{{end}},

Thanks for reaching out. {{if .Articles}}These articles should help:
{{range .Articles}}
- {{.Title}} ({{.ArticleID}}){{if .Snippet}}: {{.Snippet}}{{end}}{{end}}

If this does not solve it, reply to this message and an agent will follow up.{{else}}An agent will review your request and get back to you shortly.{{end}}`

var defaultTemplates = map[string]string{
	"password_reset": `Hi{{if .Customer}} {{.Customer}}{{end}},

You can reset your password yourself in a couple of minutes.{{range .Articles}}
- {{.Title}} ({{.ArticleID}}){{if .Snippet}}: {{.Snippet}}{{end}}{{end}}

If the reset link does not arrive, check your spam folder and reply here.`,
	"billing_question": `Hi{{if .Customer}} {{.Customer}}{{end}},

Thanks for your billing question.{{range .Articles}}
- {{.Title}} ({{.ArticleID}}){{if .Snippet}}: {{.Snippet}}{{end}}{{end}}

Reply with your invoice number if you need anything else.`,
}

type templateData struct {
	Customer string
	Subject  string
	Category string
	Articles []ticket.KnowledgeMatch
}

// TemplateResponder drafts replies from per-category templates, citing the
// best knowledge matches.
type TemplateResponder struct {
	templates map[string]*template.Template
	fallback  *template.Template
}

// NewTemplateResponder returns a responder with the built-in templates.
func NewTemplateResponder() *TemplateResponder {
	r, err := NewTemplateResponderWith(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("engines: built-in templates: %v", err))
	}
	return r
}

// NewTemplateResponderWith parses templates keyed by category. Categories
// without a template use the generic reply.
func NewTemplateResponderWith(templates map[string]string) (*TemplateResponder, error) {
	r := &TemplateResponder{templates: make(map[string]*template.Template, len(templates))}
	var err error
	if r.fallback, err = template.New("fallback").Parse(fallbackTemplate); err != nil {
		return nil, err
	}
	for category, text := range templates {
		tpl, err := template.New(category).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse template %q: %w", category, err)
		}
		r.templates[category] = tpl
	}
	return r, nil
}

// Name implements Engine.
func (r *TemplateResponder) Name() string { return "template-responder" }

// Health implements Engine.
func (r *TemplateResponder) Health(context.Context) error { return nil }

// Generate renders the category template. A missing classification uses the
// generic reply.
func (r *TemplateResponder) Generate(ctx context.Context, t ticket.Ticket, c *ticket.Classification, matches []ticket.KnowledgeMatch) (*ticket.SuggestedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data := templateData{Customer: t.Customer, Subject: t.Subject}
	if len(matches) > maxCitations {
		data.Articles = matches[:maxCitations]
	} else {
		data.Articles = matches
	}

	tpl := r.fallback
	if c != nil {
		data.Category = c.Category
		if custom, ok := r.templates[c.Category]; ok {
			tpl = custom
		}
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render response: %w", err)
	}

	cited := make([]string, 0, len(data.Articles))
	for _, m := range data.Articles {
		cited = append(cited, m.ArticleID)
	}
	return &ticket.SuggestedResponse{Text: strings.TrimSpace(buf.String()), CitedArticleIDs: cited}, nil
}
