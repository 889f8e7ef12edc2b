package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// printResult renders a processing result: structured output as is, text as
// a decision panel followed by the drafted reply.
func printResult(f format.Formatter, r *ticket.ProcessingResult) error {
	if f.IsStructured() {
		return f.PrintStructured(r)
	}

	decision := "needs agent"
	if r.AutoResolve {
		decision = "auto-resolve"
	}
	if f.Color() {
		if r.AutoResolve {
			decision = color.GreenString(decision)
		} else {
			decision = color.YellowString(decision)
		}
	}

	category := "-"
	if r.Classification != nil {
		category = fmt.Sprintf("%s (%.2f)", r.Classification.Category, r.Classification.Confidence)
	}

	pairs := [][2]string{
		{"decision", decision},
		{"confidence", strconv.FormatFloat(r.Confidence, 'f', 2, 64)},
		{"category", category},
		{"articles", articleList(r.KnowledgeMatches)},
		{"time", fmt.Sprintf("%dms", r.ProcessingTimeMs)},
		{"settings", fmt.Sprintf("rev %d", r.SettingsRevision)},
	}
	if len(r.ResolutionBlockers) > 0 {
		pairs = append(pairs, [2]string{"blockers", strings.Join(r.ResolutionBlockers, ", ")})
	}
	for _, se := range r.Errors {
		pairs = append(pairs, [2]string{se.Step + " error", se.Message})
	}

	if err := f.PrintKeyValues("Ticket "+r.TicketID, pairs); err != nil {
		return err
	}
	if r.SuggestedResponse != nil && r.SuggestedResponse.Text != "" {
		if _, err := fmt.Fprintf(f.Stdout(), "\n%s\n", r.SuggestedResponse.Text); err != nil {
			return err
		}
	}
	return nil
}

func articleList(matches []ticket.KnowledgeMatch) string {
	if len(matches) == 0 {
		return "-"
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, fmt.Sprintf("%s (%.2f)", m.ArticleID, m.Score))
	}
	return strings.Join(ids, ", ")
}
