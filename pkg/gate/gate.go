// Package gate decides whether a triaged ticket may be closed without human
// review. It is a pure function of the pipeline result, the ticket and the
// current settings.
package gate

import (
	"fmt"
	"slices"

	"github.com/deskpilot/deskpilot/pkg/settings"
	"github.com/deskpilot/deskpilot/pkg/ticket"
)

// Decision is the gate verdict with the reasons that blocked it.
type Decision struct {
	AutoResolve bool
	Reasons     []string
}

// Evaluate applies the auto-resolution policy. Every failed condition is
// listed in Reasons; AutoResolve is true only when Reasons is empty.
//
// A ticket auto-resolves when the pipeline recorded no errors, the confidence
// reaches the threshold, the category is allow-listed and the priority does
// not exceed the configured ceiling.
func Evaluate(result *ticket.ProcessingResult, t ticket.Ticket, s settings.Settings) Decision {
	var reasons []string

	if !s.AutoResolve.Enabled {
		reasons = append(reasons, "auto-resolution disabled")
	}

	if result == nil {
		return Decision{Reasons: append(reasons, "no pipeline result")}
	}

	if n := len(result.Errors); n > 0 {
		reasons = append(reasons, fmt.Sprintf("%d pipeline step(s) failed", n))
	}

	if result.Confidence < s.AutoResolveThreshold {
		reasons = append(reasons, fmt.Sprintf("confidence %.2f below threshold %.2f", result.Confidence, s.AutoResolveThreshold))
	}

	switch {
	case result.Classification == nil:
		reasons = append(reasons, "ticket not classified")
	case !slices.Contains(s.AutoResolve.Categories, result.Classification.Category):
		reasons = append(reasons, fmt.Sprintf("category %q not allow-listed", result.Classification.Category))
	}

	if !priorityAllowed(t.Priority, ticket.ParsePriority(s.AutoResolve.MaxPriority)) {
		reasons = append(reasons, fmt.Sprintf("priority %q above ceiling %q", t.Priority, s.AutoResolve.MaxPriority))
	}

	return Decision{AutoResolve: len(reasons) == 0, Reasons: reasons}
}

// Decide returns only the verdict of Evaluate.
func Decide(result *ticket.ProcessingResult, t ticket.Ticket, s settings.Settings) bool {
	return Evaluate(result, t, s).AutoResolve
}

// priorityAllowed reports rank(p) <= rank(ceiling). Unknown priorities never pass.
func priorityAllowed(p, ceiling ticket.Priority) bool {
	pr, ok := p.Rank()
	if !ok {
		return false
	}
	cr, ok := ceiling.Rank()
	if !ok {
		return false
	}
	return pr <= cr
}
