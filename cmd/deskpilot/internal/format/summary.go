package format

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/deskpilot/deskpilot/pkg/server"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	keyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// PrintSuccessSummary prints a standardized success message
// Examples:
//   - "✓ Enqueued ticket T-42"
//   - "✓ Reset completed successfully"
func (f *formatter) PrintSuccessSummary(operation, subject string) error {
	if f.quiet {
		if subject != "" {
			_, err := fmt.Fprintln(f.stdout, subject)
			return err
		}
		return nil
	}

	if f.IsStructured() {
		return f.PrintStructured(map[string]any{
			"success":   true,
			"operation": operation,
			"subject":   subject,
		})
	}

	var message string
	if subject != "" {
		message = fmt.Sprintf("✓ %s %s", capitalize(operation), subject)
	} else {
		message = fmt.Sprintf("✓ %s completed successfully", capitalize(operation))
	}

	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}

	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

// PrintTotalFailureSummary prints total failure with error and suggestions
// Example output:
//
//	✗ Failed to enqueue ticket: queue not found: billing
//
//	💡 Suggestions:
//	  → List configured queues:  deskpilot settings get queues
func (f *formatter) PrintTotalFailureSummary(operation string, err error, errorCode string) error {
	if f.quiet {
		return nil
	}

	if f.IsStructured() {
		return f.PrintStructured(map[string]any{
			"success":    false,
			"operation":  operation,
			"error":      err.Error(),
			"error_code": errorCode,
		})
	}

	var sb strings.Builder

	errorMsg := fmt.Sprintf("✗ Failed to %s: %v", operation, err)
	if f.color {
		sb.WriteString(color.RedString("%s\n", errorMsg))
	} else {
		sb.WriteString(errorMsg + "\n")
	}

	suggestions := GetSuggestions(errorCode, operation)
	if len(suggestions) == 0 && strings.HasPrefix(errorCode, "SERVER_") {
		suggestions = server.Suggestions(err)
	}
	if len(suggestions) > 0 {
		sb.WriteString("\n💡 Suggestions:\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("  → %s\n", s))
		}
	}

	_, writeErr := f.stderr.Write([]byte(sb.String()))
	return writeErr
}

// PrintKeyValues prints pairs under a title. With color enabled the block is
// framed in a panel.
func (f *formatter) PrintKeyValues(title string, pairs [][2]string) error {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}

	var sb strings.Builder
	if title != "" {
		if f.color {
			sb.WriteString(titleStyle.Render(title))
		} else {
			sb.WriteString(title)
		}
		sb.WriteString("\n")
	}
	for i, p := range pairs {
		key := fmt.Sprintf("%-*s", width, p[0])
		if f.color {
			key = keyStyle.Render(key)
		}
		sb.WriteString(key + "  " + p[1])
		if i < len(pairs)-1 {
			sb.WriteString("\n")
		}
	}

	out := sb.String()
	if f.color {
		out = panelStyle.Render(out)
	}
	_, err := fmt.Fprintln(f.stdout, out)
	return err
}

var suggestionGenerators = map[string]func(string) []string{
	"QUEUE_NOT_FOUND": func(string) []string {
		return []string{
			"List configured queues:  deskpilot settings get queues",
			"Add a queue:             deskpilot settings set queues.<name>.attempts 3",
		}
	},
	"JOB_NOT_FOUND": func(string) []string {
		return []string{
			"Completed jobs are trimmed by queues.<name>.remove_on_complete",
			"Check the queue name:    deskpilot queue stats <queue>",
		}
	},
	"INVALID_TICKET": func(operation string) []string {
		return []string{
			"A ticket needs an id:    --id T-1 or \"id\" in the ticket file",
			fmt.Sprintf("Pass fields inline:      deskpilot %s --id T-1 --subject \"...\" --body \"...\"", operation),
		}
	},
	"INVALID_SETTINGS": func(string) []string {
		return []string{
			"Show current settings:   deskpilot settings show",
			"Restore defaults:        deskpilot settings reset",
		}
	},
	"SHARED_BROKER_REQUIRED": func(operation string) []string {
		return []string{
			fmt.Sprintf("Use Redis:               deskpilot %s --broker.driver redis", operation),
			fmt.Sprintf("Process in this process: deskpilot %s --wait", operation),
		}
	},
	"INVALID_INPUT": func(string) []string {
		return []string{
			"Run help for options:    deskpilot <command> --help",
		}
	},
}

// GetSuggestions returns CLI hints for an error code, or nil.
func GetSuggestions(errorCode, operation string) []string {
	if gen, ok := suggestionGenerators[errorCode]; ok {
		return gen(operation)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
