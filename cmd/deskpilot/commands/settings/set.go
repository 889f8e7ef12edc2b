package settings

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/bind"
	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
)

func newSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value> [<key> <value>...]",
		Short: "Change settings",
		Long: `Change one or more settings in a single validated update.

Values are read as YAML scalars or flow collections, so 0.9 is a number,
true is a boolean and [how_to, billing_question] is a list. Durations are
written like 2s or 5m.`,
		Example: `  deskpilot settings set auto_resolve_threshold 0.9
  deskpilot settings set queues.tickets.concurrency 8 queues.tickets.backoff 5s
  deskpilot settings set auto_resolve.categories "[password_reset, how_to]"`,
		Annotations: map[string]string{format.OperationAnnotation: "update settings"},
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("%w: expected key/value pairs, got %d arguments", bind.ErrInvalidInput, len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			partial, err := parsePairs(args)
			if err != nil {
				return err
			}

			store, release, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer release()

			snap, err := store.Update(cmd.Context(), partial)
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(map[string]any{
					"success":  true,
					"revision": snap.Revision,
					"updated":  partial,
				})
			}
			return f.PrintSuccessSummary("updated settings to revision", strconv.FormatInt(snap.Revision, 10))
		},
	}
}

// parsePairs decodes key/value arguments into a partial settings map.
func parsePairs(args []string) (map[string]any, error) {
	partial := make(map[string]any, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, raw := args[i], args[i+1]
		if key == "" {
			return nil, fmt.Errorf("%w: empty settings key", bind.ErrInvalidInput)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("%w: value for %s: %v", bind.ErrInvalidInput, key, err)
		}
		if value == nil {
			// An empty or null value clears strings the same way a file would.
			value = ""
		}
		partial[key] = value
	}
	return partial, nil
}
