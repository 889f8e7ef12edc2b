package settings

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deskpilot/deskpilot/cmd/deskpilot/internal/format"
)

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective settings",
		Annotations: map[string]string{format.OperationAnnotation: "show settings"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer release()

			f := format.FromCommand(cmd)
			if f.IsJSON() {
				return f.PrintJSON(store.Snapshot().Redacted())
			}
			// Text and YAML both read best as the settings file layout.
			return f.PrintYAML(store.Snapshot().Redacted())
		},
	}
}

func newGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "get <key>",
		Short:       "Print one setting by dotted key",
		Example:     `  deskpilot settings get auto_resolve_threshold
  deskpilot settings get queues.tickets`,
		Annotations: map[string]string{format.OperationAnnotation: "get setting"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer release()

			key := args[0]
			value, ok := lookup(store.Snapshot().Redacted(), key)
			if !ok {
				return fmt.Errorf("unknown settings key %q", key)
			}

			f := format.FromCommand(cmd)
			if f.IsStructured() {
				return f.PrintStructured(map[string]any{key: value})
			}
			switch value.(type) {
			case map[string]any, []any:
				return f.PrintYAML(value)
			default:
				_, err := fmt.Fprintln(f.Stdout(), value)
				return err
			}
		},
	}
}

// lookup walks m along the dotted key.
func lookup(m map[string]any, key string) (any, bool) {
	var cur any = m
	for _, part := range strings.Split(key, ".") {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
