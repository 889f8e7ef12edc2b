package format

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// OperationAnnotation is the cobra annotation naming a command's operation
// in failure summaries, e.g. "process ticket".
const OperationAnnotation = "operation"

// Operation returns the operation name of cmd.
func Operation(cmd *cobra.Command) string {
	if op := cmd.Annotations[OperationAnnotation]; op != "" {
		return op
	}
	return "run " + cmd.CommandPath()
}

// FromCommand builds a Formatter using cobra command output/error writers and common flags.
// Color is on only when stdout is a terminal and --no-color is not set.
func FromCommand(cmd *cobra.Command) Formatter {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	outputMode := ModeTable
	if flag := cmd.Flags().Lookup("output"); flag != nil {
		outputMode = ParseMode(flag.Value.String())
	}

	quiet := false
	if flag := cmd.Flags().Lookup("quiet"); flag != nil {
		if val, err := strconv.ParseBool(flag.Value.String()); err == nil {
			quiet = val
		}
	}

	color := stdout == os.Stdout && isTerminal(os.Stdout)
	if flag := cmd.Flags().Lookup("no-color"); flag != nil {
		if val, err := strconv.ParseBool(flag.Value.String()); err == nil && val {
			color = false
		}
	}

	return New(stdout, stderr, outputMode, quiet, color)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
