package format

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestFromCommandRespectsFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("output", "text", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("no-color", false, "")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	require.NoError(t, cmd.Flags().Set("output", "json"))
	require.NoError(t, cmd.Flags().Set("quiet", "true"))
	require.NoError(t, cmd.Flags().Set("no-color", "true"))

	formatter := FromCommand(cmd)
	require.True(t, formatter.IsJSON())
	require.False(t, formatter.Color())

	require.NoError(t, formatter.PrintSummary("should be suppressed"))
	require.Equal(t, "", out.String())
}

func TestFromCommandDefaults(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	out := &bytes.Buffer{}
	cmd.SetOut(out)

	formatter := FromCommand(cmd)
	require.False(t, formatter.IsStructured())
	require.False(t, formatter.Color(), "buffers are never terminals")
	require.Same(t, out, formatter.Stdout())
}

func TestOperation(t *testing.T) {
	root := &cobra.Command{Use: "deskpilot"}
	child := &cobra.Command{Use: "stats"}
	root.AddCommand(child)
	require.Equal(t, "run deskpilot stats", Operation(child))

	child.Annotations = map[string]string{OperationAnnotation: "show queue stats"}
	require.Equal(t, "show queue stats", Operation(child))
}
