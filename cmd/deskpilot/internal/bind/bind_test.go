package bind

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/appctx"
	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/server"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

func enqueueCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "enqueue"}
	cmd.Flags().String("queue", settings.DefaultQueue, "")
	cmd.Flags().Duration("delay", 0, "")
	cmd.Flags().Bool("wait", false, "")
	cmd.Flags().Duration("timeout", time.Minute, "")
	return cmd
}

func TestConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.SetContext(context.Background())
	_, err := Config(cmd)
	require.ErrorIs(t, err, server.ErrConfigUnavailable)

	cmd.SetContext(appctx.WithConfig(context.Background(), config.NewManager()))
	cfg, err := Config(cmd)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Broker.Driver)
}

func TestRequireSharedBroker(t *testing.T) {
	cfg := config.DefaultConfig()
	require.ErrorIs(t, RequireSharedBroker(cfg), ErrSharedBrokerRequired)

	cfg.Broker.Driver = "redis"
	require.NoError(t, RequireSharedBroker(cfg))
}

func TestBindEnqueueOptions(t *testing.T) {
	cmd := enqueueCommand()
	require.NoError(t, cmd.Flags().Set("queue", ""))
	require.NoError(t, cmd.Flags().Set("wait", "true"))

	opts, err := BindEnqueueOptions(cmd)
	require.NoError(t, err)
	require.Equal(t, EnqueueOptions{Queue: "tickets", Wait: true, Timeout: time.Minute}, opts)
}

func TestBindEnqueueOptions_Invalid(t *testing.T) {
	cmd := enqueueCommand()
	require.NoError(t, cmd.Flags().Set("delay", "-1s"))
	_, err := BindEnqueueOptions(cmd)
	require.ErrorIs(t, err, ErrInvalidInput)

	cmd = enqueueCommand()
	require.NoError(t, cmd.Flags().Set("timeout", "0s"))
	_, err = BindEnqueueOptions(cmd)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBindQueueCleanOptions(t *testing.T) {
	cmd := &cobra.Command{Use: "clean"}
	cmd.Flags().Duration("grace", time.Hour, "")

	opts, err := BindQueueCleanOptions(cmd, []string{"vip"})
	require.NoError(t, err)
	require.Equal(t, QueueCleanOptions{Queue: "vip", Grace: time.Hour}, opts)

	require.NoError(t, cmd.Flags().Set("grace", "-5m"))
	_, err = BindQueueCleanOptions(cmd, []string{"vip"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestKnownQueue(t *testing.T) {
	s := settings.Defaults()
	require.True(t, KnownQueue(s, "tickets"))
	require.False(t, KnownQueue(s, "vip"))

	s.Queues["vip"] = settings.DefaultQueueSettings()
	require.True(t, KnownQueue(s, "vip"))
}
