package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	require.Equal(t, "127.0.0.1", cfg.Addr)
	require.Equal(t, 8080, cfg.Port)
	require.True(t, cfg.EventsEnabled)

	require.Equal(t, 30*time.Second, cfg.ReadTimeout)
	require.Equal(t, 30*time.Second, cfg.WriteTimeout)
	require.Equal(t, 30*time.Second, cfg.ShutdownTimeout)

	require.Equal(t, "none", cfg.Auth.Mode)
	require.Empty(t, cfg.Auth.Token)
}

func TestBindServerFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindServerFlags(flags)

	err := flags.Parse([]string{
		"--server.addr=0.0.0.0",
		"--server.port=9090",
		"--server.events_enabled=false",
		"--server.shutdown_timeout=10s",
	})
	require.NoError(t, err)

	addr, err := flags.GetString("server.addr")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0", addr)

	port, err := flags.GetInt("server.port")
	require.NoError(t, err)
	require.Equal(t, 9090, port)

	events, err := flags.GetBool("server.events_enabled")
	require.NoError(t, err)
	require.False(t, events)

	grace, err := flags.GetDuration("server.shutdown_timeout")
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, grace)
}

func TestBindServerFlags_Defaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindServerFlags(flags)
	require.NoError(t, flags.Parse(nil))

	defaults := DefaultServerConfig()

	addr, _ := flags.GetString("server.addr")
	require.Equal(t, defaults.Addr, addr)

	port, _ := flags.GetInt("server.port")
	require.Equal(t, defaults.Port, port)

	mode, _ := flags.GetString("server.auth.mode")
	require.Equal(t, defaults.Auth.Mode, mode)
}

func TestServerConfig_Integration(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	BindServerFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--server.port=7070",
		"--server.auth.mode=token",
		"--server.auth.token=s3cret",
	}))

	manager := NewManager()
	require.NoError(t, manager.Load(flags, ""))

	cfg := manager.Get()
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "token", cfg.Server.Auth.Mode)
	require.Equal(t, "s3cret", cfg.Server.Auth.Token)
	require.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}
