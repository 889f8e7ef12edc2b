package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            "127.0.0.1",
		Port:            8080,
		EventsEnabled:   true,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Auth:            AuthConfig{Mode: "none"},
	}
}

// BindServerFlags binds server-specific flags to the provided FlagSet.
// Flags are namespaced under 'server.' to avoid conflicts with global flags,
// e.g. --server.addr, --server.port.
func BindServerFlags(flags *pflag.FlagSet) {
	defaults := DefaultServerConfig()

	flags.String("server.addr", defaults.Addr, "Ops listen address (use 0.0.0.0 for all interfaces)")
	flags.Int("server.port", defaults.Port, "Ops listen port")
	flags.Bool("server.events_enabled", defaults.EventsEnabled, "Expose the websocket event stream")
	flags.Duration("server.read_timeout", defaults.ReadTimeout, "HTTP read timeout")
	flags.Duration("server.write_timeout", defaults.WriteTimeout, "HTTP write timeout")
	flags.Duration("server.shutdown_timeout", defaults.ShutdownTimeout, "Grace period for in-flight jobs on shutdown")
	flags.String("server.auth.mode", defaults.Auth.Mode, "Ops API authentication (none, token)")
	flags.String("server.auth.token", "", "Bearer token for token auth mode")
}
