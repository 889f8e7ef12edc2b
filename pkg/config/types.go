package config

import "time"

// Config is the root bootstrap configuration of a deskpilot process. Runtime
// triage settings live in pkg/settings; this only says where things are and
// how the process is wired.
type Config struct {
	Log       LogConfig       `description:"Logging configuration" koanf:"log" yaml:"log" json:"log"`
	Server    ServerConfig    `description:"Server configuration" koanf:"server" yaml:"server" json:"server"`
	Broker    BrokerConfig    `description:"Job broker configuration" koanf:"broker" yaml:"broker" json:"broker"`
	Settings  SettingsConfig  `description:"Runtime settings persistence" koanf:"settings" yaml:"settings" json:"settings"`
	Knowledge KnowledgeConfig `description:"Knowledge base configuration" koanf:"knowledge" yaml:"knowledge" json:"knowledge"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level" koanf:"level" yaml:"level" json:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" yaml:"format" json:"format" validate:"oneof=text json"`
}

// ServerConfig holds configuration for the deskpilot server runtime.
// Used by 'deskpilot server start'.
type ServerConfig struct {
	Addr string `description:"Ops listen address" koanf:"addr" yaml:"addr" json:"addr" validate:"required"`
	Port int    `description:"Ops listen port" koanf:"port" yaml:"port" json:"port"`

	EventsEnabled bool `description:"Expose the websocket event stream" koanf:"events_enabled" yaml:"events_enabled" json:"events_enabled"`

	ReadTimeout     time.Duration `description:"HTTP read timeout" koanf:"read_timeout" yaml:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `description:"HTTP write timeout" koanf:"write_timeout" yaml:"write_timeout" json:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `description:"Grace period for in-flight jobs on shutdown" koanf:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`

	Auth AuthConfig `description:"Authentication configuration" koanf:"auth" yaml:"auth" json:"auth"`
}

// AuthConfig holds authentication configuration for the ops API.
type AuthConfig struct {
	Mode  string `description:"Authentication mode: none|token" koanf:"mode" yaml:"mode" json:"mode" validate:"oneof=none token"`
	Token string `description:"Static bearer token (required for token mode)" koanf:"token" yaml:"token" json:"-" validate:"required_if=Mode token"`
}

// BrokerConfig selects where jobs are stored.
type BrokerConfig struct {
	Driver string      `description:"Broker driver: memory | redis" koanf:"driver" yaml:"driver" json:"driver" validate:"oneof=memory redis"`
	Redis  RedisConfig `description:"Redis broker" koanf:"redis" yaml:"redis" json:"redis"`
}

// RedisConfig configures the Redis broker.
type RedisConfig struct {
	Addr     string `description:"Redis address" koanf:"addr" yaml:"addr" json:"addr"`
	Password string `description:"Redis password" koanf:"password" yaml:"password" json:"-"`
	DB       int    `description:"Redis database" koanf:"db" yaml:"db" json:"db" validate:"gte=0"`
	Prefix   string `description:"Key prefix" koanf:"prefix" yaml:"prefix" json:"prefix"`
}

// SettingsConfig selects how runtime settings are persisted.
type SettingsConfig struct {
	Backend string `description:"Settings backend: memory | file | sqlite" koanf:"backend" yaml:"backend" json:"backend" validate:"oneof=memory file sqlite"`
	Path    string `description:"Settings file or database path" koanf:"path" yaml:"path" json:"path"`
	Watch   bool   `description:"Reload the settings file when it changes" koanf:"watch" yaml:"watch" json:"watch"`
}

// KnowledgeConfig locates the knowledge base.
type KnowledgeConfig struct {
	ArticlesPath string `description:"YAML articles file (empty uses the built-in set)" koanf:"articles_path" yaml:"articles_path" json:"articles_path"`
}
