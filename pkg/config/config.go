// Package config loads the bootstrap configuration of deskpilot binaries
// from layered sources: defaults, a YAML file, DESKPILOT_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/deskpilot/deskpilot/pkg/paths"
	"github.com/deskpilot/deskpilot/pkg/server"
)

// EnvPrefix prefixes every environment variable the env source reads.
const EnvPrefix = "DESKPILOT_"

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager with an empty koanf instance.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: DefaultServerConfig(),
		Broker: BrokerConfig{
			Driver: "memory",
			Redis: RedisConfig{
				Addr:   "127.0.0.1:6379",
				Prefix: "deskpilot",
			},
		},
		Settings: SettingsConfig{
			Backend: "file",
			Path:    DefaultSettingsPath(),
			Watch:   true,
		},
	}
}

// DefaultConfigPath is the config file read when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(paths.ConfigDir(), "config.yaml")
}

// DefaultSettingsPath is where runtime settings are persisted by default.
func DefaultSettingsPath() string {
	return filepath.Join(paths.DataDir(), "settings.yaml")
}

// Load loads configuration from the default sources.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads sources in priority order into a fresh koanf
// instance, then decodes and validates the result. On error the previous
// configuration is kept.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	sorted := append([]ConfigSource(nil), sources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	k := koanf.New(".")
	for _, src := range sorted {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	if err := Validate(newCfg); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.koanfInstance = k
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Koanf returns the merged key space of the last successful load.
func (m *Manager) Koanf() *koanf.Koanf {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and the cross-section ones the tags cannot
// express.
func Validate(cfg Config) error {
	var errs []error
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}
	if p := cfg.Server.Port; p < 1 || p > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %w", server.NewInvalidPortError(p)))
	}
	if cfg.Broker.Driver == "redis" && cfg.Broker.Redis.Addr == "" {
		errs = append(errs, errors.New("broker.redis.addr: required for the redis driver"))
	}
	if cfg.Settings.Backend != "memory" && cfg.Settings.Path == "" {
		errs = append(errs, fmt.Errorf("settings.path: required for the %s backend", cfg.Settings.Backend))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// DefaultConfigAsMap converts the DefaultConfig struct to a flat map for
// koanf's confmap provider so koanf knows every key.
func DefaultConfigAsMap() map[string]any {
	def := DefaultConfig()
	return map[string]any{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"server.addr":             def.Server.Addr,
		"server.port":             def.Server.Port,
		"server.events_enabled":   def.Server.EventsEnabled,
		"server.read_timeout":     def.Server.ReadTimeout,
		"server.write_timeout":    def.Server.WriteTimeout,
		"server.shutdown_timeout": def.Server.ShutdownTimeout,
		"server.auth.mode":        def.Server.Auth.Mode,
		"server.auth.token":       def.Server.Auth.Token,

		"broker.driver":         def.Broker.Driver,
		"broker.redis.addr":     def.Broker.Redis.Addr,
		"broker.redis.password": def.Broker.Redis.Password,
		"broker.redis.db":       def.Broker.Redis.DB,
		"broker.redis.prefix":   def.Broker.Redis.Prefix,

		"settings.backend": def.Settings.Backend,
		"settings.path":    def.Settings.Path,
		"settings.watch":   def.Settings.Watch,

		"knowledge.articles_path": def.Knowledge.ArticlesPath,
	}
}

// BindFlags defines the global flags that override configuration. The
// --config flag itself is defined by the root command.
func BindFlags(flags *pflag.FlagSet) {
	defaults := DefaultConfig()

	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log.level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", defaults.Log.Format, "Log format (text, json)")
	flags.String("broker.driver", defaults.Broker.Driver, "Job broker (memory, redis)")
	flags.String("broker.redis.addr", defaults.Broker.Redis.Addr, "Redis address for the redis broker")
	flags.String("settings.backend", defaults.Settings.Backend, "Settings persistence (memory, file, sqlite)")
	flags.String("settings.path", defaults.Settings.Path, "Settings file or database path")
	flags.String("knowledge.articles_path", "", "Knowledge base articles file (YAML)")
}
