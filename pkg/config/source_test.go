package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSource_Priority(t *testing.T) {
	src := &DefaultSource{}
	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "defaults", src.Name())
}

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, "text", k.String("log.format"))
	assert.Equal(t, "memory", k.String("broker.driver"))
	assert.Equal(t, "file", k.String("settings.backend"))
}

func TestFileSource_Priority(t *testing.T) {
	src := &FileSource{Path: "/tmp/test.yaml"}
	assert.Equal(t, 20, src.Priority())
	assert.Equal(t, "file:/tmp/test.yaml", src.Name())
}

func TestFileSource_Load_EmptyPath(t *testing.T) {
	k := koanf.New(".")
	src := &FileSource{Path: ""}

	err := src.Load(k)
	require.NoError(t, err, "Empty path should skip silently")
}

func TestFileSource_Load_NonExistentFile(t *testing.T) {
	k := koanf.New(".")

	require.NoError(t, (&FileSource{Path: "/nonexistent/path/config.yaml"}).Load(k),
		"Non-existent optional file should skip silently")
	require.Error(t, (&FileSource{Path: "/nonexistent/path/config.yaml", Required: true}).Load(k))
}

func TestFileSource_Load_ValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
log:
  level: warn
  format: json
server:
  port: 9999
broker:
  driver: redis
  redis:
    addr: redis:6379
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	k := koanf.New(".")
	src := &FileSource{Path: configPath}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "warn", k.String("log.level"))
	assert.Equal(t, "json", k.String("log.format"))
	assert.Equal(t, 9999, k.Int("server.port"))
	assert.Equal(t, "redis:6379", k.String("broker.redis.addr"))
}

func TestEnvSource_Priority(t *testing.T) {
	src := &EnvSource{}
	assert.Equal(t, 30, src.Priority())
	assert.Equal(t, "env", src.Name())
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("DESKPILOT_LOG_LEVEL", "error")
	t.Setenv("DESKPILOT_SERVER_PORT", "8888")
	t.Setenv("DESKPILOT_SERVER_READ__TIMEOUT", "5s")
	t.Setenv("DESKPILOT_BROKER_REDIS_ADDR", "cache:6379")

	k := koanf.New(".")
	src := &EnvSource{Prefix: "DESKPILOT_"}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "error", k.String("log.level"))
	assert.Equal(t, 8888, k.Int("server.port"))
	assert.Equal(t, "5s", k.String("server.read_timeout"))
	assert.Equal(t, "cache:6379", k.String("broker.redis.addr"))
}

func TestEnvSource_Load_DefaultPrefix(t *testing.T) {
	t.Setenv("DESKPILOT_LOG_FORMAT", "json")

	k := koanf.New(".")
	src := &EnvSource{}

	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "json", k.String("log.format"))
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"DESKPILOT_LOG_LEVEL":                "log.level",
		"DESKPILOT_KNOWLEDGE_ARTICLES__PATH": "knowledge.articles_path",
		"DESKPILOT_SERVER_AUTH_TOKEN":        "server.auth.token",
	}
	for in, want := range tests {
		assert.Equal(t, want, EnvKey("DESKPILOT_", in), in)
	}
}

func TestFlagSource_Priority(t *testing.T) {
	src := &FlagSource{}
	assert.Equal(t, 40, src.Priority())
	assert.Equal(t, "flags", src.Name())
}

func TestFlagSource_Load_NilFlags(t *testing.T) {
	k := koanf.New(".")
	src := &FlagSource{Flags: nil}

	err := src.Load(k)
	require.NoError(t, err, "Nil flags should skip silently")
}

func TestFlagSource_Load(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	require.NoError(t, flags.Set("log.level", "debug"))

	k := koanf.New(".")
	src := &FlagSource{Flags: flags}
	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "debug", k.String("log.level"))
}

func TestFlagSource_Load_DebugFlag(t *testing.T) {
	k := koanf.New(".")

	src := &FlagSource{Flags: nil, Debug: true}
	err := src.Load(k)
	require.NoError(t, err)

	assert.Equal(t, "debug", k.String("log.level"))
}

func TestDefaultSources_Order(t *testing.T) {
	sources := DefaultSources("/tmp/config.yaml", nil, false)

	require.Len(t, sources, 4)
	assert.Equal(t, "defaults", sources[0].Name())
	assert.Equal(t, "file:/tmp/config.yaml", sources[1].Name())
	assert.Equal(t, "env", sources[2].Name())
	assert.Equal(t, "flags", sources[3].Name())
}

func TestDefaultSources_DefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	sources := DefaultSources("", nil, false)

	fileSrc, ok := sources[1].(*FileSource)
	require.True(t, ok)
	assert.Equal(t, filepath.Join("/tmp/xdg", "deskpilot", "config.yaml"), fileSrc.Path)
	assert.False(t, fileSrc.Required)
}

func TestDefaultSources_Priorities(t *testing.T) {
	sources := DefaultSources("", nil, false)

	for i := 1; i < len(sources); i++ {
		assert.Greater(t, sources[i].Priority(), sources[i-1].Priority(),
			"Source %s should have higher priority than %s",
			sources[i].Name(), sources[i-1].Name())
	}
}

func TestLoadWithSources_CustomSource(t *testing.T) {
	customSource := &mockConfigSource{
		name:     "custom",
		priority: 25, // Between file (20) and env (30)
		loadFunc: func(k *koanf.Koanf) error {
			return k.Set("log.level", "warn")
		},
	}

	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{
		&DefaultSource{},
		customSource,
		&EnvSource{Prefix: "DESKPILOT_TEST_"},
	})
	require.NoError(t, err)

	assert.Equal(t, "warn", manager.Get().Log.Level)
}

func TestLoadWithSources_PriorityOrdering(t *testing.T) {
	t.Setenv("DESKPILOT_LOG_LEVEL", "error")

	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{
		&EnvSource{Prefix: "DESKPILOT_"}, // priority 30
		&DefaultSource{},                 // priority 10 - loaded first despite order
	})
	require.NoError(t, err)

	assert.Equal(t, "error", manager.Get().Log.Level)
}

func TestLoadWithSources_SourceError(t *testing.T) {
	manager := NewManager()
	err := manager.LoadWithSources([]ConfigSource{
		&DefaultSource{},
		&mockConfigSource{name: "broken", priority: 15, loadFunc: func(*koanf.Koanf) error {
			return os.ErrPermission
		}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Contains(t, err.Error(), "broken")
}

// mockConfigSource is a test helper for custom config sources
type mockConfigSource struct {
	name     string
	priority int
	loadFunc func(k *koanf.Koanf) error
}

func (m *mockConfigSource) Name() string  { return m.name }
func (m *mockConfigSource) Priority() int { return m.priority }
func (m *mockConfigSource) Load(k *koanf.Koanf) error {
	if m.loadFunc != nil {
		return m.loadFunc(k)
	}
	return nil
}
