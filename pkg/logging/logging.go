// Package logging configures zerolog for deskpilot binaries and hands out
// component loggers.
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Output formats accepted by Configure.
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	mu sync.RWMutex
	// logWriter stores the current log writer globally
	logWriter io.Writer = os.Stderr
	format              = FormatText
)

// stdLogWriter is a custom writer that reformats stdlog output to match zerolog's format
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSuffix(string(p), "\n")

	// Example stdlog output: "2025/05/23 14:40:15 server.go:35: message"
	parts := strings.SplitN(message, " ", 4)
	if len(parts) >= 4 {
		stdTime, err := time.Parse("2006/01/02 15:04:05", parts[0]+" "+parts[1])
		if err == nil {
			fileLine := strings.TrimSuffix(parts[2], ":")
			w.logger.Debug().
				Str("file", fileLine).
				Time("time", stdTime).
				Msg(parts[3])
			return len(p), nil
		}
	}

	w.logger.Debug().Msg(message)
	return len(p), nil
}

// init keeps the global logger quiet until a command configures it.
func init() {
	log.Logger = zerolog.New(console(os.Stderr)).With().Timestamp().Logger().Level(zerolog.ErrorLevel)
}

// ConfigureGlobalLogging configures the global logger at levelStr using the
// current format.
func ConfigureGlobalLogging(levelStr string) error {
	mu.RLock()
	f := format
	mu.RUnlock()
	return Configure(levelStr, f)
}

// Configure sets the global logger level and format ("text" or "json").
// Standard library log output is routed through the global logger.
func Configure(levelStr, outputFormat string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	switch outputFormat {
	case "", FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log format %q", outputFormat)
	}

	mu.Lock()
	if outputFormat != "" {
		format = outputFormat
	}
	w := writerLocked()
	mu.Unlock()

	ConfigureGlobal(level)
	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: WithLevelOverride(log.Logger, zerolog.DebugLevel)})
	return nil
}

// ConfigureGlobal sets the process-wide minimum level.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// ParseLevel converts a level name to a zerolog.Level. Empty means info.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}

// NewLogger returns a logger for component writing to the configured writer.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	mu.RLock()
	w := writerLocked()
	mu.RUnlock()
	return NewLoggerWithWriter(component, level, w)
}

// NewLoggerWithWriter returns a JSON logger for component writing to w.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// Component derives a component logger from the global logger.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

func writerLocked() io.Writer {
	if format == FormatJSON {
		return logWriter
	}
	return console(logWriter)
}

func console(w io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
}

// SetLogWriter sets the global log writer
func SetLogWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logWriter = w
}

// LevelOverrideHook provides functionality to override log levels
// and filter logs below a minimum severity level.
type LevelOverrideHook struct {
	minSeverity zerolog.Level // Minimum log level to keep
	targetLevel zerolog.Level // Level to assign to NoLevel events
}

// NewLevelOverrideHook creates a new LevelOverrideHook instance.
func NewLevelOverrideHook(minSeverity, targetLevel zerolog.Level) *LevelOverrideHook {
	return &LevelOverrideHook{
		minSeverity: minSeverity,
		targetLevel: targetLevel,
	}
}

// Run implements zerolog.Hook interface and performs the log level processing.
func (h LevelOverrideHook) Run(e *zerolog.Event, currentLevel zerolog.Level, _ string) {
	if h.minSeverity > h.targetLevel {
		e.Discard()
		return
	}
	if currentLevel == zerolog.NoLevel {
		e.Str("level", h.targetLevel.String())
	}
}

// WithLevelOverride configures a logger to handle NoLevel events and level filtering.
func WithLevelOverride(logger zerolog.Logger, targetLevel zerolog.Level) zerolog.Logger {
	return logger.Hook(NewLevelOverrideHook(logger.GetLevel(), targetLevel))
}
