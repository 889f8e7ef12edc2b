package server

import (
	"errors"
	"fmt"
)

const (
	errorCodeInvalidPort        = "SERVER_INVALID_PORT"
	errorCodeConfigUnavailable  = "SERVER_CONFIG_UNAVAILABLE"
	errorCodeInvalidConfig      = "SERVER_INVALID_CONFIG"
	errorCodeBrokerInitFailed   = "SERVER_BROKER_INIT_FAILED"
	errorCodeSettingsInitFailed = "SERVER_SETTINGS_INIT_FAILED"
	errorCodeEngineInitFailed   = "SERVER_ENGINE_INIT_FAILED"
	errorCodeAppInitFailed      = "SERVER_INIT_FAILED"
	errorCodeRuntimeFailed      = "SERVER_RUNTIME_FAILED"
)

var (
	// ErrInvalidPort indicates an invalid port flag value.
	ErrInvalidPort = errors.New("invalid port")
	// ErrConfigUnavailable indicates the CLI context lacked a config manager.
	ErrConfigUnavailable = errors.New("config manager unavailable")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a server error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// NewInvalidPortError formats an invalid port error with context.
func NewInvalidPortError(port int) error {
	return WithErrorCode(fmt.Errorf("%w %d: must be between 1 and 65535", ErrInvalidPort, port), errorCodeInvalidPort)
}

// WrapInvalidConfig annotates server config validation errors.
func WrapInvalidConfig(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("invalid server configuration: %w", err), errorCodeInvalidConfig)
}

// WrapConfigLoad annotates bootstrap configuration load failures. The
// message is kept as is; config errors already name the bad key.
func WrapConfigLoad(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeInvalidConfig)
}

// WrapBrokerInit annotates job broker connection failures.
func WrapBrokerInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeBrokerInitFailed)
}

// WrapSettingsInit annotates settings load and persistence failures.
func WrapSettingsInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeSettingsInitFailed)
}

// WrapEngineInit annotates knowledge base and engine setup failures.
func WrapEngineInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeEngineInitFailed)
}

// WrapAppInit annotates server app creation failures.
func WrapAppInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeAppInitFailed)
}

// WrapRuntime annotates server runtime failures.
func WrapRuntime(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeRuntimeFailed)
}

// ErrorCode resolves a server error to its error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidPort):
		return errorCodeInvalidPort
	case errors.Is(err, ErrConfigUnavailable):
		return errorCodeConfigUnavailable
	default:
		return errorCodeRuntimeFailed
	}
}

// ExitCode maps server errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	switch ErrorCode(err) {
	case errorCodeInvalidPort, errorCodeInvalidConfig:
		return 2
	case errorCodeBrokerInitFailed,
		errorCodeSettingsInitFailed,
		errorCodeEngineInitFailed,
		errorCodeAppInitFailed:
		return 7
	default:
		return 1
	}
}

// Suggestions provides CLI hints for server errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}

	switch ErrorCode(err) {
	case errorCodeInvalidPort:
		return []string{
			"Use a port between 1 and 65535",
			"Example:                 deskpilot server start --server.port 8080",
		}
	case errorCodeConfigUnavailable:
		return []string{
			"Run via the deskpilot CLI so the config manager initializes",
			"Avoid calling server start from custom scripts without init",
		}
	case errorCodeInvalidConfig:
		return []string{
			"Check configuration values in the config file and DESKPILOT_* variables",
			"Retry with --debug for detailed validation errors",
		}
	case errorCodeBrokerInitFailed:
		return []string{
			"Check that Redis is reachable at broker.redis.addr",
			"Fall back to the in-process broker: deskpilot server start --broker.driver memory",
		}
	case errorCodeSettingsInitFailed:
		return []string{
			"Verify the settings path is readable and holds valid YAML",
			"Inspect the effective settings:  deskpilot settings show",
		}
	case errorCodeEngineInitFailed:
		return []string{
			"Check the articles file set in knowledge.articles_path",
			"Unset knowledge.articles_path to use the built-in articles",
		}
	case errorCodeAppInitFailed:
		return []string{
			"Retry with debug logging: deskpilot server start --debug",
			"Review configuration for invalid values",
		}
	case errorCodeRuntimeFailed:
		return []string{
			"Check server logs for runtime errors",
			"Ensure no other process is using the selected port",
		}
	default:
		return nil
	}
}
