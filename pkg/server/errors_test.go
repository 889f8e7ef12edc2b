package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithErrorCode(t *testing.T) {
	require.Nil(t, WithErrorCode(nil, "X"))

	base := errors.New("base")
	wrapped := WithErrorCode(base, "CODE123")
	require.Equal(t, "CODE123", wrapped.(*withCodeError).Code())
	require.ErrorIs(t, wrapped, base)
	require.Equal(t, "base", wrapped.Error())
}

func TestNewInvalidPortError(t *testing.T) {
	err := NewInvalidPortError(99999)
	require.ErrorIs(t, err, ErrInvalidPort)
	require.Equal(t, "invalid port 99999: must be between 1 and 65535", err.Error())
	require.Equal(t, errorCodeInvalidPort, ErrorCode(err))
}

func TestWrappers_NilPassThrough(t *testing.T) {
	for _, wrap := range []func(error) error{
		WrapInvalidConfig, WrapConfigLoad, WrapBrokerInit, WrapSettingsInit, WrapEngineInit, WrapAppInit, WrapRuntime,
	} {
		require.Nil(t, wrap(nil))
	}
}

func TestErrorCode_ExitCode(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"invalid port", NewInvalidPortError(0), errorCodeInvalidPort, 2},
		{"bare invalid port", fmt.Errorf("flag: %w", ErrInvalidPort), errorCodeInvalidPort, 2},
		{"config unavailable", ErrConfigUnavailable, errorCodeConfigUnavailable, 1},
		{"invalid config", WrapInvalidConfig(cause), errorCodeInvalidConfig, 2},
		{"config load", WrapConfigLoad(cause), errorCodeInvalidConfig, 2},
		{"broker", WrapBrokerInit(cause), errorCodeBrokerInitFailed, 7},
		{"settings", WrapSettingsInit(cause), errorCodeSettingsInitFailed, 7},
		{"engine", WrapEngineInit(cause), errorCodeEngineInitFailed, 7},
		{"app init", WrapAppInit(cause), errorCodeAppInitFailed, 7},
		{"runtime", WrapRuntime(cause), errorCodeRuntimeFailed, 1},
		{"uncoded", cause, errorCodeRuntimeFailed, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.code, ErrorCode(tt.err))
			require.Equal(t, tt.exit, ExitCode(tt.err))
			require.NotEmpty(t, Suggestions(tt.err))
		})
	}
}

func TestNilError(t *testing.T) {
	require.Equal(t, "", ErrorCode(nil))
	require.Equal(t, 0, ExitCode(nil))
	require.Nil(t, Suggestions(nil))
}

func TestErrorCode_OuterCodeWins(t *testing.T) {
	err := WrapAppInit(fmt.Errorf("setup: %w", WrapBrokerInit(errors.New("dial tcp: refused"))))
	require.Equal(t, errorCodeAppInitFailed, ErrorCode(err))
	require.Contains(t, Suggestions(err)[0], "deskpilot server start")
}

func TestSuggestions_InvalidConfig(t *testing.T) {
	s := Suggestions(WrapInvalidConfig(errors.New("bad")))
	require.Len(t, s, 2)
	require.Contains(t, s[0], "DESKPILOT_")
}

func TestWrapConfigLoad_KeepsMessage(t *testing.T) {
	err := WrapConfigLoad(errors.New("invalid configuration: server.port: failed \"max\""))
	require.Equal(t, "invalid configuration: server.port: failed \"max\"", err.Error())
}
