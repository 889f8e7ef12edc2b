package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		wantErr bool
	}{
		{"default", DefaultConfig().HandlerTimeout, false},
		{"disabled", 0, false},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Config{HandlerTimeout: tt.timeout}.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTimeout)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestWithHandlerTimeout_AddsDeadline(t *testing.T) {
	ctx, cancel := Config{HandlerTimeout: time.Minute}.WithHandlerTimeout(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	require.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}

func TestWithHandlerTimeout_KeepsCallerDeadline(t *testing.T) {
	parent, cancelParent := context.WithTimeout(context.Background(), time.Second)
	defer cancelParent()
	want, _ := parent.Deadline()

	ctx, cancel := Config{HandlerTimeout: time.Hour}.WithHandlerTimeout(parent)
	defer cancel()

	got, ok := ctx.Deadline()
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestWithHandlerTimeout_Disabled(t *testing.T) {
	ctx, cancel := Config{}.WithHandlerTimeout(context.Background())
	defer cancel()

	_, ok := ctx.Deadline()
	require.False(t, ok)
}
