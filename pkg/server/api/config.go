package api

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for configuration validation
var (
	// ErrInvalidTimeout is returned when a timeout value is invalid (negative).
	ErrInvalidTimeout = errors.New("invalid timeout: must be >= 0")
)

// Config holds API-level configuration.
type Config struct {
	// HandlerTimeout is the maximum duration for an API handler to complete.
	// If a handler exceeds this timeout, it will return HTTP 504 Gateway Timeout.
	//
	// This timeout is applied only if the request context doesn't already
	// have a deadline.
	//
	// Default: 30 seconds
	HandlerTimeout time.Duration
}

// DefaultConfig returns the default API configuration with sensible timeout values.
//
// A request context that already carries a deadline keeps it.
func DefaultConfig() Config {
	return Config{
		HandlerTimeout: 30 * time.Second,
	}
}

// Validate checks that the configuration is valid.
// Returns an error if any configuration value is invalid.
func (c Config) Validate() error {
	if c.HandlerTimeout < 0 {
		return ErrInvalidTimeout
	}
	return nil
}

// WithHandlerTimeout derives the handler context from ctx. The returned cancel
// must be called.
func (c Config) WithHandlerTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || c.HandlerTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.HandlerTimeout)
}
