// Package appctx carries process-wide handles on a context.Context.
package appctx

import (
	"context"

	"github.com/deskpilot/deskpilot/pkg/config"
	"github.com/deskpilot/deskpilot/pkg/settings"
)

type key string

const (
	configKey   key = "deskpilot.config.manager"
	storeKey    key = "deskpilot.settings.store"
	snapshotKey key = "deskpilot.settings.snapshot"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// WithStore stores the runtime settings store on context.
func WithStore(ctx context.Context, store *settings.Store) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, storeKey, store)
}

// Store retrieves the runtime settings store from context.
func Store(ctx context.Context) (*settings.Store, bool) {
	if ctx == nil {
		return nil, false
	}
	store, ok := ctx.Value(storeKey).(*settings.Store)
	return store, ok && store != nil
}

// WithSettings pins a settings snapshot for the duration of one pipeline run
// so every step reads the same values.
func WithSettings(ctx context.Context, snap settings.Snapshot) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, snapshotKey, snap)
}

// Settings returns the pinned snapshot's settings, or the defaults when none
// is pinned.
func Settings(ctx context.Context) settings.Settings {
	if ctx != nil {
		if snap, ok := ctx.Value(snapshotKey).(settings.Snapshot); ok {
			return snap.Settings
		}
	}
	return settings.Defaults()
}
