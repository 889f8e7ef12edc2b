package settings

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNewFileWatcher(t *testing.T) {
	store := NewStore(nil)
	w, err := NewFileWatcher(filepath.Join(t.TempDir(), "settings.yaml"), store, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 100*time.Millisecond, w.debounceDelay)
	require.NoError(t, w.Close())
}

func TestFileWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("auto_resolve_threshold: 0.85\n"), 0o644))

	store := NewStore(NewFilePersister(path))
	require.NoError(t, store.Load(context.Background()))

	w, err := NewFileWatcher(path, store, zerolog.Nop())
	require.NoError(t, err)
	w.debounceDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- w.Start(ctx) }()

	// Wait for watcher to initialize
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("auto_resolve_threshold: 0.95\n"), 0o644))

	require.Eventually(t, func() bool {
		return store.GetAll().AutoResolveThreshold == 0.95
	}, 2*time.Second, 20*time.Millisecond)

	// An invalid edit is ignored and the last good snapshot stays.
	require.NoError(t, os.WriteFile(path, []byte("auto_resolve_threshold: 4\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 0.95, store.GetAll().AutoResolveThreshold)

	cancel()
	select {
	case err := <-errChan:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Watcher did not stop in time")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	reloads := make(chan struct{}, 10)
	w, err := NewFileWatcher(path, reloaderFunc(func(context.Context) error {
		reloads <- struct{}{}
		return nil
	}), zerolog.Nop())
	require.NoError(t, err)
	w.debounceDelay = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0o644))

	select {
	case <-reloads:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(150 * time.Millisecond):
	}
}

type reloaderFunc func(context.Context) error

func (f reloaderFunc) Reload(ctx context.Context) error { return f(ctx) }
