package settings

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Reloader re-reads persisted settings. *Store implements it.
type Reloader interface {
	Reload(ctx context.Context) error
}

// FileWatcher reloads settings when the settings file changes on disk, so
// edits reach running workers without a restart.
type FileWatcher struct {
	path     string
	reloader Reloader

	// watcher is the fsnotify file watcher
	watcher *fsnotify.Watcher

	// debounceDelay coalesces bursts of writes into a single reload
	debounceDelay time.Duration

	logger zerolog.Logger

	// mu protects debounceTimer and ctx
	mu            sync.Mutex
	debounceTimer *time.Timer
	ctx           context.Context
}

// NewFileWatcher creates a watcher for the settings file at path.
// The default debounce delay is 100ms.
func NewFileWatcher(path string, reloader Reloader, logger zerolog.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		path:          path,
		reloader:      reloader,
		watcher:       watcher,
		debounceDelay: 100 * time.Millisecond,
		logger:        logger.With().Str("component", "settings.watcher").Logger(),
	}, nil
}

// Start watches until ctx is cancelled. Run it in its own goroutine.
func (w *FileWatcher) Start(ctx context.Context) error {
	// fsnotify watches directories; atomic renames replace the file inode.
	dir := filepath.Dir(w.path)
	name := filepath.Base(w.path)

	if err := w.watcher.Add(dir); err != nil {
		w.logger.Error().
			Err(err).
			Str("dir", dir).
			Msg("Failed to watch settings directory")
		return err
	}

	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.logger.Info().
		Str("file", w.path).
		Dur("debounce", w.debounceDelay).
		Msg("Started watching settings file")

	defer func() {
		w.mu.Lock()
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
		w.logger.Info().Msg("Stopped watching settings file")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				w.logger.Debug().
					Str("op", event.Op.String()).
					Str("file", event.Name).
					Msg("Detected settings file change")
				w.scheduleReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *FileWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}

	ctx := w.ctx
	w.debounceTimer = time.AfterFunc(w.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := w.reloader.Reload(ctx); err != nil {
			w.logger.Error().
				Err(err).
				Msg("Failed to reload settings, keeping current snapshot")
			return
		}
		w.logger.Debug().Msg("Settings file processed")
	})
}

// Close releases the underlying fsnotify watcher.
func (w *FileWatcher) Close() error {
	return w.watcher.Close()
}
