package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// Persister stores settings overrides between restarts.
type Persister interface {
	// Load returns the persisted settings as a nested key/value map, or nil
	// when nothing has been persisted yet.
	Load(ctx context.Context) (map[string]any, error)

	// Save replaces the persisted settings with s.
	Save(ctx context.Context, s Settings) error
}

type nopPersister struct{}

func (nopPersister) Load(context.Context) (map[string]any, error) { return nil, nil }
func (nopPersister) Save(context.Context, Settings) error          { return nil }

// FilePersister keeps settings in a YAML file. Writes take an advisory file
// lock so several processes sharing the file never interleave.
type FilePersister struct {
	Path string

	// LockRetry is the delay between lock attempts. Defaults to 50ms.
	LockRetry time.Duration
}

// NewFilePersister returns a FilePersister for path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path, LockRetry: 50 * time.Millisecond}
}

// Load reads the YAML file. A missing file is not an error.
func (p *FilePersister) Load(_ context.Context) (map[string]any, error) {
	if _, err := os.Stat(p.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat settings file %s: %w", p.Path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(p.Path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("read settings file %s: %w", p.Path, err)
	}
	return k.Raw(), nil
}

// Save writes s atomically (temp file + rename) while holding the lock.
func (p *FilePersister) Save(ctx context.Context, s Settings) error {
	data, err := yamlv3.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	retry := p.LockRetry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	lock := flock.New(p.Path + ".lock")
	locked, err := lock.TryLockContext(ctx, retry)
	if err != nil {
		return fmt.Errorf("lock settings file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock settings file: %s is held by another process", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
