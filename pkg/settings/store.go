package settings

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cast"
	yamlv3 "gopkg.in/yaml.v3"
)

// Snapshot is an immutable point-in-time view of the settings.
type Snapshot struct {
	Settings  Settings
	Revision  int64
	LoadedAt  time.Time
	UpdatedAt time.Time

	view *koanf.Koanf
}

// Get returns the value at the dotted key, or fallback when it is unset.
func (s Snapshot) Get(key string, fallback any) any {
	if s.view == nil || !s.view.Exists(key) {
		return fallback
	}
	return s.view.Get(key)
}

// secretKeys are masked by Redacted.
var secretKeys = []string{"integrations.llm.api_key"}

// Redacted returns the settings as a nested map keyed like the settings file,
// with credentials masked.
func (s Snapshot) Redacted() map[string]any {
	if s.view == nil {
		return map[string]any{}
	}
	k := s.view.Copy()
	for _, key := range secretKeys {
		if k.String(key) != "" {
			_ = k.Set(key, "********")
		}
	}
	return k.Raw()
}

// Watcher is called with the new snapshot after every successful change.
// Watchers run while the store holds its write lock and must not call
// Update or ResetToDefaults synchronously.
type Watcher func(Snapshot) error

// WatcherID identifies a registered watcher for RemoveWatcher.
type WatcherID uint64

type watcherEntry struct {
	id WatcherID
	fn Watcher
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With().Str("component", "settings").Logger()
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store holds the current settings snapshot.
type Store struct {
	persister Persister
	logger    zerolog.Logger
	now       func() time.Time

	writeMu sync.Mutex
	current atomic.Pointer[Snapshot]

	watchMu  sync.RWMutex
	watchers []watcherEntry
	nextID   WatcherID
}

// NewStore returns a store holding the compiled-in defaults. Call Load to
// merge the persisted state. A nil persister keeps settings in memory only.
func NewStore(p Persister, opts ...Option) *Store {
	if p == nil {
		p = nopPersister{}
	}
	s := &Store{
		persister: p,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	def, view, err := build(Defaults(), nil)
	if err != nil {
		// Defaults are compiled in; failing to decode them is a programming error.
		panic(fmt.Sprintf("settings: decode defaults: %v", err))
	}
	s.current.Store(&Snapshot{Settings: def, view: view})
	return s
}

// Load merges persisted overrides over the defaults. Unreadable, undecodable
// or invalid persisted state is logged and the defaults are used instead.
// Watchers are notified with the loaded snapshot.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, view, err := s.readPersisted(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Using default settings")
		next, view, err = build(Defaults(), nil)
		if err != nil {
			return err
		}
	}

	cur := s.current.Load()
	now := s.now()
	snap := &Snapshot{
		Settings:  next,
		Revision:  cur.Revision + 1,
		LoadedAt:  now,
		UpdatedAt: now,
		view:      view,
	}
	s.current.Store(snap)

	s.logger.Info().
		Int64("revision", snap.Revision).
		Str("schema_version", next.SchemaVersion).
		Msg("Settings loaded")

	s.notify(*snap)
	return nil
}

// Reload re-reads the persisted state. Unlike Load, a failure keeps the
// current snapshot and is returned. An unchanged state is a no-op.
func (s *Store) Reload(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, view, err := s.readPersisted(ctx)
	if err != nil {
		return err
	}

	cur := s.current.Load()
	if reflect.DeepEqual(cur.Settings, next) {
		return nil
	}

	snap := &Snapshot{
		Settings:  next,
		Revision:  cur.Revision + 1,
		LoadedAt:  cur.LoadedAt,
		UpdatedAt: s.now(),
		view:      view,
	}
	s.current.Store(snap)

	s.logger.Info().Int64("revision", snap.Revision).Msg("Settings reloaded")
	s.notify(*snap)
	return nil
}

func (s *Store) readPersisted(ctx context.Context) (Settings, *koanf.Koanf, error) {
	overrides, err := s.persister.Load(ctx)
	if err != nil {
		return Settings{}, nil, err
	}
	next, view, err := build(Defaults(), overrides)
	if err != nil {
		return Settings{}, nil, err
	}
	if err := Validate(next); err != nil {
		return Settings{}, nil, err
	}
	return next, view, nil
}

// Snapshot returns the current snapshot. The settings are a deep copy.
func (s *Store) Snapshot() Snapshot {
	snap := *s.current.Load()
	snap.Settings = snap.Settings.Clone()
	return snap
}

// GetAll returns a copy of the current settings.
func (s *Store) GetAll() Settings {
	return s.current.Load().Settings.Clone()
}

// Get returns the value at the dotted key, or fallback when it is unset.
func (s *Store) Get(key string, fallback any) any {
	return s.current.Load().Get(key, fallback)
}

// Float64 returns the value at key coerced to float64.
func (s *Store) Float64(key string, fallback float64) float64 {
	v, err := cast.ToFloat64E(s.Get(key, fallback))
	if err != nil {
		return fallback
	}
	return v
}

// Int returns the value at key coerced to int.
func (s *Store) Int(key string, fallback int) int {
	v, err := cast.ToIntE(s.Get(key, fallback))
	if err != nil {
		return fallback
	}
	return v
}

// Strings returns the value at key coerced to a string slice.
func (s *Store) Strings(key string, fallback []string) []string {
	v, err := cast.ToStringSliceE(s.Get(key, fallback))
	if err != nil {
		return fallback
	}
	return v
}

// Update merges partial into the current settings. Keys may be dotted
// ("queues.tickets.concurrency") or nested maps. The merged settings are
// validated, persisted, swapped in and broadcast to watchers. On any failure
// the current snapshot is unchanged; validation failures are *ValidationError.
func (s *Store) Update(ctx context.Context, partial map[string]any) (Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	next, view, err := build(cur.Settings, partial)
	if err != nil {
		return Snapshot{}, err
	}
	return s.apply(ctx, cur, next, view)
}

// ResetToDefaults replaces the settings with the compiled-in defaults through
// the same validate, persist and notify path as Update.
func (s *Store) ResetToDefaults(ctx context.Context) (Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next, view, err := build(Defaults(), nil)
	if err != nil {
		return Snapshot{}, err
	}
	return s.apply(ctx, s.current.Load(), next, view)
}

func (s *Store) apply(ctx context.Context, cur *Snapshot, next Settings, view *koanf.Koanf) (Snapshot, error) {
	if err := Validate(next); err != nil {
		s.logger.Warn().Err(err).Msg("Rejected settings update")
		return Snapshot{}, err
	}
	if err := s.persister.Save(ctx, next); err != nil {
		return Snapshot{}, fmt.Errorf("persist settings: %w", err)
	}

	snap := &Snapshot{
		Settings:  next,
		Revision:  cur.Revision + 1,
		LoadedAt:  cur.LoadedAt,
		UpdatedAt: s.now(),
		view:      view,
	}
	s.current.Store(snap)

	s.logger.Info().Int64("revision", snap.Revision).Msg("Settings updated")
	s.notify(*snap)

	out := *snap
	out.Settings = out.Settings.Clone()
	return out, nil
}

// AddWatcher registers fn and returns its id.
func (s *Store) AddWatcher(fn Watcher) WatcherID {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.nextID++
	s.watchers = append(s.watchers, watcherEntry{id: s.nextID, fn: fn})
	return s.nextID
}

// RemoveWatcher unregisters a watcher. It reports whether id was registered.
func (s *Store) RemoveWatcher(id WatcherID) bool {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for i, w := range s.watchers {
		if w.id == id {
			s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
			return true
		}
	}
	return false
}

// NotifyWatchers calls every watcher with the current snapshot.
func (s *Store) NotifyWatchers() {
	s.notify(*s.current.Load())
}

func (s *Store) notify(snap Snapshot) {
	s.watchMu.RLock()
	watchers := append([]watcherEntry(nil), s.watchers...)
	s.watchMu.RUnlock()

	for _, w := range watchers {
		view := snap
		view.Settings = snap.Settings.Clone()
		if err := s.callWatcher(w, view); err != nil {
			s.logger.Error().
				Err(err).
				Uint64("watcher", uint64(w.id)).
				Int64("revision", snap.Revision).
				Msg("Settings watcher failed")
		}
	}
}

func (s *Store) callWatcher(w watcherEntry, snap Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("watcher panic: %v", r)
		}
	}()
	return w.fn(snap)
}

// Close drops all watchers.
func (s *Store) Close() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	s.watchers = nil
}

// build layers partial over base and decodes the result. Unknown keys and
// type mismatches come back as a *ValidationError.
func build(base Settings, partial map[string]any) (Settings, *koanf.Koanf, error) {
	baseMap, err := toMap(base)
	if err != nil {
		return Settings{}, nil, err
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(baseMap, ""), nil); err != nil {
		return Settings{}, nil, fmt.Errorf("load base settings: %w", err)
	}
	if len(partial) > 0 {
		if err := k.Load(confmap.Provider(partial, "."), nil); err != nil {
			return Settings{}, nil, &ValidationError{Violations: []Violation{{Rule: "decode", Message: err.Error()}}}
		}
	}

	var out Settings
	conf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}
	if err := k.UnmarshalWithConf("", &out, conf); err != nil {
		return Settings{}, nil, &ValidationError{Violations: []Violation{{Rule: "decode", Message: err.Error()}}}
	}
	return out, k, nil
}

// toMap renders s as the nested map koanf layers over.
func toMap(s Settings) (map[string]any, error) {
	data, err := yamlv3.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	out := map[string]any{}
	if err := yamlv3.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode settings map: %w", err)
	}
	return out, nil
}
