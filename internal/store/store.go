// Package store implements the clipboard service: each user's current clip,
// single-flight copy and paste, permission checks, observers, and
// reconciliation with clips published by other devices.
package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.klb.dev/clipd/internal/clip"
	"go.klb.dev/clipd/internal/dialog"
	"go.klb.dev/clipd/internal/identity"
	"go.klb.dev/clipd/internal/plugin"
)

// Config tunes a Store. Zero durations fall back to the defaults.
type Config struct {
	// ShortWait is how long GetClip waits before showing the dialog.
	ShortWait time.Duration
	// LongWait is how long GetClip keeps waiting once the dialog is shown.
	LongWait time.Duration
	// EventTTL is the lifetime of a published event.
	EventTTL time.Duration
	// PluginName is the registry name of the distributed transport.
	PluginName string
	// Passphrase, when set, seals payloads before they reach the plugin.
	Passphrase string
	// HistorySize is the number of operations kept for dump.
	HistorySize int
}

const (
	DefaultShortWait   = time.Second
	DefaultLongWait    = 5 * time.Minute
	DefaultEventTTL    = 2 * time.Minute
	DefaultHistorySize = 64
)

func (c Config) withDefaults() Config {
	if c.ShortWait <= 0 {
		c.ShortWait = DefaultShortWait
	}
	if c.LongWait <= 0 {
		c.LongWait = DefaultLongWait
	}
	if c.EventTTL <= 0 {
		c.EventTTL = DefaultEventTTL
	}
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	return c
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Store is the clipboard service. It is safe for concurrent use.
type Store struct {
	cfg      Config
	policy   identity.Policy
	dlg      dialog.Dialog
	registry *plugin.Registry
	now      func() time.Time

	// setting and pasting admit one SetClip and one GetClip process-wide.
	setting atomic.Bool
	pasting atomic.Bool
	seq     atomic.Uint64

	mu          sync.Mutex
	clips       map[int32]*clip.Data
	lastApplied map[int32]plugin.Event

	obsMu     sync.RWMutex
	observers map[int32]map[uint64]Observer
	nextObs   uint64

	// plugMu is held for reading across plugin I/O and for writing while
	// the plugin is created or torn down.
	plugMu sync.RWMutex
	plug   plugin.Plugin

	// refreshMu serializes adoption of remote events.
	refreshMu sync.Mutex

	hist *history
}

// New returns a Store with distribution disabled; call SetDistributed to
// enable it.
func New(cfg Config, policy identity.Policy, dlg dialog.Dialog, registry *plugin.Registry, opts ...Option) *Store {
	if dlg == nil {
		dlg = dialog.Headless{}
	}
	if registry == nil {
		registry = plugin.NewRegistry()
	}
	cfg = cfg.withDefaults()
	s := &Store{
		cfg:         cfg,
		policy:      policy,
		dlg:         dlg,
		registry:    registry,
		now:         time.Now,
		clips:       make(map[int32]*clip.Data),
		lastApplied: make(map[int32]plugin.Event),
		observers:   make(map[int32]map[uint64]Observer),
		plug:        plugin.Noop{},
		hist:        newHistory(cfg.HistorySize),
	}
	for _, o := range opts {
		o(s)
	}
	// Peers remember (device, seq) pairs across our restarts.
	s.seq.Store(uint64(s.now().UnixMilli()) << 8)
	return s
}

// SetDistributed creates or tears down the distributed transport.
func (s *Store) SetDistributed(enabled bool) error {
	s.plugMu.Lock()
	defer s.plugMu.Unlock()

	if !enabled {
		if !plugin.IsNoop(s.plug) {
			s.registry.Destroy(s.cfg.PluginName, s.plug)
			slog.Info("distributed clipboard disabled")
		}
		s.plug = plugin.Noop{}
		return nil
	}
	if !plugin.IsNoop(s.plug) {
		return nil
	}
	p, err := plugin.Sealed(s.registry.Create(s.cfg.PluginName), s.cfg.Passphrase)
	if err != nil {
		return err
	}
	s.plug = p
	slog.Info("distributed clipboard enabled", "plugin", s.cfg.PluginName, "active", !plugin.IsNoop(p))
	return nil
}

// Distributed reports whether a working transport is active.
func (s *Store) Distributed() bool {
	s.plugMu.RLock()
	defer s.plugMu.RUnlock()
	return !plugin.IsNoop(s.plug)
}

// Close tears down the transport.
func (s *Store) Close() error {
	return s.SetDistributed(false)
}

// Snapshot returns a copy of user's current clip without any permission
// check. It is meant for privileged in-process consumers.
func (s *Store) Snapshot(user int32) (*clip.Data, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.clips[user]
	if !ok {
		return nil, false
	}
	return d.Clone(), true
}

func (s *Store) current(user int32) *clip.Data {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clips[user]
}

func invalidData() *clip.Data {
	d := clip.NewData()
	d.Invalidate()
	return d
}
