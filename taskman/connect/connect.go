// Package connect owns the application's single storage connection.
//
// A Manager lazily builds a storage.Handle for the selected configuration
// and memoizes it. Concurrent callers share one in-flight build. Selecting
// another configuration invalidates the memoized handle before Select
// returns; a build that was started for the old selection is closed instead
// of being published.
package connect

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/arthur-debert/taskman/internal/logger"
	"github.com/arthur-debert/taskman/internal/metrics"
	"github.com/arthur-debert/taskman/taskman/backend"
	"github.com/arthur-debert/taskman/taskman/schema"
	"github.com/arthur-debert/taskman/taskman/settings"
	"github.com/arthur-debert/taskman/taskman/storage"
)

// State is the lifecycle state of a Manager
type State int

const (
	Uninitialized State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "uninitialized"
	}
}

// Notifier receives connection failures, for display to the user
type Notifier interface {
	Notify(err error)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(err error)

// Notify calls f(err)
func (f NotifierFunc) Notify(err error) {
	f(err)
}

var errSuperseded = errors.New("connection superseded by a new selection")

// Manager builds and memoizes the connection to the selected storage
type Manager struct {
	settings *settings.Store
	factory  *backend.Factory
	schema   *schema.KeySchema
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	notifier Notifier

	group singleflight.Group

	// saveSelection persists a new selection; replaced in tests
	saveSelection func(id string) error

	mu         sync.Mutex
	switched   *sync.Cond // signalled when a selection change ends
	switching  int
	generation uint64
	handle     *storage.Handle
	building   bool
	seeded     bool
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager logger
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records connection metrics and passes m to every handle
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithNotifier reports connection failures to n
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// NewManager creates a manager reading configurations from cfgs, opening
// backends with factory and attaching s to every handle
func NewManager(cfgs *settings.Store, factory *backend.Factory, s *schema.KeySchema, opts ...Option) *Manager {
	m := &Manager{
		settings: cfgs,
		factory:  factory,
		schema:   s,
		logger:   logger.Nop(),
	}
	m.switched = sync.NewCond(&m.mu)
	m.saveSelection = cfgs.Select
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Settings returns the configuration store
func (m *Manager) Settings() *settings.Store {
	return m.settings
}

// State reports whether a handle is memoized or being built
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.handle != nil:
		return Connected
	case m.building:
		return Connecting
	default:
		return Uninitialized
	}
}

// Connect returns the handle for the selected configuration, building it on
// first use. Failures are returned and also sent to the Notifier; they are
// not memoized, so the next call tries again. Calls made while the
// selection is changing wait for the change to finish.
func (m *Manager) Connect(ctx context.Context) (*storage.Handle, error) {
	for {
		m.mu.Lock()
		for m.switching > 0 {
			m.switched.Wait()
		}
		if m.handle != nil {
			h := m.handle
			m.mu.Unlock()
			return h, nil
		}
		gen := m.generation
		m.building = true
		m.mu.Unlock()

		// The build is shared, so it must not die with the first caller's context.
		buildCtx := context.WithoutCancel(ctx)
		v, err, _ := m.group.Do(strconv.FormatUint(gen, 10), func() (any, error) {
			return m.build(buildCtx, gen)
		})
		if errors.Is(err, errSuperseded) {
			continue
		}
		if err != nil {
			m.mu.Lock()
			if m.generation == gen {
				m.building = false
			}
			m.mu.Unlock()
			return nil, err
		}
		return v.(*storage.Handle), nil
	}
}

func (m *Manager) build(ctx context.Context, gen uint64) (*storage.Handle, error) {
	h, err := m.open(ctx)
	if err != nil {
		m.metrics.RecordConnect(err)
		m.logger.Error().Err(err).Msg("failed to connect to storage")
		if m.notifier != nil {
			m.notifier.Notify(err)
		}
		return nil, err
	}

	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		m.logger.Debug().Str("storage", h.Name()).Msg("discarding connection built for a previous selection")
		_ = h.Close()
		return nil, errSuperseded
	}
	m.handle = h
	m.building = false
	m.mu.Unlock()

	m.metrics.RecordConnect(nil)
	m.logger.Info().Str("storage", h.Name()).Msg("connected to storage")
	return h, nil
}

func (m *Manager) open(ctx context.Context) (*storage.Handle, error) {
	if err := m.bootstrap(ctx); err != nil {
		return nil, err
	}

	id, err := m.settings.Selected()
	if err != nil {
		return nil, err
	}
	cfg, err := m.settings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	desc, err := cfg.Descriptor()
	if err != nil {
		return nil, err
	}

	b, err := m.factory.Open(ctx, desc)
	if err != nil {
		return nil, err
	}

	name := cfg.ApplicationName
	if name == "" {
		name = backend.Describe(desc)
	}
	m.logger.Debug().Str("id", id).Str("storage", name).Msg("using storage")

	return storage.NewHandle(b, m.schema,
		storage.WithName(name),
		storage.WithLogger(m.logger),
		storage.WithMetrics(m.metrics),
	), nil
}

// bootstrap seeds the configuration store once per manager. Concurrent
// builds for different generations share one seeding.
func (m *Manager) bootstrap(ctx context.Context) error {
	m.mu.Lock()
	done := m.seeded
	m.mu.Unlock()
	if done {
		return nil
	}

	_, err, _ := m.group.Do("bootstrap", func() (any, error) {
		if _, err := m.settings.Seed(ctx); err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.seeded = true
		m.mu.Unlock()
		return nil, nil
	})
	return err
}

// Select makes id the selected configuration. The memoized handle is
// dropped before the selection is saved and closed before Select returns,
// so no Connect observes the previous handle once Select has started.
func (m *Manager) Select(id string) error {
	return m.changeSelection(func() (bool, error) {
		if err := m.saveSelection(id); err != nil {
			return false, err
		}
		return true, nil
	})
}

// changeSelection runs change with Connect held off and the memoized handle
// hidden. change reports whether the selection moved; when it did not, the
// hidden handle is put back unless another change started meanwhile.
func (m *Manager) changeSelection(change func() (bool, error)) error {
	m.mu.Lock()
	m.switching++
	m.generation++
	gen := m.generation
	old := m.handle
	m.handle = nil
	m.building = false
	m.mu.Unlock()

	moved, err := change()

	m.mu.Lock()
	m.switching--
	if !moved && m.generation == gen && m.handle == nil {
		m.handle = old
		old = nil
	} else if moved {
		m.generation++
	}
	m.switched.Broadcast()
	m.mu.Unlock()

	if old != nil {
		if cerr := old.Close(); cerr != nil {
			m.logger.Warn().Err(cerr).Str("storage", old.Name()).Msg("failed to close previous storage")
		}
	}
	return err
}

// Invalidate drops the memoized handle so the next Connect rebuilds it
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.generation++
	h := m.handle
	m.handle = nil
	m.building = false
	m.mu.Unlock()

	if h != nil {
		if err := h.Close(); err != nil {
			m.logger.Warn().Err(err).Str("storage", h.Name()).Msg("failed to close previous storage")
		}
	}
}

// Delete removes configuration id, invalidating the connection when the
// selection fell back to the default
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.changeSelection(func() (bool, error) {
		return m.settings.Delete(ctx, id)
	})
}

// Close closes the memoized handle, if any
func (m *Manager) Close() error {
	m.mu.Lock()
	m.generation++
	h := m.handle
	m.handle = nil
	m.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Close()
}
