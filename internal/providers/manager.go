// Package providers builds the configured analytics adapters and wires
// them onto the bus.
package providers

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/EchoPBX/trackbus-gateway/internal/config"
	"github.com/EchoPBX/trackbus-gateway/internal/events"
	"github.com/EchoPBX/trackbus-gateway/internal/providers/gst"
	"github.com/EchoPBX/trackbus-gateway/internal/providers/logtap"
	"github.com/EchoPBX/trackbus-gateway/internal/settings"
	"github.com/EchoPBX/trackbus-gateway/pkg/sdk"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrUnknownProvider = errors.New("providers: unknown provider")

// Env holds the backend primitives shared by all providers. Either may
// be nil.
type Env struct {
	Sender     sdk.Sender
	Discoverer settings.Discoverer
}

// Factory builds one provider from its raw settings.
type Factory func(log *zap.Logger, raw map[string]any, env Env) (sdk.Adapter, error)

// Builtin returns the providers compiled into the gateway.
func Builtin() map[string]Factory {
	return map[string]Factory{
		gst.Name: func(log *zap.Logger, raw map[string]any, env Env) (sdk.Adapter, error) {
			return gst.New(log, raw, env.Sender, env.Discoverer)
		},
		logtap.Name: func(log *zap.Logger, raw map[string]any, _ Env) (sdk.Adapter, error) {
			return logtap.New(log, raw)
		},
	}
}

// Manager owns the running adapters.
type Manager struct {
	log       *zap.Logger
	bus       sdk.Bus
	env       Env
	factories map[string]Factory

	devMode  atomic.Bool
	excludes atomic.Pointer[[]string]

	mu       sync.RWMutex
	adapters map[string]sdk.Adapter
}

func NewManager(log *zap.Logger, bus sdk.Bus, env Env, factories map[string]Factory) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		log:       log,
		bus:       bus,
		env:       env,
		factories: factories,
		adapters:  make(map[string]sdk.Adapter),
	}
	m.excludes.Store(&[]string{})
	return m
}

// Filter is the filter every provider subscription goes through:
// developer mode first, then excluded paths.
func (m *Manager) Filter() sdk.Filter {
	return events.All(
		events.DeveloperMode(m.devMode.Load),
		func(ev sdk.Event) (bool, error) {
			return events.ExcludePaths(*m.excludes.Load()...)(ev)
		},
	)
}

func (m *Manager) SetDeveloperMode(on bool) { m.devMode.Store(on) }
func (m *Manager) DeveloperMode() bool      { return m.devMode.Load() }

// Apply updates the filter settings. Running subscriptions are kept.
func (m *Manager) Apply(cfg config.Analytics) {
	m.SetDeveloperMode(cfg.DeveloperMode)
	ex := slices.Clone(cfg.ExcludePaths)
	m.excludes.Store(&ex)
}

// Start builds and starts every configured provider that is not running
// yet. A provider that fails is logged and skipped; the others still start.
func (m *Manager) Start(cfg config.Analytics) error {
	m.Apply(cfg)

	var errs error
	for _, name := range slices.Sorted(maps.Keys(cfg.Providers)) {
		if err := m.start(name, cfg.Providers[name]); err != nil {
			m.log.Error("failed to start provider", zap.String("name", name), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (m *Manager) start(name string, raw map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.adapters[name]; running {
		return nil
	}
	factory, ok := m.factories[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}

	log := m.log.With(zap.String("provider", name))
	a, err := factory(log, raw, m.env)
	if err != nil {
		return err
	}
	if err := a.StartTracking(newProviderContext(log, m.bus, m.Filter())); err != nil {
		return err
	}
	m.adapters[name] = a
	m.log.Info("provider started", zap.String("name", name))
	return nil
}

// Names lists the running providers.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.adapters))
}

// Shutdown stops every provider, cancelling its subscriptions.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, a := range m.adapters {
		if err := a.Stop(); err != nil {
			m.log.Warn("provider stop failed", zap.String("name", name), zap.Error(err))
		}
	}
	m.adapters = make(map[string]sdk.Adapter)
}
