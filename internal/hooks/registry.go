package hooks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/eddiedunn/moltest/internal/config"
	"github.com/eddiedunn/moltest/pkg/logging"
)

// Factory builds a hook module from its configuration entry.
type Factory func(cfg config.PluginConfig) (interface{}, error)

// Registry maps plugin names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in modules.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("log", func(config.PluginConfig) (interface{}, error) {
		return logHook{}, nil
	})
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Names returns the registered plugin names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load builds a dispatcher from the configured plugins, in order. A plugin
// with a command becomes an ExecHook bounded by its own timeout or
// defaultTimeout. Plugins that cannot be loaded are skipped and reported in
// the returned errors; they never prevent the others from loading.
func (r *Registry) Load(plugins []config.PluginConfig, defaultTimeout time.Duration) (*Dispatcher, []error) {
	d := NewDispatcher()
	var errs []error

	for _, p := range plugins {
		if len(p.Command) > 0 {
			timeout := p.Timeout
			if timeout <= 0 {
				timeout = defaultTimeout
			}
			d.Register(p.Name, NewExecHook(p.Name, p.Command, timeout))
			logging.Debug(logSubsystem, "Loaded exec plugin %s (%v)", p.Name, p.Command)
			continue
		}

		r.mu.RLock()
		factory, ok := r.factories[p.Name]
		r.mu.RUnlock()
		if !ok {
			err := fmt.Errorf("unknown plugin %q", p.Name)
			logging.Warn(logSubsystem, "Failed to load plugin: %v", err)
			errs = append(errs, err)
			continue
		}

		impl, err := factory(p)
		if err != nil {
			err = fmt.Errorf("plugin %q: %w", p.Name, err)
			logging.Warn(logSubsystem, "Failed to load plugin: %v", err)
			errs = append(errs, err)
			continue
		}
		d.Register(p.Name, impl)
		logging.Debug(logSubsystem, "Loaded plugin %s", p.Name)
	}

	return d, errs
}
