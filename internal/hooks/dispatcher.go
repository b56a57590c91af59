package hooks

import (
	"fmt"
	"sync"

	"github.com/eddiedunn/moltest/internal/api"
	"github.com/eddiedunn/moltest/pkg/logging"
)

const logSubsystem = "Hooks"

type module struct {
	name string
	impl interface{}
}

// Dispatcher invokes lifecycle callbacks on every registered module in
// registration order. A failing or panicking callback is logged, recorded
// and otherwise ignored: hooks observe a run, they never gate it.
//
// A nil *Dispatcher is valid and dispatches nothing.
type Dispatcher struct {
	modules []module

	mu   sync.Mutex
	errs []*Error
}

// NewDispatcher creates a dispatcher with no modules.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register appends a module. impl may implement any subset of
// BeforeRunHook, BeforeScenarioHook, AfterScenarioHook and AfterRunHook.
// Register must not be called while a run is being dispatched.
func (d *Dispatcher) Register(name string, impl interface{}) {
	if !implementsAny(impl) {
		logging.Debug(logSubsystem, "Module %s implements no recognized hook", name)
	}
	d.modules = append(d.modules, module{name: name, impl: impl})
}

// Modules returns the registered module names in order.
func (d *Dispatcher) Modules() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.modules))
	for i, m := range d.modules {
		names[i] = m.name
	}
	return names
}

// Errors returns the hook failures recorded so far.
func (d *Dispatcher) Errors() []*Error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Error(nil), d.errs...)
}

func (d *Dispatcher) BeforeRun(rc api.RunContext) {
	if d == nil {
		return
	}
	for _, m := range d.modules {
		if h, ok := m.impl.(BeforeRunHook); ok {
			d.invoke(m.name, HookBeforeRun, func() error { return h.BeforeRun(rc) })
		}
	}
}

func (d *Dispatcher) BeforeScenario(runID string) {
	if d == nil {
		return
	}
	for _, m := range d.modules {
		if h, ok := m.impl.(BeforeScenarioHook); ok {
			d.invoke(m.name, HookBeforeScenario, func() error { return h.BeforeScenario(runID) })
		}
	}
}

func (d *Dispatcher) AfterScenario(runID string, status api.Status) {
	if d == nil {
		return
	}
	for _, m := range d.modules {
		if h, ok := m.impl.(AfterScenarioHook); ok {
			d.invoke(m.name, HookAfterScenario, func() error { return h.AfterScenario(runID, status) })
		}
	}
}

// AfterRun hands every module its own copy of outcomes.
func (d *Dispatcher) AfterRun(outcomes []api.Outcome) {
	if d == nil {
		return
	}
	for _, m := range d.modules {
		if h, ok := m.impl.(AfterRunHook); ok {
			snapshot := append([]api.Outcome(nil), outcomes...)
			d.invoke(m.name, HookAfterRun, func() error { return h.AfterRun(snapshot) })
		}
	}
}

func (d *Dispatcher) invoke(moduleName, hook string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}

	herr := &Error{Module: moduleName, Hook: hook, Err: err}
	logging.Warn(logSubsystem, "%v", herr)

	d.mu.Lock()
	d.errs = append(d.errs, herr)
	d.mu.Unlock()
}

func implementsAny(impl interface{}) bool {
	switch impl.(type) {
	case BeforeRunHook, BeforeScenarioHook, AfterScenarioHook, AfterRunHook:
		return true
	default:
		return false
	}
}
