// Package engines builds driver engines from configuration.
//
// Engine types are registered by name with a Factory; configuration names
// the type of each engine instance. The built-in "scripted" type answers
// commands from a keyword table and "dryrun" claims every record.
package engines

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/tabledriver/internal/driver"
)

// Spec configures one engine instance.
type Spec struct {
	// Name is the engine name used in preferences and UseEngine commands.
	Name string `yaml:"name" json:"name"`

	// Type selects the registered factory.
	Type string `yaml:"type" json:"type"`

	// Keywords is a path to a keyword file, relative to the configuration.
	Keywords string `yaml:"keywords,omitempty" json:"keywords,omitempty"`

	// Rules are inline keyword rules, applied after those from Keywords.
	Rules []Rule `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Default is the outcome for commands no rule matches. Empty declines
	// them so the next engine can try.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// Factory constructs an engine from its spec.
type Factory func(spec Spec, env Env) (driver.Engine, error)

// Env carries the services engines may use.
type Env struct {
	Logs  driver.LogService
	LogID string
}

// Registry maintains known engine factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Default returns a registry with the built-in engine types.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister("scripted", NewScriptedFromSpec)
	r.MustRegister("dryrun", NewDryRunFromSpec)
	return r
}

// Register installs an engine factory. Returns an error if the type already
// exists.
func (r *Registry) Register(typ string, factory Factory) error {
	if typ == "" {
		return fmt.Errorf("engines: type is required")
	}
	if factory == nil {
		return fmt.Errorf("engines: factory is required for %s", typ)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typ]; exists {
		return fmt.Errorf("engines: %s already registered", typ)
	}
	r.factories[typ] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(typ string, factory Factory) {
	if err := r.Register(typ, factory); err != nil {
		panic(err)
	}
}

// Has reports whether typ is registered.
func (r *Registry) Has(typ string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[typ]
	return ok
}

// Build constructs the engine described by spec.
func (r *Registry) Build(spec Spec, env Env) (driver.Engine, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("engines: name is required")
	}
	r.mu.RLock()
	factory, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("engines: unknown type %q for engine %s", spec.Type, spec.Name)
	}
	engine, err := factory(spec, env)
	if err != nil {
		return nil, fmt.Errorf("engines: build %s: %w", spec.Name, err)
	}
	return engine, nil
}

// BuildAll constructs every engine in order. Engines built before a
// failure are shut down.
func (r *Registry) BuildAll(specs []Spec, env Env) ([]driver.Engine, error) {
	built := make([]driver.Engine, 0, len(specs))
	for _, spec := range specs {
		e, err := r.Build(spec, env)
		if err != nil {
			for _, b := range built {
				b.Shutdown()
			}
			return nil, err
		}
		built = append(built, e)
	}
	return built, nil
}

// Types returns a sorted list of registered engine types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for typ := range r.factories {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}
