package strategy

import (
	"sort"
	"sync"

	"github.com/newthinker/backgrid/internal/core"
)

// Info describes a registered strategy.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Defaults    Params `json:"defaults,omitempty"`
}

type entry struct {
	info    Info
	factory Factory
}

// Registry maps strategy names to their factories.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
	}
}

// Register adds a strategy factory under info.Name, replacing any previous one.
func (r *Registry) Register(info Info, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[info.Name] = entry{info: info, factory: factory}
}

// Build resolves name and constructs the strategy from params.
func (r *Registry) Build(name string, params Params) (Strategy, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, core.Errorf(core.ErrUnknownStrategy, "%q is not registered", name)
	}
	if params == nil {
		params = Params{}
	}
	return e.factory(params)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

// List returns all registered strategies sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Info, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e.info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Lookup returns the Info registered under name.
func (r *Registry) Lookup(name string) (Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.info, ok
}
