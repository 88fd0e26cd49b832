// Package registry holds the declared resource set. It is the in-memory form
// of the configuration document: an explicit object handed to the graph
// builder, plan engine, and apply executor rather than process-wide state.
package registry

import (
	"fmt"
	"sync"

	"github.com/ferrite-io/ferrite/internal/ir"
)

// DuplicateResourceError is returned when a (type, name) pair is registered twice.
type DuplicateResourceError struct {
	Type string
	Name string
}

func (e *DuplicateResourceError) Error() string {
	return fmt.Sprintf("resource %s.%s is already registered", e.Type, e.Name)
}

// UnknownResourceError is returned when a lookup misses.
type UnknownResourceError struct {
	Type string
	Name string
}

func (e *UnknownResourceError) Error() string {
	return fmt.Sprintf("unknown resource %s.%s", e.Type, e.Name)
}

// Registry stores resources in registration order. Order is observable and is
// the tie-breaker for topological sorting, so two runs over the same
// configuration always plan in the same order.
type Registry struct {
	mu        sync.RWMutex
	resources []*ir.Resource
	index     map[string]int

	outputs   map[string]any
	replaceOn map[string][]string
}

func New() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// FromConfig builds a registry from an evaluated configuration.
func FromConfig(cfg *ir.Config) (*Registry, error) {
	r := New()
	for _, res := range cfg.Resources {
		if err := r.Register(res); err != nil {
			return nil, err
		}
	}
	r.outputs = cfg.Outputs
	r.replaceOn = cfg.ReplaceOn
	return r, nil
}

// Register adds a resource. The (type, name) pair must be unique.
func (r *Registry) Register(res *ir.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	addr := res.Addr()
	if _, exists := r.index[addr]; exists {
		return &DuplicateResourceError{Type: res.Type, Name: res.Name}
	}
	r.index[addr] = len(r.resources)
	r.resources = append(r.resources, res)
	return nil
}

// Get returns the resource registered under (type, name).
func (r *Registry) Get(resourceType, name string) (*ir.Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i, ok := r.index[resourceType+"."+name]; ok {
		return r.resources[i], nil
	}
	return nil, &UnknownResourceError{Type: resourceType, Name: name}
}

// Resources returns all resources in registration order.
func (r *Registry) Resources() []*ir.Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ir.Resource, len(r.resources))
	copy(out, r.resources)
	return out
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.resources)
}

// Outputs returns the configuration's declared outputs.
func (r *Registry) Outputs() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.outputs
}

// ReplaceOn returns the user half of the destructive-change policy table:
// extra attributes per kind whose change forces recreation.
func (r *Registry) ReplaceOn(resourceType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.replaceOn[resourceType]
}
