package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrStageAlreadyRegistered is returned when registering a duplicate stage.
	ErrStageAlreadyRegistered = errors.New("stage already registered")

	// ErrStageNotFound is returned for an unknown stage name or dependency.
	ErrStageNotFound = errors.New("stage not found")

	// ErrDependencyCycle is returned when stage dependencies form a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")
)

// Registry holds the stages a pipeline can run, keyed by name.
//
// The dependency order is computed lazily and cached until the next Register.
type Registry struct {
	mu     sync.RWMutex
	stages map[string]Stage
	names  []string // registration order
	order  []Stage  // cached dependency order, nil when stale
}

// NewRegistry creates an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[string]Stage)}
}

// DefaultRegistry returns a registry holding the built-in stages.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range BuiltinStages() {
		// Built-in names are unique.
		_ = r.Register(s)
	}
	return r
}

// Register adds s. Dependencies may be registered later; they are checked by
// Validate and GetOrdered.
func (r *Registry) Register(s Stage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := s.Name()
	if _, exists := r.stages[name]; exists {
		return fmt.Errorf("%w: %s", ErrStageAlreadyRegistered, name)
	}
	r.stages[name] = s
	r.names = append(r.names, name)
	r.order = nil
	return nil
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stages[name]
	return s, ok
}

// Validate reports the first unknown dependency or cycle.
func (r *Registry) Validate() error {
	_, err := r.GetOrdered()
	return err
}

// GetOrdered returns every stage after the stages it depends on. Independent
// stages keep their registration order.
func (r *Registry) GetOrdered() ([]Stage, error) {
	r.mu.RLock()
	cached := r.order
	r.mu.RUnlock()
	if cached != nil {
		return append([]Stage(nil), cached...), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.order == nil {
		order, err := r.sort()
		if err != nil {
			return nil, err
		}
		r.order = order
	}
	return append([]Stage(nil), r.order...), nil
}

// OfKind returns the stages of kind k in dependency order.
func (r *Registry) OfKind(k Kind) ([]Stage, error) {
	ordered, err := r.GetOrdered()
	if err != nil {
		return nil, err
	}
	var out []Stage
	for _, s := range ordered {
		if s.Kind() == k {
			out = append(out, s)
		}
	}
	return out, nil
}

// sort is a depth-first topological sort over registration order. The caller
// holds the write lock.
func (r *Registry) sort() ([]Stage, error) {
	const (
		unvisited = iota
		visiting
		done
	)
	mark := make(map[string]int, len(r.stages))
	out := make([]Stage, 0, len(r.stages))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch mark[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(append(path, name), " -> "))
		}
		mark[name] = visiting
		path = append(path, name)
		s := r.stages[name]
		for _, dep := range s.Dependencies() {
			if _, ok := r.stages[dep]; !ok {
				return fmt.Errorf("%w: stage %q depends on %q", ErrStageNotFound, name, dep)
			}
			if err := visit(dep); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		mark[name] = done
		out = append(out, s)
		return nil
	}

	for _, name := range r.names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}
