package llm

import (
	"fmt"
	"sort"

	"Encyclopedia/internal/ports"
)

// Registry keeps a mapping from backend names to generators.
type Registry struct {
	generators map[string]ports.ContentGenerator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{generators: map[string]ports.ContentGenerator{}}
}

// Register adds or replaces a generator.
func (r *Registry) Register(generator ports.ContentGenerator) {
	if r.generators == nil {
		r.generators = map[string]ports.ContentGenerator{}
	}
	r.generators[generator.Name()] = generator
}

// Resolve returns a generator by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.ContentGenerator, error) {
	if generator, ok := r.generators[name]; ok {
		return generator, nil
	}
	return nil, fmt.Errorf("generator %s is not registered (have %v)", name, r.Names())
}

// Names lists registered backends in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for name := range r.generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
