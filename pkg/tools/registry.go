package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrToolNotFound is returned by Get for unregistered tool names.
var ErrToolNotFound = errors.New("tool not found")

// Registry manages available tools with thread-safe operations.
type Registry interface {
	Register(def Definition) error
	Get(name string) (*Definition, error)
	List() []Definition
}

// InMemoryRegistry is the default thread-safe Registry.
type InMemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{tools: map[string]Definition{}}
}

func (r *InMemoryRegistry) Register(def Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	if def.Run == nil {
		return errors.Errorf("tool %s has no run function", def.Name)
	}
	r.tools[def.Name] = def
	return nil
}

func (r *InMemoryRegistry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.tools[name]
	if !ok {
		return nil, errors.Wrap(ErrToolNotFound, name)
	}
	// Copy so callers cannot mutate the registered definition.
	cp := def
	return &cp, nil
}

func (r *InMemoryRegistry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var _ Registry = (*InMemoryRegistry)(nil)
