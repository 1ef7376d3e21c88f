package tool

import (
	"sort"
	"sync"

	"github.com/felixgeelhaar/hdlplay/internal/errors"
)

// Registry maps tool identifiers to implementations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewEmptyRegistry creates a registry with no tools.
func NewEmptyRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool under name. Registering the same name twice is an
// error.
func (r *Registry) Register(name string, t Tool) error {
	if name == "" {
		return errors.New(errors.ErrCodeToolNotConfigured, "tool name is required")
	}
	if t == nil {
		return errors.New(errors.ErrCodeToolNotConfigured, "tool "+name+" has no implementation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return errors.New(errors.ErrCodeToolDuplicate, "tool "+name+" is already registered")
	}
	r.tools[name] = t
	return nil
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered identifiers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
