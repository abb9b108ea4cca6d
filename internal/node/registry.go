package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/nodegraph/internal/ir"
)

// Factory builds a node of one kind from its configuration.
type Factory func(config ir.IRObject) (Node, error)

// Registry maps kind names to factories. Graph files name kinds; the
// registry turns them into Nodes.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Registering a kind twice is an error.
func (r *Registry) Register(kind string, f Factory) error {
	if kind == "" {
		return fmt.Errorf("register node kind: empty kind")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf("register node kind %q: already registered", kind)
	}
	r.factories[kind] = f
	return nil
}

// Build creates a node of the given kind.
func (r *Registry) Build(kind string, config ir.IRObject) (Node, error) {
	r.mu.RLock()
	f, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown node kind %q", kind)
	}
	if config == nil {
		config = ir.IRObject{}
	}
	n, err := f(config)
	if err != nil {
		return nil, fmt.Errorf("build %s node: %w", kind, err)
	}
	return n, nil
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
