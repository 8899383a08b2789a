package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"deepgraph/internal/llm"
)

// ErrNotFound reports resolution of a tool name with no registered handler.
var ErrNotFound = errors.New("tool not found")

// Registry maps tool names to handlers and publishes their schemas. It is
// safe for concurrent use; registration typically happens once at startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t under its declared name. Re-registering a name replaces
// the previous handler.
func (r *Registry) Register(t Tool) {
	name := t.Definition().Name
	r.mu.Lock()
	r.tools[name] = t
	r.mu.Unlock()
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t, nil
}

// Definitions returns the schemas of all registered tools, sorted by name so
// the advertised list is stable across runs.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the registered tool names, sorted.
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
