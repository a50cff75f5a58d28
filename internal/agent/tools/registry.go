package tools

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateTool = errors.New("tool already registered")
	ErrEmptyToolName = errors.New("tool name is empty")
	ErrNilHandler    = errors.New("tool handler is nil")
)

// Registry is the capability table: tool name → {description, schema, handler}.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, failing when the name is already taken
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return ErrEmptyToolName
	}
	if t.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilHandler, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// Get returns the tool registered under name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// Resolve returns the registered subset of the requested names, preserving
// request order. Unknown names are silently dropped: callers may carry stale
// tool lists, and filtering before advertising is cheaper than rejecting the
// whole request. A nil request means "everything".
func (r *Registry) Resolve(names []string) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if names == nil {
		all := make([]Tool, 0, len(r.tools))
		for _, t := range r.tools {
			all = append(all, t)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		return all
	}

	resolved := make([]Tool, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		if t, ok := r.tools[name]; ok {
			resolved = append(resolved, t)
		}
	}
	return resolved
}

// Describe returns descriptors for every registered tool, sorted by name
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
