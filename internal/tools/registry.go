package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"turnstile/internal/gate"
	"turnstile/internal/router"
	"turnstile/internal/types"
)

// Registry holds the available capabilities. It is thread-safe and keeps
// registration order, which is the order the router sees targets in.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Builtin returns a registry preloaded with the built-in capabilities.
func Builtin() *Registry {
	r := NewRegistry()
	r.MustRegister(Echo())
	r.MustRegister(ReadFile())
	r.MustRegister(WebFetch())
	return r
}

// Register adds a capability. Names must be unique within the registry.
func (r *Registry) Register(t *Tool) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister registers a capability and panics on error. Use for static
// registration at startup.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(fmt.Sprintf("failed to register tool %s: %v", t.Name, err))
	}
}

// Get returns a capability by name, or nil if not registered.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Has reports whether a capability with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// List returns all capabilities in registration order.
func (r *Registry) List() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Targets emits routing targets in registration order.
func (r *Registry) Targets() []router.Target {
	r.mu.RLock()
	defer r.mu.RUnlock()

	targets := make([]router.Target, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		targets = append(targets, router.Target{
			Name:        t.Name,
			Kind:        router.KindTool,
			Description: t.Description,
			Hints:       append([]string(nil), t.Hints...),
		})
	}
	return targets
}

// Invoke runs a named capability behind the gate. Authorization happens
// before the capability body: on denial the execute function is never
// entered and the gate's error comes back unchanged. A capability that runs
// and fails is not an invocation error; the failure is carried in the
// result's status and metadata.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string, g *gate.Gate) (types.ToolResult, error) {
	t := r.Get(name)
	if t == nil {
		return types.ToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if err := g.Authorize(t.Name, t.Permissions); err != nil {
		return types.ToolResult{}, err
	}

	start := time.Now()
	output, err := t.Execute(ctx, args)

	meta := map[string]any{
		"duration_ms":         time.Since(start).Milliseconds(),
		"checked_permissions": permissionNames(t.Permissions),
	}
	if err != nil {
		meta["error_message"] = err.Error()
		return types.ToolResult{Tool: t.Name, Status: types.StatusError, Metadata: meta}, nil
	}
	return types.ToolResult{Tool: t.Name, Output: output, Status: types.StatusOK, Metadata: meta}, nil
}

// InvokeAll runs several capabilities concurrently and returns their results
// in input order. Any invocation-level failure (unknown name, denial) aborts
// the batch.
func (r *Registry) InvokeAll(ctx context.Context, names []string, args map[string]string, g *gate.Gate) ([]types.ToolResult, error) {
	results := make([]types.ToolResult, len(names))
	grp, ctx := errgroup.WithContext(ctx)

	for i, name := range names {
		grp.Go(func() error {
			res, err := r.Invoke(ctx, name, args, g)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func permissionNames(perms []types.Permission) []string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}
	return names
}
