package skills

import (
	"sort"

	"turnstile/internal/router"
)

// Registry is an immutable snapshot of discovered bundles keyed by name.
// Rebuild it through the loader (or the watcher) when the root changes.
type Registry struct {
	byName map[string]Metadata
	names  []string
}

// NewRegistry builds a snapshot from listed metadata. Duplicate names keep
// the last entry, mirroring map assignment.
func NewRegistry(metas []Metadata) *Registry {
	byName := make(map[string]Metadata, len(metas))
	for _, m := range metas {
		byName[m.Name] = m
	}

	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Registry{byName: byName, names: names}
}

// Get returns the metadata for a name.
func (r *Registry) Get(name string) (Metadata, bool) {
	m, ok := r.byName[name]
	return m, ok
}

// Names returns bundle names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of bundles.
func (r *Registry) Len() int {
	return len(r.names)
}

// Targets emits routing targets in name order.
func (r *Registry) Targets() []router.Target {
	targets := make([]router.Target, 0, len(r.names))
	for _, name := range r.names {
		m := r.byName[name]
		targets = append(targets, router.Target{
			Name:        m.Name,
			Kind:        router.KindSkill,
			Description: m.Description,
			Hints:       append([]string(nil), m.Hints...),
		})
	}
	return targets
}
