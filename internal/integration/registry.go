package integration

import (
	"sort"
	"strings"
)

// Registry maps provider names to adapters. It is built once at startup and
// read-only afterwards.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		if a == nil {
			continue
		}
		r.adapters[normalizeProvider(a.Provider())] = a
	}
	return r
}

// Lookup resolves a provider name case-insensitively.
func (r *Registry) Lookup(name string) (Adapter, bool) {
	a, ok := r.adapters[normalizeProvider(name)]
	return a, ok
}

// Providers returns the canonical names of all registered adapters.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Provider())
	}
	sort.Strings(names)
	return names
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
