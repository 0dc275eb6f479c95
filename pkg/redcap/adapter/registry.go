package adapter

import (
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/hashicorp-forge/redcap/pkg/redcap/version"
)

// Registry is an immutable, newest-first collection of adapters whose
// version ranges are contiguous and non-overlapping.
type Registry struct {
	adapters []Adapter
	byName   map[string]Adapter
}

// NewRegistry creates a registry from adapters. It fails if names repeat,
// if ranges overlap or leave a gap, or unless exactly the newest adapter is
// open-ended.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	if len(adapters) == 0 {
		return nil, fmt.Errorf("at least one adapter is required")
	}

	sorted := slices.Clone(adapters)
	slices.SortFunc(sorted, func(a, b Adapter) int {
		// Newest first.
		return version.Compare(b.versions.Min, a.versions.Min)
	})

	var result *multierror.Error
	byName := make(map[string]Adapter, len(sorted))
	for i, a := range sorted {
		if a.name == "" {
			result = multierror.Append(result, fmt.Errorf("adapter %d has no name", i))
		} else if _, ok := byName[a.name]; ok {
			result = multierror.Append(result, fmt.Errorf("duplicate adapter name %q", a.name))
		}
		byName[a.name] = a

		if i == 0 {
			if a.versions.Max != nil {
				result = multierror.Append(result,
					fmt.Errorf("newest adapter %q must be open-ended, has %s", a.name, a.versions))
			}
			continue
		}
		newer := sorted[i-1]
		switch {
		case a.versions.Max == nil:
			result = multierror.Append(result,
				fmt.Errorf("adapter %q is open-ended but %q is newer", a.name, newer.name))
		case a.versions.Max.Compare(newer.versions.Min) > 0:
			result = multierror.Append(result,
				fmt.Errorf("adapter %q (%s) overlaps %q (%s)", a.name, a.versions, newer.name, newer.versions))
		case a.versions.Max.Compare(newer.versions.Min) < 0:
			result = multierror.Append(result,
				fmt.Errorf("gap between adapter %q (%s) and %q (%s)", a.name, a.versions, newer.name, newer.versions))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("invalid adapter registry: %w", err)
	}

	return &Registry{adapters: sorted, byName: byName}, nil
}

var defaultRegistry = mustRegistry(V16(), V15(), V14())

func mustRegistry(adapters ...Adapter) *Registry {
	r, err := NewRegistry(adapters...)
	if err != nil {
		panic(err)
	}
	return r
}

// Default returns the registry of every built-in adapter.
func Default() *Registry {
	return defaultRegistry
}

// Select returns the adapter whose range contains v. The second result is
// false when v is outside every registered range.
func (r *Registry) Select(v version.Version) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Supports(v) {
			return a, true
		}
	}
	return Adapter{}, false
}

// IsSupported reports whether some adapter covers v.
func (r *Registry) IsSupported(v version.Version) bool {
	_, ok := r.Select(v)
	return ok
}

// GetByName returns the adapter with the given name.
func (r *Registry) GetByName(name string) (Adapter, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Latest returns the newest, open-ended adapter.
func (r *Registry) Latest() Adapter {
	return r.adapters[0]
}

// All returns the adapters, newest first.
func (r *Registry) All() []Adapter {
	return slices.Clone(r.adapters)
}

// Names returns the adapter names, newest first.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.name)
	}
	return names
}

// MinimumSupported returns the oldest version any adapter accepts.
func (r *Registry) MinimumSupported() version.Version {
	return r.adapters[len(r.adapters)-1].versions.Min
}
