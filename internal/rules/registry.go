package rules

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// builtins is filled by init functions in this package and frozen into a
// Registry on first use.
var builtins []Descriptor

func register(d Descriptor) {
	if d.Source == "" {
		d.Source = "builtin"
	}
	builtins = append(builtins, d)
}

var (
	builtinOnce sync.Once
	builtinReg  *Registry
)

// Builtin returns the process-wide registry of built-in patterns.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		reg, err := NewRegistry(builtins...)
		if err != nil {
			panic(fmt.Errorf("builtin rules: %w", err))
		}
		builtinReg = reg
	})
	return builtinReg
}

// Registry maps pattern ids to descriptors. It is never mutated after
// NewRegistry returns and is safe for concurrent use.
type Registry struct {
	descs []Descriptor
	index map[string]int
}

// NewRegistry validates and freezes a catalog. Ids must be non-empty and
// unique; every descriptor needs a matcher.
func NewRegistry(descs ...Descriptor) (*Registry, error) {
	r := &Registry{
		descs: make([]Descriptor, 0, len(descs)),
		index: make(map[string]int, len(descs)),
	}
	for _, d := range descs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			return nil, fmt.Errorf("rule with empty id (summary %q)", d.Summary)
		}
		if _, dup := r.index[id]; dup {
			return nil, fmt.Errorf("duplicate rule id %q", id)
		}
		if d.Matcher == nil {
			return nil, fmt.Errorf("rule %q has no matcher", id)
		}
		d.ID = id
		r.descs = append(r.descs, d)
	}
	sort.Slice(r.descs, func(i, j int) bool { return r.descs[i].ID < r.descs[j].ID })
	for i, d := range r.descs {
		r.index[d.ID] = i
	}
	return r, nil
}

// With returns a new registry holding r's descriptors plus extra.
func (r *Registry) With(extra ...Descriptor) (*Registry, error) {
	all := make([]Descriptor, 0, len(r.descs)+len(extra))
	all = append(all, r.descs...)
	all = append(all, extra...)
	return NewRegistry(all...)
}

// List returns all descriptors sorted by id.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, len(r.descs))
	copy(out, r.descs)
	return out
}

// IDs returns the sorted pattern ids.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.descs))
	for i, d := range r.descs {
		out[i] = d.ID
	}
	return out
}

// Get returns a descriptor by id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	i, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return Descriptor{}, false
	}
	return r.descs[i], true
}

func (r *Registry) Len() int { return len(r.descs) }
