package template

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// ErrNotFound is returned by [Registry.Get] for an unknown template ID.
var ErrNotFound = errors.New("template: not found")

// Registry is an immutable catalog of templates.
type Registry struct {
	byID    map[string]Definition
	ordered []Definition // by priority, then ID
	def     Definition
}

// NewRegistry validates defs and builds a Registry.
//
// Rules, on top of [Validate] for each definition:
//   - IDs are unique.
//   - At least one definition has no keywords. Among those, the one with the
//     highest priority value (the least preferred) is the default.
func NewRegistry(defs []Definition) (*Registry, error) {
	var errs []error
	r := &Registry{byID: make(map[string]Definition, len(defs))}

	for i, d := range defs {
		if err := Validate(d); err != nil {
			errs = append(errs, fmt.Errorf("templates[%d] (%s): %w", i, d.ID, err))
			continue
		}
		if _, dup := r.byID[d.ID]; dup {
			errs = append(errs, fmt.Errorf("templates[%d]: duplicate id %q", i, d.ID))
			continue
		}
		d = clone(d)
		r.byID[d.ID] = d
		r.ordered = append(r.ordered, d)
	}

	slices.SortFunc(r.ordered, byPriority)

	found := false
	for _, d := range r.ordered {
		if len(d.Keywords) == 0 {
			r.def = d
			found = true
		}
	}
	if !found && len(errs) == 0 {
		errs = append(errs, errors.New("no default template: at least one template must have no keywords"))
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (Definition, error) {
	d, ok := r.byID[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return d, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// Default returns the fallback template.
func (r *Registry) Default() Definition { return r.def }

// All returns every definition ordered by priority, then ID.
func (r *Registry) All() []Definition {
	return slices.Clone(r.ordered)
}

// Len returns the number of templates.
func (r *Registry) Len() int { return len(r.ordered) }

func byPriority(a, b Definition) int {
	if c := cmp.Compare(a.Priority, b.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// clone copies the slices of d so callers cannot mutate registry state
// through the slice they passed in.
func clone(d Definition) Definition {
	d.Keywords = slices.Clone(d.Keywords)
	d.Fields = slices.Clone(d.Fields)
	return d
}
