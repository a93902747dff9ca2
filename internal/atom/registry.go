package atom

import (
	"github.com/roach88/catom/internal/atomerr"
	"github.com/roach88/catom/internal/ordmap"
)

// Registry maps type names to Types. Types are listed in name order.
type Registry struct {
	types *ordmap.Map[string, *Type]
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{types: ordmap.NewOrdered[string, *Type]()}
}

// Define builds a Type with NewType and registers it. Nothing is registered
// when NewType fails or the name is taken.
func (r *Registry) Define(name string, opts ...TypeOption) (*Type, error) {
	if r.types.Contains(name) {
		return nil, atomerr.Schema(name, "", "type already defined")
	}
	t, err := NewType(name, opts...)
	if err != nil {
		return nil, err
	}
	r.types.Insert(name, t)
	return t, nil
}

// Register adds an existing Type.
func (r *Registry) Register(t *Type) error {
	if r.types.Contains(t.name) {
		return atomerr.Schema(t.name, "", "type already defined")
	}
	r.types.Insert(t.name, t)
	return nil
}

// Lookup returns the Type called name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	return r.types.Find(name)
}

// Resolve returns the Type called name or a LOOKUP error.
func (r *Registry) Resolve(name string) (*Type, error) {
	t, ok := r.types.Find(name)
	if !ok {
		return nil, atomerr.Lookup(name, "", "type not defined")
	}
	return t, nil
}

// Types returns every Type in name order.
func (r *Registry) Types() []*Type {
	out := make([]*Type, 0, r.types.Len())
	for _, t := range r.types.All() {
		out = append(out, t)
	}
	return out
}

// Len returns the number of registered Types.
func (r *Registry) Len() int {
	return r.types.Len()
}
