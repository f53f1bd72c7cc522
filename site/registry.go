package site

import (
	"fmt"
	"sort"
)

type Registry struct {
	defs map[string]Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry holds the variants compiled into the binary.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(Wikipedia{})
	return r
}

// Register adds def, replacing any variant with the same name.
func (r *Registry) Register(def Definition) error {
	if err := Validate(def); err != nil {
		return err
	}
	r.defs[def.Name()] = def
	return nil
}

func (r *Registry) Lookup(name string) (Definition, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, &ConfigurationError{
			Site:  name,
			Field: "Lookup",
			Err:   fmt.Errorf("unknown site, have %v", r.Names()),
		}
	}
	return def, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
