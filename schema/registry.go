package schema

import (
	"slices"
	"sync"

	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
)

type declaration struct {
	inherit string
	fields  []layout.Field
}

// Registry collects struct layouts and interceptors until Build freezes
// it. Safe for concurrent use.
type Registry struct {
	explicit    map[string]*layout.Struct
	declared    map[string]*declaration
	byLayout    map[layout.Layout]*Interceptor
	byName      map[string]*Interceptor
	layoutOrder []layout.Layout
	mu          sync.Mutex
	frozen      bool
}

func NewRegistry() *Registry {
	return &Registry{
		explicit: make(map[string]*layout.Struct),
		declared: make(map[string]*declaration),
		byLayout: make(map[layout.Layout]*Interceptor),
		byName:   make(map[string]*Interceptor),
	}
}

// RegisterStruct registers an explicitly laid out struct under s.Name.
func (r *Registry) RegisterStruct(s *layout.Struct) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(); err != nil {
		return err
	}
	if s == nil || s.Name == "" {
		return errors.Registration("struct", "registered struct must have a name")
	}
	if _, dup := r.explicit[s.Name]; dup {
		return errors.Registration(s.Name, "struct is already registered")
	}
	if _, dup := r.declared[s.Name]; dup {
		return errors.Registration(s.Name, "struct is already declared with automatic layout")
	}
	r.explicit[s.Name] = s
	return nil
}

// DeclareStruct declares an automatically laid out struct. Declaring an
// existing name appends fields after those declared earlier; the inherit
// name must then be empty or match the first declaration.
func (r *Registry) DeclareStruct(name, inherit string, fields ...layout.Field) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(); err != nil {
		return err
	}
	if name == "" {
		return errors.Registration("struct", "declared struct must have a name")
	}
	if _, dup := r.explicit[name]; dup {
		return errors.Registration(name, "struct is registered with an explicit layout")
	}

	decl, ok := r.declared[name]
	if !ok {
		r.declared[name] = &declaration{inherit: inherit, fields: slices.Clone(fields)}
		return nil
	}
	if inherit != "" && inherit != decl.inherit {
		return errors.Registration(name, "conflicting base %q, already inherits %q", inherit, decl.inherit)
	}
	decl.fields = append(decl.fields, fields...)
	return nil
}

// Intercept binds interceptors to a layout node. Repeated calls for the
// same node merge, but each hook and member may only be set once.
func (r *Registry) Intercept(l layout.Layout, ic Interceptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(); err != nil {
		return err
	}
	if l == nil {
		return errors.Registration("interceptor", "cannot intercept a nil layout")
	}
	binding, ok := r.byLayout[l]
	if !ok {
		binding = &Interceptor{}
		r.byLayout[l] = binding
		r.layoutOrder = append(r.layoutOrder, l)
	}
	return binding.merge(l.String(), ic)
}

// InterceptStruct binds interceptors to a named struct, which may not be
// declared yet.
func (r *Registry) InterceptStruct(name string, ic Interceptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(); err != nil {
		return err
	}
	binding, ok := r.byName[name]
	if !ok {
		binding = &Interceptor{}
		r.byName[name] = binding
	}
	return binding.merge(name, ic)
}

func (r *Registry) checkOpen() error {
	if r.frozen {
		return errors.Registration("registry", "registry is frozen after Build")
	}
	return nil
}

// Build resolves every struct, validates layouts and interceptors, and
// freezes the registry. Declarations are resolved in name order so the
// result does not depend on registration order across contributors.
func (r *Registry) Build() (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	res := &resolver{
		registry: r,
		structs:  make(map[string]*layout.Struct, len(r.explicit)+len(r.declared)),
		calc:     layout.NewCalculator(),
	}
	for name, s := range r.explicit {
		res.structs[name] = s
	}

	names := make([]string, 0, len(r.explicit)+len(r.declared))
	for name := range r.explicit {
		names = append(names, name)
	}
	for name := range r.declared {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if _, err := res.resolve(name); err != nil {
			return nil, err
		}
	}
	for _, name := range names {
		if _, err := res.calc.Calculate(res.structs[name]); err != nil {
			if le, ok := err.(*errors.Error); ok {
				return nil, le.WithPath(name)
			}
			return nil, err
		}
	}

	bindings := make(map[layout.Layout]Interceptor, len(r.byLayout)+len(r.byName))
	for _, l := range r.layoutOrder {
		bindings[l] = *r.byLayout[l]
	}
	for name, ic := range r.byName {
		s, ok := res.structs[name]
		if !ok {
			return nil, errors.Registration(name, "intercepted struct is not registered")
		}
		binding := bindings[s]
		if err := binding.merge(name, *ic); err != nil {
			return nil, err
		}
		bindings[s] = binding
	}
	interceptors, err := NewInterceptors(bindings)
	if err != nil {
		return nil, err
	}

	r.frozen = true
	return &Schema{
		structs:      res.structs,
		names:        names,
		interceptors: interceptors,
	}, nil
}

type resolver struct {
	registry *Registry
	structs  map[string]*layout.Struct
	calc     *layout.Calculator
	stack    []string
}

func (res *resolver) resolve(name string) (*layout.Struct, error) {
	if s, ok := res.structs[name]; ok {
		return s, nil
	}
	decl, ok := res.registry.declared[name]
	if !ok {
		return nil, errors.Registration(name, "unknown struct")
	}
	if slices.Contains(res.stack, name) {
		chain := append(slices.Clone(res.stack), name)
		return nil, errors.CyclicDependency(chain)
	}

	res.stack = append(res.stack, name)
	defer func() { res.stack = res.stack[:len(res.stack)-1] }()

	var base *layout.Struct
	if decl.inherit != "" {
		var err error
		base, err = res.resolve(decl.inherit)
		if err != nil {
			return nil, err
		}
	}

	var cursor uint32
	if base != nil {
		traits, err := res.calc.Calculate(base)
		if err != nil {
			return nil, err
		}
		cursor = traits.Size
	}
	members, _, err := layout.Append(cursor, []string{name}, decl.fields...)
	if err != nil {
		return nil, err
	}

	s := &layout.Struct{Name: name, Inherit: base, Members: members}
	res.structs[name] = s
	return s, nil
}

// Schema is the frozen result of a Registry.
type Schema struct {
	structs      map[string]*layout.Struct
	interceptors *Interceptors
	names        []string
}

// Struct returns the struct registered under name.
func (s *Schema) Struct(name string) (*layout.Struct, bool) {
	st, ok := s.structs[name]
	return st, ok
}

// Names returns registered struct names in sorted order.
func (s *Schema) Names() []string {
	return slices.Clone(s.names)
}

// Interceptors returns the bindings built with the schema.
func (s *Schema) Interceptors() *Interceptors {
	return s.interceptors
}
