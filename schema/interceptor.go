package schema

import (
	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
)

// Transform maps a value to or from the shape its layout expects.
type Transform func(value any) (any, error)

// RawWriter writes value directly into buf and returns the bytes consumed.
type RawWriter func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error)

// RawReader reads a value directly from buf.
type RawReader func(buf schemabuf.Buffer, offset uint32) (any, error)

// Interceptor substitutes a transformed representation for values of one
// layout node. Decompose runs before the structural writer, Compose after
// the structural reader. DecomposeIntoBuffer and ComposeFromBuffer replace
// the structural writer and reader entirely.
type Interceptor struct {
	Decompose           Transform
	Compose             Transform
	DecomposeIntoBuffer RawWriter
	ComposeFromBuffer   RawReader
	Members             map[string]MemberInterceptor
}

// MemberInterceptor applies to a single struct member. Symbol renames the
// key used to find the member in runtime values and to store it in
// decoded values.
type MemberInterceptor struct {
	Symbol              string
	Decompose           Transform
	Compose             Transform
	DecomposeIntoBuffer RawWriter
	ComposeFromBuffer   RawReader
}

// Raw reports whether the member bypasses structural encoding.
func (m *MemberInterceptor) Raw() bool {
	return m.DecomposeIntoBuffer != nil || m.ComposeFromBuffer != nil
}

// Raw reports whether the node bypasses structural encoding.
func (ic *Interceptor) Raw() bool {
	return ic.DecomposeIntoBuffer != nil || ic.ComposeFromBuffer != nil
}

// Interceptors is an immutable binding of interceptors to layout nodes.
// A nil *Interceptors is valid and empty.
type Interceptors struct {
	byLayout map[layout.Layout]*Interceptor
}

// NewInterceptors validates and freezes a set of bindings.
func NewInterceptors(bindings map[layout.Layout]Interceptor) (*Interceptors, error) {
	ic := &Interceptors{byLayout: make(map[layout.Layout]*Interceptor, len(bindings))}
	for l, binding := range bindings {
		if err := validate(l, &binding); err != nil {
			return nil, err
		}
		cp := binding
		if binding.Members != nil {
			cp.Members = make(map[string]MemberInterceptor, len(binding.Members))
			for name, m := range binding.Members {
				cp.Members[name] = m
			}
		}
		ic.byLayout[l] = &cp
	}
	return ic, nil
}

// Lookup returns the interceptor bound to l, or nil.
func (ic *Interceptors) Lookup(l layout.Layout) *Interceptor {
	if ic == nil {
		return nil
	}
	return ic.byLayout[l]
}

// Member returns the member interceptor for name on s, or nil.
func (ic *Interceptors) Member(s *layout.Struct, name string) *MemberInterceptor {
	binding := ic.Lookup(s)
	if binding == nil {
		return nil
	}
	m, ok := binding.Members[name]
	if !ok {
		return nil
	}
	return &m
}

// Symbol returns the runtime key of member name on s.
func (ic *Interceptors) Symbol(s *layout.Struct, name string) string {
	if m := ic.Member(s, name); m != nil && m.Symbol != "" {
		return m.Symbol
	}
	return name
}

// Len returns the number of bound layout nodes.
func (ic *Interceptors) Len() int {
	if ic == nil {
		return 0
	}
	return len(ic.byLayout)
}

func validate(l layout.Layout, binding *Interceptor) error {
	if l == nil {
		return errors.Registration("interceptor", "cannot intercept a nil layout")
	}
	name := l.String()

	if binding.Decompose != nil && binding.DecomposeIntoBuffer != nil {
		return errors.Registration(name, "Decompose and DecomposeIntoBuffer are mutually exclusive")
	}
	if binding.Compose != nil && binding.ComposeFromBuffer != nil {
		return errors.Registration(name, "Compose and ComposeFromBuffer are mutually exclusive")
	}
	if len(binding.Members) == 0 {
		return nil
	}

	s, ok := l.(*layout.Struct)
	if !ok {
		return errors.Registration(name, "member interceptors require a struct layout")
	}
	symbols := make(map[string]string)
	for _, member := range s.AllMembers() {
		symbols[member.Name] = member.Name
	}
	for memberName, m := range binding.Members {
		member, ok := s.Member(memberName)
		if !ok {
			return errors.Registration(name, "no member %q to intercept", memberName)
		}
		if m.Decompose != nil && m.DecomposeIntoBuffer != nil {
			return errors.Registration(name, "member %q: Decompose and DecomposeIntoBuffer are mutually exclusive", memberName)
		}
		if m.Compose != nil && m.ComposeFromBuffer != nil {
			return errors.Registration(name, "member %q: Compose and ComposeFromBuffer are mutually exclusive", memberName)
		}
		if member.Pointer && m.Raw() {
			return errors.New(errors.PhaseRegister, errors.KindInvalidLayout).
				Path(name, memberName).
				Detail("pointer member cannot use a raw buffer interceptor").
				Build()
		}
		if m.Symbol != "" {
			symbols[memberName] = m.Symbol
		}
	}

	seen := make(map[string]string, len(symbols))
	for memberName, symbol := range symbols {
		if other, dup := seen[symbol]; dup {
			return errors.Registration(name, "members %q and %q share symbol %q", other, memberName, symbol)
		}
		seen[symbol] = memberName
	}
	return nil
}

// merge folds other into ic. Each hook and member may be set once.
func (ic *Interceptor) merge(name string, other Interceptor) error {
	conflict := func(hook string) error {
		return errors.Registration(name, "%s is already intercepted", hook)
	}
	if other.Decompose != nil {
		if ic.Decompose != nil {
			return conflict("Decompose")
		}
		ic.Decompose = other.Decompose
	}
	if other.Compose != nil {
		if ic.Compose != nil {
			return conflict("Compose")
		}
		ic.Compose = other.Compose
	}
	if other.DecomposeIntoBuffer != nil {
		if ic.DecomposeIntoBuffer != nil {
			return conflict("DecomposeIntoBuffer")
		}
		ic.DecomposeIntoBuffer = other.DecomposeIntoBuffer
	}
	if other.ComposeFromBuffer != nil {
		if ic.ComposeFromBuffer != nil {
			return conflict("ComposeFromBuffer")
		}
		ic.ComposeFromBuffer = other.ComposeFromBuffer
	}
	for memberName, m := range other.Members {
		if ic.Members == nil {
			ic.Members = make(map[string]MemberInterceptor)
		}
		if _, dup := ic.Members[memberName]; dup {
			return conflict("member " + memberName)
		}
		ic.Members[memberName] = m
	}
	return nil
}
