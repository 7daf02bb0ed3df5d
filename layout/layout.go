package layout

import (
	"strconv"
	"strings"
)

// Layout is a node of a memory layout declaration.
type Layout interface {
	String() string
	isLayout()
}

// Member is a struct field placed at a fixed byte offset from the start of
// the struct. A pointer member stores a 4-byte absolute address of
// out-of-line data instead of the data itself.
type Member struct {
	Layout  Layout
	Name    string
	Offset  uint32
	Pointer bool
}

// Struct is an ordered set of members. Inherit optionally names a base
// struct whose members logically precede the declared ones. Tag is the
// discriminator used when the struct is an alternative of a Variant.
type Struct struct {
	Inherit *Struct
	Name    string
	Tag     string
	Members []Member
}

// Array is a fixed-length inline sequence.
type Array struct {
	Element Layout
	Length  uint32
}

// Vector is a variable-length sequence prefixed by its 4-byte length.
type Vector struct {
	Element Layout
}

// Enum is a finite ordered value set encoded as a 1-byte index.
// Values must be comparable.
type Enum struct {
	Values []any
}

// Optional wraps a layout with presence information. A nil value is absent.
type Optional struct {
	Element Layout
}

// Variant is a closed list of struct alternatives selected by Tag.
type Variant struct {
	Alternatives []*Struct
}

func (*Struct) isLayout()   {}
func (*Array) isLayout()    {}
func (*Vector) isLayout()   {}
func (*Enum) isLayout()     {}
func (*Optional) isLayout() {}
func (*Variant) isLayout()  {}

func (s *Struct) String() string {
	if s.Name == "" {
		return "struct"
	}
	return "struct " + s.Name
}

func (a *Array) String() string {
	return "array[" + strconv.FormatUint(uint64(a.Length), 10) + "]" + describe(a.Element)
}

func (v *Vector) String() string {
	return "vector<" + describe(v.Element) + ">"
}

func (e *Enum) String() string {
	return "enum(" + strconv.Itoa(len(e.Values)) + ")"
}

func (o *Optional) String() string {
	return "optional<" + describe(o.Element) + ">"
}

func (v *Variant) String() string {
	tags := make([]string, 0, len(v.Alternatives))
	for _, alt := range v.Alternatives {
		if alt == nil {
			tags = append(tags, "nil")
			continue
		}
		tags = append(tags, alt.Tag)
	}
	return "variant(" + strings.Join(tags, "|") + ")"
}

func describe(l Layout) string {
	if l == nil {
		return "nil"
	}
	return l.String()
}

// Chain returns the inheritance chain from the root base to s. It stops
// at the first repeated struct, so a cyclic chain is reported by
// comparing the result against Cyclic.
func (s *Struct) Chain() []*Struct {
	var chain []*Struct
	seen := make(map[*Struct]bool)
	for cur := s; cur != nil && !seen[cur]; cur = cur.Inherit {
		seen[cur] = true
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Cyclic reports whether the inheritance chain of s loops.
func (s *Struct) Cyclic() bool {
	seen := make(map[*Struct]bool)
	for cur := s; cur != nil; cur = cur.Inherit {
		if seen[cur] {
			return true
		}
		seen[cur] = true
	}
	return false
}

// AllMembers returns inherited members followed by declared members.
func (s *Struct) AllMembers() []Member {
	var members []Member
	for _, cur := range s.Chain() {
		members = append(members, cur.Members...)
	}
	return members
}

// Member looks up a member by name across the inheritance chain.
func (s *Struct) Member(name string) (Member, bool) {
	for _, m := range s.AllMembers() {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// WithTag sets the variant discriminator and returns s. It is meant for
// use while declaring layouts, before s is shared.
func (s *Struct) WithTag(tag string) *Struct {
	s.Tag = tag
	return s
}

// Index returns the position of value in the enum, or -1.
func (e *Enum) Index(value any) int {
	for i, v := range e.Values {
		if v == value {
			return i
		}
	}
	return -1
}
