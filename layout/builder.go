package layout

import (
	"github.com/wippyai/schemabuf/errors"
)

// Field declares a member for automatic placement. Variable-size layouts
// always become pointers; Pointer forces indirection for fixed-size ones.
type Field struct {
	Layout  Layout
	Name    string
	Pointer bool
}

// StructOf lays out fields in declaration order. Each member is placed at
// the next offset aligned to its own alignment (4 for pointers).
func StructOf(name string, fields ...Field) (*Struct, error) {
	return InheritOf(nil, name, fields...)
}

// InheritOf lays out fields after the inline footprint of base.
func InheritOf(base *Struct, name string, fields ...Field) (*Struct, error) {
	calc := NewCalculator()

	var cursor uint32
	if base != nil {
		bt, err := calc.Calculate(base)
		if err != nil {
			return nil, err
		}
		cursor = bt.Size
	}

	s := &Struct{Name: name, Inherit: base}
	members, _, err := place(calc, cursor, []string{name}, fields)
	if err != nil {
		return nil, err
	}
	s.Members = members
	return s, nil
}

// Append returns the members of fields placed after cursor. It is used to
// extend a struct declaration with members contributed later.
func Append(cursor uint32, path []string, fields ...Field) ([]Member, uint32, error) {
	return place(NewCalculator(), cursor, path, fields)
}

func place(calc *Calculator, cursor uint32, path []string, fields []Field) ([]Member, uint32, error) {
	members := make([]Member, 0, len(fields))
	for _, f := range fields {
		fieldPath := append(append([]string{}, path...), f.Name)
		if f.Name == "" {
			return nil, 0, errors.InvalidLayout(fieldPath, "field has no name")
		}
		ft, err := calc.Calculate(f.Layout)
		if err != nil {
			if le, ok := err.(*errors.Error); ok {
				return nil, 0, le.WithPath(fieldPath...)
			}
			return nil, 0, err
		}

		pointer := f.Pointer || !ft.HasStride
		align, size := ft.Align, ft.Size
		if pointer {
			align, size = PointerSize, PointerSize
		}

		offset := AlignTo(cursor, align)
		members = append(members, Member{
			Name:    f.Name,
			Layout:  f.Layout,
			Offset:  offset,
			Pointer: pointer,
		})
		cursor = offset + size
	}
	return members, cursor, nil
}

// Must panics if err is non-nil. It is intended for package-level layout
// declarations.
func Must(s *Struct, err error) *Struct {
	if err != nil {
		panic(err)
	}
	return s
}
