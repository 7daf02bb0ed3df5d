package layout

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wippyai/schemabuf/errors"
)

func TestAlignTo(t *testing.T) {
	tests := []struct {
		address, align, want uint32
	}{
		{0, 4, 0},
		{1, 4, 4},
		{4, 4, 4},
		{5, 4, 8},
		{7, 1, 7},
		{5, 5, 5},
		{6, 5, 10},
		{9, 0, 9},
	}
	for _, tc := range tests {
		if got := AlignTo(tc.address, tc.align); got != tc.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tc.address, tc.align, got, tc.want)
		}
	}
}

func TestCalculateIntegrals(t *testing.T) {
	c := NewCalculator()

	tests := []struct {
		kind      Integral
		align     uint32
		size      uint32
		hasStride bool
	}{
		{Int8, 1, 1, true},
		{Uint8, 1, 1, true},
		{Bool, 1, 1, true},
		{Int16, 2, 2, true},
		{Uint16, 2, 2, true},
		{Int32, 4, 4, true},
		{Uint32, 4, 4, true},
		{String, 4, 4, false},
		{Buffer, 4, 4, false},
	}

	for _, tc := range tests {
		t.Run(tc.kind.String(), func(t *testing.T) {
			traits, err := c.Calculate(tc.kind)
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if traits.Align != tc.align || traits.Size != tc.size {
				t.Errorf("got align=%d size=%d, want %d/%d", traits.Align, traits.Size, tc.align, tc.size)
			}
			if traits.HasStride != tc.hasStride {
				t.Errorf("HasStride = %v, want %v", traits.HasStride, tc.hasStride)
			}
			if tc.hasStride && traits.Stride != tc.size {
				t.Errorf("Stride = %d, want %d", traits.Stride, tc.size)
			}
		})
	}
}

func TestCalculateInvalidIntegral(t *testing.T) {
	_, err := GetTraits(Integral(0))
	if !stderrors.Is(err, errors.ErrInvalidLayout) {
		t.Fatalf("expected InvalidLayout, got %v", err)
	}
	_, err = GetTraits(Integral(200))
	if !stderrors.Is(err, errors.ErrInvalidLayout) {
		t.Fatalf("expected InvalidLayout, got %v", err)
	}
}

func TestParseIntegral(t *testing.T) {
	for _, name := range []string{"int8", "int16", "int32", "uint8", "uint16", "uint32", "bool", "string", "buffer"} {
		k, err := ParseIntegral(name)
		if err != nil {
			t.Fatalf("ParseIntegral(%q): %v", name, err)
		}
		if k.String() != name {
			t.Errorf("round trip %q -> %q", name, k.String())
		}
	}

	_, err := ParseIntegral("float64")
	if !stderrors.Is(err, errors.ErrInvalidLayout) {
		t.Errorf("expected InvalidLayout for float64, got %v", err)
	}
}

func TestCalculateStruct(t *testing.T) {
	c := NewCalculator()

	t.Run("empty", func(t *testing.T) {
		traits, err := c.Calculate(&Struct{Name: "Empty"})
		if err != nil {
			t.Fatal(err)
		}
		if traits.Size != 0 || traits.Align != 1 || !traits.HasStride {
			t.Errorf("got %+v", traits)
		}
	})

	t.Run("position", func(t *testing.T) {
		s := &Struct{Members: []Member{
			{Name: "x", Layout: Int32, Offset: 0},
			{Name: "y", Layout: Int32, Offset: 4},
		}}
		traits, err := c.Calculate(s)
		if err != nil {
			t.Fatal(err)
		}
		want := Traits{Align: 4, Size: 8, Stride: 8, HasStride: true}
		if traits != want {
			t.Errorf("got %+v, want %+v", traits, want)
		}
	})

	t.Run("size_not_monotonic_with_declaration_order", func(t *testing.T) {
		s := &Struct{Members: []Member{
			{Name: "late", Layout: Uint16, Offset: 10},
			{Name: "early", Layout: Uint8, Offset: 0},
		}}
		traits, err := c.Calculate(s)
		if err != nil {
			t.Fatal(err)
		}
		if traits.Size != 12 || traits.Align != 2 {
			t.Errorf("got %+v", traits)
		}
	})

	t.Run("pointer_member_removes_stride", func(t *testing.T) {
		s := &Struct{Members: []Member{
			{Name: "id", Layout: Uint8, Offset: 0},
			{Name: "name", Layout: String, Offset: 4, Pointer: true},
		}}
		traits, err := c.Calculate(s)
		if err != nil {
			t.Fatal(err)
		}
		if traits.HasStride {
			t.Error("struct with pointer member must not have a stride")
		}
		if traits.Align != 4 || traits.Size != 8 {
			t.Errorf("got %+v", traits)
		}
	})

	t.Run("inherited_members_count", func(t *testing.T) {
		base := &Struct{Name: "Base", Members: []Member{{Name: "id", Layout: Uint32, Offset: 0}}}
		derived := &Struct{Name: "Derived", Inherit: base, Members: []Member{{Name: "hits", Layout: Uint16, Offset: 4}}}
		traits, err := c.Calculate(derived)
		if err != nil {
			t.Fatal(err)
		}
		if traits.Size != 6 || traits.Align != 4 {
			t.Errorf("got %+v", traits)
		}
	})

	t.Run("duplicate_member", func(t *testing.T) {
		base := &Struct{Members: []Member{{Name: "id", Layout: Uint32}}}
		derived := &Struct{Inherit: base, Members: []Member{{Name: "id", Layout: Uint32, Offset: 4}}}
		if _, err := c.Calculate(derived); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("expected InvalidLayout, got %v", err)
		}
	})

	t.Run("cyclic_inheritance", func(t *testing.T) {
		a := &Struct{Name: "A"}
		b := &Struct{Name: "B", Inherit: a}
		a.Inherit = b
		if _, err := c.Calculate(a); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("expected InvalidLayout, got %v", err)
		}
	})

	t.Run("nil_member_layout", func(t *testing.T) {
		s := &Struct{Members: []Member{{Name: "x"}}}
		if _, err := c.Calculate(s); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("expected InvalidLayout, got %v", err)
		}
	})
}

func TestCalculateArray(t *testing.T) {
	c := NewCalculator()

	traits, err := c.Calculate(&Array{Length: 3, Element: Uint16})
	if err != nil {
		t.Fatal(err)
	}
	want := Traits{Align: 2, Size: 6, Stride: 6, HasStride: true}
	if traits != want {
		t.Errorf("got %+v, want %+v", traits, want)
	}

	nested, err := c.Calculate(&Array{Length: 2, Element: &Array{Length: 3, Element: Uint8}})
	if err != nil {
		t.Fatal(err)
	}
	if nested.Size != 6 || nested.Stride != 6 {
		t.Errorf("nested array: got %+v", nested)
	}

	optionals, err := c.Calculate(&Array{Length: 2, Element: &Optional{Element: Int32}})
	if err != nil {
		t.Fatal(err)
	}
	if optionals.Size != 13 || optionals.Stride != 13 {
		t.Errorf("array of optionals: got %+v", optionals)
	}

	// the last element keeps its size, so members after the array never overlap it
	padded, err := c.Calculate(&Array{Length: 2, Element: &Optional{Element: Uint16}})
	if err != nil {
		t.Fatal(err)
	}
	if padded.Size != 7 || padded.Stride != 7 {
		t.Errorf("array of padded optionals: got %+v", padded)
	}

	variable, err := c.Calculate(&Array{Length: 2, Element: String})
	if err != nil {
		t.Fatal(err)
	}
	if variable.HasStride {
		t.Error("array of strings must not have a stride")
	}

	if _, err := c.Calculate(&Array{Length: 0, Element: Uint8}); !stderrors.Is(err, errors.ErrInvalidLayout) {
		t.Errorf("zero-length array: expected InvalidLayout, got %v", err)
	}
}

func TestCalculateVector(t *testing.T) {
	traits, err := GetTraits(&Vector{Element: Uint8})
	if err != nil {
		t.Fatal(err)
	}
	want := Traits{Align: 4, Size: 4}
	if traits != want {
		t.Errorf("got %+v, want %+v", traits, want)
	}
}

func TestCalculateEnum(t *testing.T) {
	traits, err := GetTraits(&Enum{Values: []any{"work", "carry", "move"}})
	if err != nil {
		t.Fatal(err)
	}
	if traits != fixed(1) {
		t.Errorf("got %+v", traits)
	}

	invalid := []*Enum{
		{},
		{Values: []any{"a", "a"}},
		{Values: []any{[]int{1}}},
		{Values: []any{nil}},
		{Values: make([]any, 257)},
	}
	for i, e := range invalid {
		if _, err := GetTraits(e); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("case %d: expected InvalidLayout, got %v", i, err)
		}
	}
}

func TestCalculateOptional(t *testing.T) {
	fixedOpt, err := GetTraits(&Optional{Element: Uint8})
	if err != nil {
		t.Fatal(err)
	}
	want := Traits{Align: 1, Size: 2, Stride: 2, HasStride: true}
	if fixedOpt != want {
		t.Errorf("optional<uint8>: got %+v, want %+v", fixedOpt, want)
	}

	wide, err := GetTraits(&Optional{Element: Int32})
	if err != nil {
		t.Fatal(err)
	}
	if wide.Size != 5 || wide.Stride != 8 || wide.Align != 4 {
		t.Errorf("optional<int32>: got %+v", wide)
	}

	dynamic, err := GetTraits(&Optional{Element: String})
	if err != nil {
		t.Fatal(err)
	}
	if dynamic.HasStride || dynamic.Size != 4 || dynamic.Align != 4 {
		t.Errorf("optional<string>: got %+v", dynamic)
	}
}

func TestCalculateVariant(t *testing.T) {
	a := &Struct{Tag: "a", Members: []Member{{Name: "x", Layout: Uint8}}}
	b := &Struct{Tag: "b", Members: []Member{{Name: "y", Layout: Uint32}, {Name: "z", Layout: Uint32, Offset: 4}}}

	traits, err := GetTraits(&Variant{Alternatives: []*Struct{a, b}})
	if err != nil {
		t.Fatal(err)
	}
	if traits.Align != 4 || traits.Size != 12 || traits.HasStride {
		t.Errorf("got %+v", traits)
	}

	invalid := []*Variant{
		{},
		{Alternatives: []*Struct{nil}},
		{Alternatives: []*Struct{{}}},
		{Alternatives: []*Struct{a, a}},
	}
	for i, v := range invalid {
		if _, err := GetTraits(v); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("case %d: expected InvalidLayout, got %v", i, err)
		}
	}
}

func TestCalculateRecursive(t *testing.T) {
	t.Run("through_pointer", func(t *testing.T) {
		node := &Struct{Name: "Node"}
		node.Members = []Member{
			{Name: "value", Layout: Int32},
			{Name: "children", Layout: &Vector{Element: node}, Offset: 4, Pointer: true},
		}
		traits, err := GetTraits(node)
		if err != nil {
			t.Fatal(err)
		}
		if traits.Size != 8 || traits.Align != 4 || traits.HasStride {
			t.Errorf("got %+v", traits)
		}
		if _, err := GetTraits(&Vector{Element: node}); err != nil {
			t.Errorf("vector of recursive node: %v", err)
		}
	})

	t.Run("inline", func(t *testing.T) {
		node := &Struct{Name: "Loop"}
		node.Members = []Member{{Name: "self", Layout: &Array{Length: 1, Element: node}}}
		if _, err := GetTraits(node); !stderrors.Is(err, errors.ErrInvalidLayout) {
			t.Errorf("expected InvalidLayout, got %v", err)
		}
	})
}

func TestTraitConsistency(t *testing.T) {
	layouts := []Layout{
		Int8, Uint16, Int32, Bool,
		&Array{Length: 4, Element: Int16},
		&Array{Length: 2, Element: &Optional{Element: Int32}},
		&Optional{Element: Uint16},
		&Enum{Values: []any{1, 2}},
		&Struct{Members: []Member{{Name: "a", Layout: Uint8}, {Name: "b", Layout: Int32, Offset: 1}}},
	}
	c := NewCalculator()
	for _, l := range layouts {
		traits, err := c.Calculate(l)
		if err != nil {
			t.Fatalf("%s: %v", l, err)
		}
		if traits.HasStride && traits.Size > traits.Stride {
			t.Errorf("%s: size %d exceeds stride %d", l, traits.Size, traits.Stride)
		}
	}
}

func TestCalculatorConcurrent(t *testing.T) {
	c := NewCalculator()
	s := &Struct{Members: []Member{{Name: "a", Layout: &Array{Length: 8, Element: Uint32}}}}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			traits, err := c.Calculate(s)
			if err != nil || traits.Size != 32 {
				t.Errorf("got %+v, %v", traits, err)
			}
		}()
	}
	wg.Wait()
}
