package layout

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/schemabuf/errors"
)

func TestStructOf(t *testing.T) {
	room := Must(StructOf("Room",
		Field{Name: "level", Layout: Uint8},
		Field{Name: "name", Layout: String},
		Field{Name: "x", Layout: Uint16},
		Field{Name: "owner", Layout: &Optional{Element: Uint32}},
	))

	want := []struct {
		name    string
		offset  uint32
		pointer bool
	}{
		{"level", 0, false},
		{"name", 4, true},
		{"x", 8, false},
		{"owner", 12, false},
	}
	if len(room.Members) != len(want) {
		t.Fatalf("got %d members, want %d", len(room.Members), len(want))
	}
	for i, w := range want {
		m := room.Members[i]
		if m.Name != w.name || m.Offset != w.offset || m.Pointer != w.pointer {
			t.Errorf("member %d: got %s@%d pointer=%v, want %s@%d pointer=%v",
				i, m.Name, m.Offset, m.Pointer, w.name, w.offset, w.pointer)
		}
	}

	traits, err := GetTraits(room)
	if err != nil {
		t.Fatal(err)
	}
	if traits.Size != 17 || traits.HasStride {
		t.Errorf("got %+v", traits)
	}
}

func TestStructOfForcedPointer(t *testing.T) {
	s := Must(StructOf("Boxed",
		Field{Name: "tag", Layout: Uint8},
		Field{Name: "pos", Layout: &Array{Length: 2, Element: Int16}, Pointer: true},
	))
	m, ok := s.Member("pos")
	if !ok {
		t.Fatal("member pos not found")
	}
	if !m.Pointer || m.Offset != 4 {
		t.Errorf("got %+v", m)
	}
}

func TestInheritOf(t *testing.T) {
	base := Must(StructOf("Entity",
		Field{Name: "id", Layout: Uint32},
		Field{Name: "kind", Layout: Uint8},
	))
	creep := Must(InheritOf(base, "Creep",
		Field{Name: "hits", Layout: Uint16},
	))

	m, ok := creep.Member("hits")
	if !ok {
		t.Fatal("member hits not found")
	}
	if m.Offset != 6 {
		t.Errorf("hits offset = %d, want 6", m.Offset)
	}
	if _, ok := creep.Member("id"); !ok {
		t.Error("inherited member id not found")
	}

	names := []string{}
	for _, m := range creep.AllMembers() {
		names = append(names, m.Name)
	}
	if len(names) != 3 || names[0] != "id" || names[2] != "hits" {
		t.Errorf("AllMembers order = %v", names)
	}
}

func TestAppend(t *testing.T) {
	members, end, err := Append(5, []string{"Room"},
		Field{Name: "energy", Layout: Uint32},
		Field{Name: "flag", Layout: Bool},
	)
	if err != nil {
		t.Fatal(err)
	}
	if members[0].Offset != 8 || members[1].Offset != 12 || end != 13 {
		t.Errorf("got %+v end=%d", members, end)
	}
}

func TestStructOfErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields []Field
	}{
		{"unnamed_field", []Field{{Layout: Uint8}}},
		{"nil_layout", []Field{{Name: "x"}}},
		{"bad_enum", []Field{{Name: "e", Layout: &Enum{}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := StructOf("Bad", tc.fields...)
			if !stderrors.Is(err, errors.ErrInvalidLayout) {
				t.Fatalf("expected InvalidLayout, got %v", err)
			}
		})
	}
}

func TestMustPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Must(StructOf("Bad", Field{Name: "x"}))
}
