// Package layout declares memory layouts and computes their traits.
//
// A Layout is a closed tree of nodes:
//
//	Integral   int8, int16, int32, uint8, uint16, uint32, bool, string, buffer
//	Struct     named members at explicit byte offsets, optional inheritance base
//	Array      fixed-length inline sequence
//	Vector     length-prefixed variable-length sequence
//	Enum       ordered value set, encoded as a 1-byte index
//	Optional   presence wrapper
//	Variant    closed list of tagged struct alternatives
//
// Composite nodes are pointers and are identified by pointer identity; the
// same node may be shared by many parents. Nodes must not be mutated once
// they have been handed to a Calculator or compiler.
//
// # Traits
//
// Traits are derived, never stored:
//
//	Layout          Align            Size                     Stride
//	─────────────────────────────────────────────────────────────────────
//	int8/uint8/bool 1                1                        1
//	int16/uint16    2                2                        2
//	int32/uint32    4                4                        4
//	string/buffer   4                4                        -
//	enum            1                1                        1
//	array[n]T       align(T)         size(T)*n                stride(T)*(n-1)+size(T)
//	vector<T>       max(4, align(T)) 4                        -
//	optional<T>     align(T)         size(T)+1                alignTo(size+1, align)
//	  (T variable)  max(4, align(T)) 4                        -
//	variant         max(4, align)    4+max size               -
//	struct          max member align max(offset+size)         alignTo(size, size)
//
// A struct has a stride only when none of its members (inherited ones
// included) is a pointer. Pointer members count as 4 bytes aligned to 4
// and do not descend into the pointee, which makes self-referential
// layouts computable.
//
// # Auto Layout
//
// StructOf assigns offsets in declaration order, aligning each member and
// turning variable-size members into pointers:
//
//	pos := layout.Must(layout.StructOf("Position",
//	    layout.Field{Name: "x", Layout: layout.Int32},
//	    layout.Field{Name: "y", Layout: layout.Int32},
//	))
package layout
