// Package transcoder compiles layouts into writers and readers.
//
// A Writer packs a runtime value into a flat buffer according to a layout;
// a Reader unpacks it. Both are compiled once per (layout, interceptors)
// pair and cached by node identity in a Compiler:
//
//	┌───────────────────────────────────────────────────────────┐
//	│ Go value ←→ [Writer / Reader] ←→ schemabuf.Buffer          │
//	└───────────────────────────────────────────────────────────┘
//
// # Binary Layout
//
//	Layout              Inline bytes         Encoding
//	─────────────────────────────────────────────────────────────
//	int8/uint8/bool     1                    little-endian
//	int16/uint16        2                    little-endian
//	int32/uint32        4                    little-endian
//	string              4 + 2n               n UTF-16 code units
//	buffer              4 + n                n raw bytes
//	enum                1                    index into Values
//	array[n]T           stride(T)(n-1)+size  elements at stride(T)
//	vector<T> fixed     4 + ...              length, elements at stride(T)
//	vector<T> variable  4 + ...              length, [next ptr, element]...
//	optional<T> fixed   size(T) + 1          element, trailing presence flag
//	optional<T> var.    4                    0 or address of element
//	variant             4 + alternative      index, alternative struct
//
// Struct members sit at their declared offsets. A pointer member holds the
// absolute address of data written after the struct's inline footprint;
// the "locals" cursor that allocates this space starts at offset+size and
// only advances. Inherited members are written first and share the cursor.
//
// # Values
//
// Writers accept map[string]any, Go structs (fields matched by
// `layout:"name"` tag, case-insensitive name, or kebab-case), slices,
// arrays and iter.Seq[any] for sequences, any Go number holding an exact
// in-range integer, and VariantValue or Tagged values for variants. A nil
// value is an absent optional. Readers yield map[string]any, []any,
// exactly-typed integers, string, []byte and VariantValue.
//
// # Interceptors
//
// A schema.Interceptors set can transform values before writing
// (Decompose) and after reading (Compose), or replace the structural
// writer and reader entirely (DecomposeIntoBuffer, ComposeFromBuffer).
// Member interceptors apply to one struct member and can rename the key
// used in runtime values.
//
// # Thread Safety
//
// Compiler, Encoder and Decoder are safe for concurrent use. Compilation
// runs under a compiler-wide lock; compiled functions run lock-free.
// A single buffer must not be mutated concurrently with a call using it.
//
// # Error Handling
//
// Errors use the structured types from the errors package:
//
//	[compile] invalid_layout at name: member name of variable size string must be a pointer
//	[encode] overflow at body.hits: layout uint16 - value 70000 overflows uint16
//	[decode] invalid_variant at action: discriminant 7 out of range (2 alternatives)
package transcoder
