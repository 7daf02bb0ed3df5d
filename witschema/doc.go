// Package witschema imports WIT type definitions as memory layouts.
//
// WIT records, tuples, lists, options, enums, variants and results map
// onto the layout kinds of package layout; struct members are placed with
// layout.StructOf, so the resulting byte format is the schemabuf format,
// not the component model canonical ABI.
//
//	res, err := witschema.DecodeJSON(f) // wasm-tools component wit --json
//	types, err := witschema.NewImporter().ImportResolve(res)
//	enc.Encode(types["point"], map[string]any{"x": 1, "y": 2}, buf)
package witschema
