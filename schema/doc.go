// Package schema assembles named struct layouts and the interceptors bound
// to them.
//
// A Registry collects declarations from independent contributors. Several
// contributors may declare the same struct name; their fields are appended
// in declaration order, which lets optional modules extend a shared layout:
//
//	reg := schema.NewRegistry()
//	reg.DeclareStruct("Room", "", layout.Field{Name: "name", Layout: layout.String})
//	reg.DeclareStruct("Room", "", layout.Field{Name: "npcUsers", Layout: &layout.Vector{Element: layout.String}})
//	reg.InterceptStruct("Room", schema.Interceptor{
//	    Members: map[string]schema.MemberInterceptor{"npcUsers": {Decompose: setToSlice, Compose: sliceToSet}},
//	})
//	s, err := reg.Build()
//
// Build resolves inheritance by name, rejects cycles, validates interceptors
// and returns an immutable Schema. Interceptors are keyed by layout node
// identity; an Interceptors value never changes after it is built.
package schema
