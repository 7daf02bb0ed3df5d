package schema

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
)

func identity(v any) (any, error) { return v, nil }

func rawWrite(any, schemabuf.Buffer, uint32) (uint32, error) { return 0, nil }

func rawRead(schemabuf.Buffer, uint32) (any, error) { return nil, nil }

func TestNilInterceptors(t *testing.T) {
	var ic *Interceptors
	assert.Nil(t, ic.Lookup(layout.Uint8))
	assert.Nil(t, ic.Member(&layout.Struct{}, "x"))
	assert.Equal(t, "x", ic.Symbol(&layout.Struct{}, "x"))
	assert.Equal(t, 0, ic.Len())
}

func TestNewInterceptors(t *testing.T) {
	vec := &layout.Vector{Element: layout.String}
	s := &layout.Struct{Members: []layout.Member{{Name: "x", Layout: layout.Int32}}}

	bindings := map[layout.Layout]Interceptor{
		vec: {Decompose: identity, Compose: identity},
		s:   {Members: map[string]MemberInterceptor{"x": {Symbol: "posX"}}},
	}
	ic, err := NewInterceptors(bindings)
	require.NoError(t, err)

	// later mutation of the input does not leak into the frozen set
	bindings[s].Members["x"] = MemberInterceptor{Symbol: "mutated"}

	assert.NotNil(t, ic.Lookup(vec))
	assert.Nil(t, ic.Lookup(layout.Int32))
	assert.Equal(t, "posX", ic.Symbol(s, "x"))
	assert.Equal(t, 2, ic.Len())
}

func TestNewInterceptorsValidation(t *testing.T) {
	withPointer := &layout.Struct{Members: []layout.Member{
		{Name: "inline", Layout: layout.Uint32},
		{Name: "name", Layout: layout.String, Offset: 4, Pointer: true},
	}}

	tests := []struct {
		target  layout.Layout
		binding Interceptor
		name    string
		layout  bool
	}{
		{
			name:    "decompose and raw writer",
			target:  layout.Uint8,
			binding: Interceptor{Decompose: identity, DecomposeIntoBuffer: rawWrite},
		},
		{
			name:    "compose and raw reader",
			target:  layout.Uint8,
			binding: Interceptor{Compose: identity, ComposeFromBuffer: rawRead},
		},
		{
			name:    "members on non-struct",
			target:  layout.Uint8,
			binding: Interceptor{Members: map[string]MemberInterceptor{"x": {}}},
		},
		{
			name:    "unknown member",
			target:  withPointer,
			binding: Interceptor{Members: map[string]MemberInterceptor{"missing": {}}},
		},
		{
			name:    "raw writer on pointer member",
			target:  withPointer,
			binding: Interceptor{Members: map[string]MemberInterceptor{"name": {DecomposeIntoBuffer: rawWrite}}},
			layout:  true,
		},
		{
			name:    "raw reader on pointer member",
			target:  withPointer,
			binding: Interceptor{Members: map[string]MemberInterceptor{"name": {ComposeFromBuffer: rawRead}}},
			layout:  true,
		},
		{
			name:    "symbol collision",
			target:  withPointer,
			binding: Interceptor{Members: map[string]MemberInterceptor{"inline": {Symbol: "name"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInterceptors(map[layout.Layout]Interceptor{tt.target: tt.binding})
			require.Error(t, err)
			assert.Equal(t, tt.layout, stderrors.Is(err, errors.ErrInvalidLayout))
		})
	}
}

func TestRawMemberOnInlineMember(t *testing.T) {
	s := &layout.Struct{Members: []layout.Member{{Name: "pos", Layout: layout.Uint32}}}
	ic, err := NewInterceptors(map[layout.Layout]Interceptor{
		s: {Members: map[string]MemberInterceptor{"pos": {DecomposeIntoBuffer: rawWrite, ComposeFromBuffer: rawRead}}},
	})
	require.NoError(t, err)
	assert.True(t, ic.Member(s, "pos").Raw())
}
