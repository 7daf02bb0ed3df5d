package transcoder

import (
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/maxatome/go-testdeep/td"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/schema"
)

type nameSet map[string]struct{}

func setOf(names ...string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

type point struct {
	X, Y int
}

func TestInterceptorSetAsVector(t *testing.T) {
	members := &layout.Vector{Element: layout.String}
	team := layout.Must(layout.StructOf("Team",
		layout.Field{Name: "name", Layout: layout.String},
		layout.Field{Name: "members", Layout: members},
	))

	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		members: {
			Decompose: func(v any) (any, error) {
				s, ok := v.(nameSet)
				if !ok {
					return nil, fmt.Errorf("want nameSet, got %T", v)
				}
				return slices.Sorted(maps.Keys(s)), nil
			},
			Compose: func(v any) (any, error) {
				out := nameSet{}
				for _, item := range v.([]any) {
					out[item.(string)] = struct{}{}
				}
				return out, nil
			},
		},
	})
	require.NoError(t, err)

	enc := NewEncoder(ic)
	data, err := enc.EncodeToBytes(team, map[string]any{"name": "red", "members": setOf("bob", "alice")})
	require.NoError(t, err)

	got, err := NewDecoderWithCompiler(enc.Compiler(), ic).DecodeBytes(team, data)
	require.NoError(t, err)
	td.Cmp(t, got, map[string]any{"name": "red", "members": setOf("alice", "bob")})

	// without interceptors the wire form is a plain sorted vector
	plain, err := NewDecoder(nil).DecodeBytes(team, data)
	require.NoError(t, err)
	td.Cmp(t, plain, map[string]any{"name": "red", "members": []any{"alice", "bob"}})
}

func TestInterceptorSymbol(t *testing.T) {
	room := layout.Must(layout.StructOf("Room",
		layout.Field{Name: "name", Layout: layout.String},
		layout.Field{Name: "level", Layout: layout.Uint8},
	))
	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		room: {Members: map[string]schema.MemberInterceptor{
			"name": {Symbol: "roomName"},
		}},
	})
	require.NoError(t, err)

	enc := NewEncoder(ic)
	data, err := enc.EncodeToBytes(room, map[string]any{"roomName": "W1N1", "level": 2})
	require.NoError(t, err)

	got, err := NewDecoder(ic).DecodeBytes(room, data)
	require.NoError(t, err)
	td.Cmp(t, got, map[string]any{"roomName": "W1N1", "level": uint8(2)})

	_, err = enc.EncodeToBytes(room, map[string]any{"name": "W1N1", "level": 2})
	assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindFieldMissing})
}

func TestInterceptorRawStruct(t *testing.T) {
	pt := layout.Must(layout.StructOf("Point",
		layout.Field{Name: "x", Layout: layout.Uint16},
		layout.Field{Name: "y", Layout: layout.Uint16},
	))
	segment := layout.Must(layout.StructOf("Segment",
		layout.Field{Name: "from", Layout: pt},
		layout.Field{Name: "to", Layout: pt},
	))

	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		pt: {
			DecomposeIntoBuffer: func(v any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
				p := v.(point)
				if err := buf.WriteU16(offset, uint16(p.X)); err != nil {
					return 0, err
				}
				return 4, buf.WriteU16(offset+2, uint16(p.Y))
			},
			ComposeFromBuffer: func(buf schemabuf.Buffer, offset uint32) (any, error) {
				x, err := buf.ReadU16(offset)
				if err != nil {
					return nil, err
				}
				y, err := buf.ReadU16(offset + 2)
				if err != nil {
					return nil, err
				}
				return point{X: int(x), Y: int(y)}, nil
			},
		},
	})
	require.NoError(t, err)

	enc := NewEncoder(ic)
	data, err := enc.EncodeToBytes(segment, map[string]any{"from": point{1, 2}, "to": point{3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 2, 0, 3, 0, 4, 0}, data)

	got, err := NewDecoder(ic).DecodeBytes(segment, data)
	require.NoError(t, err)
	td.Cmp(t, got, map[string]any{"from": point{1, 2}, "to": point{3, 4}})
}

func TestInterceptorRawMember(t *testing.T) {
	timer := layout.Must(layout.StructOf("Timer",
		layout.Field{Name: "id", Layout: layout.Uint8},
		layout.Field{Name: "after", Layout: layout.Uint32},
	))
	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		timer: {Members: map[string]schema.MemberInterceptor{
			"after": {
				DecomposeIntoBuffer: func(v any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
					return 4, buf.WriteU32(offset, uint32(v.(time.Duration)/time.Millisecond))
				},
				ComposeFromBuffer: func(buf schemabuf.Buffer, offset uint32) (any, error) {
					ms, err := buf.ReadU32(offset)
					return time.Duration(ms) * time.Millisecond, err
				},
			},
		}},
	})
	require.NoError(t, err)

	data, err := NewEncoder(ic).EncodeToBytes(timer, map[string]any{"id": 1, "after": 1500 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0, 0xDC, 0x05, 0, 0}, data)

	got, err := NewDecoder(ic).DecodeBytes(timer, data)
	require.NoError(t, err)
	td.Cmp(t, got, map[string]any{"id": uint8(1), "after": 1500 * time.Millisecond})
}

func TestInterceptorRawReplacesUnimplemented(t *testing.T) {
	interned := []string{"energy", "power", "ops"}
	pair := &layout.Array{Length: 2, Element: layout.String}

	_, err := NewCompiler().Writer(pair, nil)
	require.ErrorIs(t, err, errors.ErrUnimplementedLayout)

	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		pair: {
			DecomposeIntoBuffer: func(v any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
				for i, s := range v.([]string) {
					if err := buf.WriteU32(offset+uint32(i)*4, uint32(slices.Index(interned, s))); err != nil {
						return 0, err
					}
				}
				return 8, nil
			},
			ComposeFromBuffer: func(buf schemabuf.Buffer, offset uint32) (any, error) {
				out := make([]string, 2)
				for i := range out {
					idx, err := buf.ReadU32(offset + uint32(i)*4)
					if err != nil {
						return nil, err
					}
					out[i] = interned[idx]
				}
				return out, nil
			},
		},
	})
	require.NoError(t, err)

	data, err := NewEncoder(ic).EncodeToBytes(pair, []string{"ops", "energy"})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0, 0, 0, 0, 0, 0, 0}, data)

	got, err := NewDecoder(ic).DecodeBytes(pair, data)
	require.NoError(t, err)
	assert.Equal(t, []string{"ops", "energy"}, got)
}

func TestInterceptorRawOnPointerMemberLayout(t *testing.T) {
	payload := &layout.Vector{Element: layout.Uint8}
	holder := layout.Must(layout.StructOf("Holder",
		layout.Field{Name: "payload", Layout: payload},
	))
	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		payload: {DecomposeIntoBuffer: func(any, schemabuf.Buffer, uint32) (uint32, error) { return 0, nil }},
	})
	require.NoError(t, err)

	c := NewCompiler()
	_, err = c.Writer(payload, ic)
	require.NoError(t, err, "raw hooks are fine at top level")

	_, err = c.Writer(holder, ic)
	require.ErrorIs(t, err, errors.ErrInvalidLayout)
	var le *errors.Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, []string{"payload"}, le.Path)

	_, err = c.Reader(holder, ic)
	assert.ErrorIs(t, err, errors.ErrInvalidLayout)
}

func TestInterceptorTransformErrors(t *testing.T) {
	failing := fmt.Errorf("boom")
	ic, err := schema.NewInterceptors(map[layout.Layout]schema.Interceptor{
		position: {
			Decompose: func(any) (any, error) { return nil, failing },
			Compose:   func(any) (any, error) { return nil, failing },
		},
	})
	require.NoError(t, err)

	_, err = NewEncoder(ic).EncodeToBytes(position, map[string]any{"x": 1, "y": 2})
	assert.ErrorIs(t, err, errors.ErrValueMismatch)
	assert.ErrorIs(t, err, failing)

	_, err = NewDecoder(ic).DecodeBytes(position, make([]byte, 8))
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidData})
	assert.ErrorIs(t, err, failing)
}

func TestInterceptorSetsCompileSeparately(t *testing.T) {
	ic, err := schema.NewInterceptors(nil)
	require.NoError(t, err)

	c := NewCompiler()
	_, err = c.Writer(position, nil)
	require.NoError(t, err)
	before := c.Stats()

	_, err = c.Writer(position, ic)
	require.NoError(t, err)
	after := c.Stats()

	assert.Equal(t, before.Writers*2, after.Writers)
	assert.Greater(t, after.Builds, before.Builds)
}
