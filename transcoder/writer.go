package transcoder

import (
	"math"
	"reflect"
	"strconv"
	"unicode/utf16"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/schema"
	"github.com/wippyai/schemabuf/transcoder/internal/abi"
)

func (c *Compiler) buildWriter(k cacheKey) (Writer, error) {
	w, err := c.compileWriter(k.layout, k.interceptors)
	logCompiled("writer", k.layout, err)
	return w, err
}

func (c *Compiler) compileWriter(l layout.Layout, ic *schema.Interceptors) (Writer, error) {
	traits, err := c.traits.Calculate(l)
	if err != nil {
		return nil, err
	}

	hooks := ic.Lookup(l)
	if hooks != nil && hooks.DecomposeIntoBuffer != nil {
		return Writer(hooks.DecomposeIntoBuffer), nil
	}

	write, err := c.structuralWriter(l, traits, ic)
	if err != nil {
		return nil, err
	}
	if hooks != nil && hooks.Decompose != nil {
		return decomposing(hooks.Decompose, write), nil
	}
	return write, nil
}

func decomposing(decompose schema.Transform, write Writer) Writer {
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		v, err := decompose(value)
		if err != nil {
			return 0, errors.Wrap(errors.PhaseEncode, errors.KindValueMismatch, err, "decompose failed")
		}
		return write(v, buf, offset)
	}
}

func (c *Compiler) structuralWriter(l layout.Layout, traits layout.Traits, ic *schema.Interceptors) (Writer, error) {
	switch node := l.(type) {
	case layout.Integral:
		return c.integralWriter(node), nil
	case *layout.Struct:
		return c.structWriter(node, traits, ic)
	case *layout.Array:
		return c.arrayWriter(node, traits, ic)
	case *layout.Vector:
		return c.vectorWriter(node, ic)
	case *layout.Enum:
		return enumWriter(node), nil
	case *layout.Optional:
		return c.optionalWriter(node, ic)
	case *layout.Variant:
		return c.variantWriter(node, ic)
	default:
		return nil, errors.InvalidLayout(nil, "unrecognized layout node %T", l)
	}
}

func (c *Compiler) integralWriter(kind layout.Integral) Writer {
	switch kind {
	case layout.Bool:
		return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
			b, ok := abi.CoerceToBool(value)
			if !ok {
				return 0, errors.ValueMismatch(nil, abi.TypeName(value), kind.String())
			}
			var v uint8
			if b {
				v = 1
			}
			return 1, writeErr(buf.WriteU8(offset, v))
		}
	case layout.String:
		limit := c.options.MaxStringLength
		return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
			s, ok := stringOf(value)
			if !ok {
				return 0, errors.ValueMismatch(nil, abi.TypeName(value), kind.String())
			}
			units := utf16.Encode([]rune(s))
			if uint64(len(units)) > uint64(limit) {
				return 0, errors.New(errors.PhaseEncode, errors.KindValueMismatch).
					Layout(kind.String()).
					Detail("string length %d exceeds limit %d", len(units), limit).
					Build()
			}
			n := uint32(len(units))
			if err := buf.WriteU32(offset, n); err != nil {
				return 0, writeErr(err)
			}
			for i, u := range units {
				if err := buf.WriteU16(offset+layout.PointerSize+uint32(i)*2, u); err != nil {
					return 0, writeErr(err)
				}
			}
			return layout.PointerSize + n*2, nil
		}
	case layout.Buffer:
		limit := c.options.MaxBufferLength
		return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
			data, ok := abi.Bytes(value)
			if !ok {
				return 0, errors.ValueMismatch(nil, abi.TypeName(value), kind.String())
			}
			if uint64(len(data)) > uint64(limit) {
				return 0, errors.New(errors.PhaseEncode, errors.KindValueMismatch).
					Layout(kind.String()).
					Detail("buffer length %d exceeds limit %d", len(data), limit).
					Build()
			}
			n := uint32(len(data))
			if err := buf.WriteU32(offset, n); err != nil {
				return 0, writeErr(err)
			}
			return layout.PointerSize + n, writeErr(buf.Write(offset+layout.PointerSize, data))
		}
	}

	width := kind.Width()
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		v, ok := abi.CoerceToInt64(value)
		if !ok {
			return 0, errors.ValueMismatch(nil, abi.TypeName(value), kind.String())
		}
		if !abi.Fits(kind, v) {
			return 0, errors.Overflow(errors.PhaseEncode, nil, value, kind.String())
		}
		var err error
		switch width {
		case 1:
			err = buf.WriteU8(offset, uint8(v))
		case 2:
			err = buf.WriteU16(offset, uint16(v))
		default:
			err = buf.WriteU32(offset, uint32(v))
		}
		return width, writeErr(err)
	}
}

func stringOf(value any) (string, bool) {
	if s, ok := value.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func (c *Compiler) structWriter(s *layout.Struct, traits layout.Traits, ic *schema.Interceptors) (Writer, error) {
	members, err := c.memberWriterFor(s, ic)
	if err != nil {
		return nil, err
	}
	size := traits.Size
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		if !abi.IsRecord(value) {
			return 0, errors.ValueMismatch(nil, abi.TypeName(value), s.String())
		}
		end, err := members(value, buf, offset, offset+size)
		if err != nil {
			return 0, err
		}
		return end - offset, nil
	}, nil
}

func (c *Compiler) buildMemberWriter(k cacheKey) (memberWriter, error) {
	s := k.layout.(*layout.Struct)
	ic := k.interceptors

	if err := c.validateStruct(s, ic); err != nil {
		return nil, err
	}

	var base memberWriter
	if s.Inherit != nil {
		var err error
		if base, err = c.memberWriterFor(s.Inherit, ic); err != nil {
			return nil, err
		}
	}

	steps := make([]memberWriter, 0, len(s.Members))
	for _, m := range s.Members {
		step, err := c.memberStepWriter(s, m, ic)
		if err != nil {
			return nil, withPath(err, m.Name)
		}
		steps = append(steps, step)
	}

	return func(value any, buf schemabuf.Buffer, offset, locals uint32) (uint32, error) {
		var err error
		if base != nil {
			if locals, err = base(value, buf, offset, locals); err != nil {
				return 0, err
			}
		}
		for _, step := range steps {
			if locals, err = step(value, buf, offset, locals); err != nil {
				return 0, err
			}
		}
		return locals, nil
	}, nil
}

func (c *Compiler) memberStepWriter(s *layout.Struct, m layout.Member, ic *schema.Interceptors) (memberWriter, error) {
	var write Writer
	hooks := ic.Member(s, m.Name)
	if hooks != nil && hooks.DecomposeIntoBuffer != nil {
		write = Writer(hooks.DecomposeIntoBuffer)
	} else {
		w, err := c.writerFor(m.Layout, ic)
		if err != nil {
			return nil, err
		}
		write = w
		if hooks != nil && hooks.Decompose != nil {
			write = decomposing(hooks.Decompose, w)
		}
	}

	name := m.Name
	symbol := ic.Symbol(s, m.Name)
	_, optional := m.Layout.(*layout.Optional)
	fieldOffset := m.Offset

	get := func(value any) (any, error) {
		v, found, _ := abi.Member(value, symbol)
		if !found && !optional {
			return nil, errors.FieldMissing(errors.PhaseEncode, []string{name}, symbol)
		}
		return v, nil
	}

	if !m.Pointer {
		return func(value any, buf schemabuf.Buffer, offset, locals uint32) (uint32, error) {
			v, err := get(value)
			if err != nil {
				return 0, err
			}
			if _, err := write(v, buf, offset+fieldOffset); err != nil {
				return 0, withPath(err, name)
			}
			return locals, nil
		}, nil
	}

	mt, err := c.traits.Calculate(m.Layout)
	if err != nil {
		return nil, err
	}
	align := mt.Align
	return func(value any, buf schemabuf.Buffer, offset, locals uint32) (uint32, error) {
		v, err := get(value)
		if err != nil {
			return 0, err
		}
		addr := layout.AlignTo(locals, align)
		if err := buf.WriteU32(offset+fieldOffset, addr); err != nil {
			return 0, withPath(writeErr(err), name)
		}
		n, err := write(v, buf, addr)
		if err != nil {
			return 0, withPath(err, name)
		}
		end, ok := abi.SafeAddU32(addr, n)
		if !ok {
			return 0, errors.Overflow(errors.PhaseEncode, []string{name}, uint64(addr)+uint64(n), "uint32 address")
		}
		return end, nil
	}, nil
}

func (c *Compiler) arrayWriter(a *layout.Array, traits layout.Traits, ic *schema.Interceptors) (Writer, error) {
	et, err := c.traits.Calculate(a.Element)
	if err != nil {
		return nil, err
	}
	if !et.HasStride {
		return nil, errors.UnimplementedLayout(nil, "array of variable-size element %s", a.Element)
	}
	write, err := c.writerFor(a.Element, ic)
	if err != nil {
		return nil, withPath(err, "[]")
	}

	length := int(a.Length)
	stride := et.Stride
	size := traits.Size
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		items, ok := abi.Elements(value)
		if !ok {
			return 0, errors.ValueMismatch(nil, abi.TypeName(value), a.String())
		}
		if len(items) != length {
			return 0, errors.New(errors.PhaseEncode, errors.KindValueMismatch).
				Layout(a.String()).
				Detail("array has %d elements, want %d", len(items), length).
				Build()
		}
		current := offset
		for i, item := range items {
			if _, err := write(item, buf, current); err != nil {
				return 0, withPath(err, "["+strconv.Itoa(i)+"]")
			}
			current += stride
		}
		return size, nil
	}, nil
}

func (c *Compiler) vectorWriter(v *layout.Vector, ic *schema.Interceptors) (Writer, error) {
	et, err := c.traits.Calculate(v.Element)
	if err != nil {
		return nil, err
	}
	write, err := c.writerFor(v.Element, ic)
	if err != nil {
		return nil, withPath(err, "[]")
	}
	limit := c.options.MaxVectorLength

	elements := func(value any) ([]any, error) {
		items, ok := abi.Elements(value)
		if !ok {
			return nil, errors.ValueMismatch(nil, abi.TypeName(value), v.String())
		}
		if uint64(len(items)) > uint64(limit) {
			return nil, errors.New(errors.PhaseEncode, errors.KindValueMismatch).
				Layout(v.String()).
				Detail("vector length %d exceeds limit %d", len(items), limit).
				Build()
		}
		return items, nil
	}

	if et.HasStride {
		stride, size := et.Stride, et.Size
		return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
			items, err := elements(value)
			if err != nil {
				return 0, err
			}
			n := uint32(len(items))
			if n > 0 {
				span, ok := abi.SafeMulU32(n-1, stride)
				if ok {
					span, ok = abi.SafeAddU32(span, size)
				}
				if !ok || uint64(offset)+layout.PointerSize+uint64(span) > math.MaxUint32 {
					return 0, errors.Overflow(errors.PhaseEncode, nil, uint64(n-1)*uint64(stride)+uint64(size), "uint32 address")
				}
			}
			if err := buf.WriteU32(offset, n); err != nil {
				return 0, writeErr(err)
			}
			current := offset + layout.PointerSize
			for i, item := range items {
				if _, err := write(item, buf, current); err != nil {
					return 0, withPath(err, "["+strconv.Itoa(i)+"]")
				}
				current += stride
			}
			if n == 0 {
				return layout.PointerSize, nil
			}
			// the last element needs size bytes, not a full stride
			return current - offset - stride + size, nil
		}, nil
	}

	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		items, err := elements(value)
		if err != nil {
			return 0, err
		}
		if err := buf.WriteU32(offset, uint32(len(items))); err != nil {
			return 0, writeErr(err)
		}
		// each element is preceded by a forward pointer to the next slot
		current := offset + layout.PointerSize
		for i, item := range items {
			elementOffset := current + layout.PointerSize
			n, err := write(item, buf, elementOffset)
			if err != nil {
				return 0, withPath(err, "["+strconv.Itoa(i)+"]")
			}
			end, ok := abi.SafeAddU32(elementOffset, n)
			if !ok || end > math.MaxUint32-layout.PointerSize {
				return 0, errors.Overflow(errors.PhaseEncode, nil, uint64(elementOffset)+uint64(n), "uint32 address")
			}
			next := layout.AlignTo(end, layout.PointerSize)
			if err := buf.WriteU32(current, next); err != nil {
				return 0, writeErr(err)
			}
			current = next
		}
		return current - offset, nil
	}, nil
}

func enumWriter(e *layout.Enum) Writer {
	index := make(map[any]uint8, len(e.Values))
	for i, v := range e.Values {
		index[v] = uint8(i)
	}
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		if value == nil || !reflect.TypeOf(value).Comparable() {
			return 0, errors.InvalidEnum(errors.PhaseEncode, nil, value)
		}
		i, ok := index[value]
		if !ok {
			return 0, errors.InvalidEnum(errors.PhaseEncode, nil, value)
		}
		return 1, writeErr(buf.WriteU8(offset, i))
	}
}

func (c *Compiler) optionalWriter(o *layout.Optional, ic *schema.Interceptors) (Writer, error) {
	et, err := c.traits.Calculate(o.Element)
	if err != nil {
		return nil, err
	}
	write, err := c.writerFor(o.Element, ic)
	if err != nil {
		return nil, withPath(err, "?")
	}

	if et.HasStride {
		// presence flag trails the element; absent zeroes the whole region
		size := et.Size
		zeros := make([]byte, size+1)
		return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
			if absent(value) {
				return size + 1, writeErr(buf.Write(offset, zeros))
			}
			if _, err := write(value, buf, offset); err != nil {
				return 0, err
			}
			return size + 1, writeErr(buf.WriteU8(offset+size, 1))
		}, nil
	}

	// the slot holds 0 or the address of the out-of-line element
	align := et.Align
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		if absent(value) {
			return layout.PointerSize, writeErr(buf.WriteU32(offset, 0))
		}
		addr := layout.AlignTo(offset+layout.PointerSize, align)
		if err := buf.WriteU32(offset, addr); err != nil {
			return 0, writeErr(err)
		}
		n, err := write(value, buf, addr)
		if err != nil {
			return 0, err
		}
		return addr + n - offset, nil
	}, nil
}

type variantCase struct {
	write Writer
	index uint32
}

func (c *Compiler) variantWriter(v *layout.Variant, ic *schema.Interceptors) (Writer, error) {
	cases := make(map[string]variantCase, len(v.Alternatives))
	for i, alt := range v.Alternatives {
		w, err := c.writerFor(alt, ic)
		if err != nil {
			return nil, withPath(err, alt.Tag)
		}
		cases[alt.Tag] = variantCase{write: w, index: uint32(i)}
	}

	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		tag, payload, ok := variantOf(value)
		if !ok {
			return 0, errors.ValueMismatch(nil, abi.TypeName(value), v.String())
		}
		vc, ok := cases[tag]
		if !ok {
			return 0, errors.UnknownVariant(nil, tag)
		}
		if err := buf.WriteU32(offset, vc.index); err != nil {
			return 0, writeErr(err)
		}
		n, err := vc.write(payload, buf, offset+layout.PointerSize)
		if err != nil {
			return 0, withPath(err, tag)
		}
		return layout.PointerSize + n, nil
	}, nil
}

// writeErr classifies a Buffer failure. nil passes through.
func writeErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(errors.PhaseEncode, errors.KindOutOfBounds, err, "buffer write failed")
}
