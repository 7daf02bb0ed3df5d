package transcoder

import (
	"strconv"
	"unicode/utf16"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/schema"
	"github.com/wippyai/schemabuf/transcoder/internal/abi"
)

func (c *Compiler) buildReader(k cacheKey) (Reader, error) {
	r, err := c.compileReader(k.layout, k.interceptors)
	logCompiled("reader", k.layout, err)
	return r, err
}

func (c *Compiler) compileReader(l layout.Layout, ic *schema.Interceptors) (Reader, error) {
	traits, err := c.traits.Calculate(l)
	if err != nil {
		return nil, err
	}

	hooks := ic.Lookup(l)
	if hooks != nil && hooks.ComposeFromBuffer != nil {
		return Reader(hooks.ComposeFromBuffer), nil
	}

	read, err := c.structuralReader(l, traits, ic)
	if err != nil {
		return nil, err
	}
	if hooks != nil && hooks.Compose != nil {
		return composing(hooks.Compose, read), nil
	}
	return read, nil
}

func composing(compose schema.Transform, read Reader) Reader {
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		v, err := read(buf, offset)
		if err != nil {
			return nil, err
		}
		composed, err := compose(v)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseDecode, errors.KindInvalidData, err, "compose failed")
		}
		return composed, nil
	}
}

func (c *Compiler) structuralReader(l layout.Layout, traits layout.Traits, ic *schema.Interceptors) (Reader, error) {
	switch node := l.(type) {
	case layout.Integral:
		return c.integralReader(node), nil
	case *layout.Struct:
		return c.structReader(node, ic)
	case *layout.Array:
		return c.arrayReader(node, ic)
	case *layout.Vector:
		return c.vectorReader(node, ic)
	case *layout.Enum:
		return enumReader(node), nil
	case *layout.Optional:
		return c.optionalReader(node, ic)
	case *layout.Variant:
		return c.variantReader(node, ic)
	default:
		return nil, errors.InvalidLayout(nil, "unrecognized layout node %T", l)
	}
}

func (c *Compiler) integralReader(kind layout.Integral) Reader {
	switch kind {
	case layout.String:
		limit := c.options.MaxStringLength
		return func(buf schemabuf.Buffer, offset uint32) (any, error) {
			n, err := buf.ReadU32(offset)
			if err != nil {
				return nil, readErr(err)
			}
			if n > limit {
				return nil, errors.InvalidData(errors.PhaseDecode, nil, "string length "+strconv.FormatUint(uint64(n), 10)+" exceeds limit")
			}
			if err := checkSpan(buf, offset+layout.PointerSize, uint64(n)*2); err != nil {
				return nil, err
			}
			units := make([]uint16, n)
			for i := range units {
				u, err := buf.ReadU16(offset + layout.PointerSize + uint32(i)*2)
				if err != nil {
					return nil, readErr(err)
				}
				units[i] = u
			}
			return string(utf16.Decode(units)), nil
		}
	case layout.Buffer:
		limit := c.options.MaxBufferLength
		return func(buf schemabuf.Buffer, offset uint32) (any, error) {
			n, err := buf.ReadU32(offset)
			if err != nil {
				return nil, readErr(err)
			}
			if n > limit {
				return nil, errors.InvalidData(errors.PhaseDecode, nil, "buffer length "+strconv.FormatUint(uint64(n), 10)+" exceeds limit")
			}
			data, err := buf.Read(offset+layout.PointerSize, n)
			if err != nil {
				return nil, readErr(err)
			}
			out := make([]byte, n)
			copy(out, data)
			return out, nil
		}
	}

	width := kind.Width()
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		var bits uint32
		switch width {
		case 1:
			v, err := buf.ReadU8(offset)
			if err != nil {
				return nil, readErr(err)
			}
			bits = uint32(v)
		case 2:
			v, err := buf.ReadU16(offset)
			if err != nil {
				return nil, readErr(err)
			}
			bits = uint32(v)
		default:
			v, err := buf.ReadU32(offset)
			if err != nil {
				return nil, readErr(err)
			}
			bits = v
		}
		return abi.Narrow(kind, bits), nil
	}
}

func (c *Compiler) structReader(s *layout.Struct, ic *schema.Interceptors) (Reader, error) {
	members, err := c.memberReaderFor(s, ic)
	if err != nil {
		return nil, err
	}
	count := len(s.AllMembers())
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		out := make(map[string]any, count)
		if err := members(buf, offset, out); err != nil {
			return nil, err
		}
		return out, nil
	}, nil
}

func (c *Compiler) buildMemberReader(k cacheKey) (memberReader, error) {
	s := k.layout.(*layout.Struct)
	ic := k.interceptors

	if err := c.validateStruct(s, ic); err != nil {
		return nil, err
	}

	var base memberReader
	if s.Inherit != nil {
		var err error
		if base, err = c.memberReaderFor(s.Inherit, ic); err != nil {
			return nil, err
		}
	}

	steps := make([]memberReader, 0, len(s.Members))
	for _, m := range s.Members {
		step, err := c.memberStepReader(s, m, ic)
		if err != nil {
			return nil, withPath(err, m.Name)
		}
		steps = append(steps, step)
	}

	return func(buf schemabuf.Buffer, offset uint32, out map[string]any) error {
		if base != nil {
			if err := base(buf, offset, out); err != nil {
				return err
			}
		}
		for _, step := range steps {
			if err := step(buf, offset, out); err != nil {
				return err
			}
		}
		return nil
	}, nil
}

func (c *Compiler) memberStepReader(s *layout.Struct, m layout.Member, ic *schema.Interceptors) (memberReader, error) {
	var read Reader
	hooks := ic.Member(s, m.Name)
	if hooks != nil && hooks.ComposeFromBuffer != nil {
		read = Reader(hooks.ComposeFromBuffer)
	} else {
		r, err := c.readerFor(m.Layout, ic)
		if err != nil {
			return nil, err
		}
		read = r
		if hooks != nil && hooks.Compose != nil {
			read = composing(hooks.Compose, r)
		}
	}

	name := m.Name
	symbol := ic.Symbol(s, m.Name)
	fieldOffset := m.Offset
	pointer := m.Pointer

	return func(buf schemabuf.Buffer, offset uint32, out map[string]any) error {
		at := offset + fieldOffset
		if pointer {
			addr, err := buf.ReadU32(at)
			if err != nil {
				return withPath(readErr(err), name)
			}
			at = addr
		}
		v, err := read(buf, at)
		if err != nil {
			return withPath(err, name)
		}
		out[symbol] = v
		return nil
	}, nil
}

func (c *Compiler) arrayReader(a *layout.Array, ic *schema.Interceptors) (Reader, error) {
	et, err := c.traits.Calculate(a.Element)
	if err != nil {
		return nil, err
	}
	if !et.HasStride {
		return nil, errors.UnimplementedLayout(nil, "array of variable-size element %s", a.Element)
	}
	read, err := c.readerFor(a.Element, ic)
	if err != nil {
		return nil, withPath(err, "[]")
	}

	length := a.Length
	stride := et.Stride
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		items := make([]any, length)
		current := offset
		for i := range items {
			v, err := read(buf, current)
			if err != nil {
				return nil, withPath(err, "["+strconv.Itoa(i)+"]")
			}
			items[i] = v
			current += stride
		}
		return items, nil
	}, nil
}

func (c *Compiler) vectorReader(v *layout.Vector, ic *schema.Interceptors) (Reader, error) {
	et, err := c.traits.Calculate(v.Element)
	if err != nil {
		return nil, err
	}
	read, err := c.readerFor(v.Element, ic)
	if err != nil {
		return nil, withPath(err, "[]")
	}
	limit := c.options.MaxVectorLength

	// span returns the minimum byte count that n elements occupy after the
	// length prefix.
	length := func(buf schemabuf.Buffer, offset uint32, span func(n uint32) uint64) (uint32, error) {
		n, err := buf.ReadU32(offset)
		if err != nil {
			return 0, readErr(err)
		}
		if n > limit {
			return 0, errors.InvalidData(errors.PhaseDecode, nil, "vector length "+strconv.FormatUint(uint64(n), 10)+" exceeds limit")
		}
		if err := checkSpan(buf, offset+layout.PointerSize, span(n)); err != nil {
			return 0, err
		}
		return n, nil
	}

	if et.HasStride {
		stride, size := et.Stride, et.Size
		// the last element needs size bytes, not a full stride
		packed := func(n uint32) uint64 {
			if n == 0 {
				return 0
			}
			return uint64(n-1)*uint64(stride) + uint64(size)
		}
		return func(buf schemabuf.Buffer, offset uint32) (any, error) {
			n, err := length(buf, offset, packed)
			if err != nil {
				return nil, err
			}
			items := make([]any, n)
			current := offset + layout.PointerSize
			for i := range items {
				item, err := read(buf, current)
				if err != nil {
					return nil, withPath(err, "["+strconv.Itoa(i)+"]")
				}
				items[i] = item
				current += stride
			}
			return items, nil
		}, nil
	}

	chained := func(n uint32) uint64 {
		return uint64(n) * layout.PointerSize
	}
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		n, err := length(buf, offset, chained)
		if err != nil {
			return nil, err
		}
		items := make([]any, n)
		current := offset + layout.PointerSize
		for i := range items {
			item, err := read(buf, current+layout.PointerSize)
			if err != nil {
				return nil, withPath(err, "["+strconv.Itoa(i)+"]")
			}
			items[i] = item

			next, err := buf.ReadU32(current)
			if err != nil {
				return nil, readErr(err)
			}
			if next <= current {
				return nil, errors.InvalidData(errors.PhaseDecode, []string{"[" + strconv.Itoa(i) + "]"}, "vector forward pointer does not advance")
			}
			current = next
		}
		return items, nil
	}, nil
}

func enumReader(e *layout.Enum) Reader {
	values := e.Values
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		i, err := buf.ReadU8(offset)
		if err != nil {
			return nil, readErr(err)
		}
		if int(i) >= len(values) {
			return nil, errors.InvalidEnum(errors.PhaseDecode, nil, i)
		}
		return values[i], nil
	}
}

func (c *Compiler) optionalReader(o *layout.Optional, ic *schema.Interceptors) (Reader, error) {
	et, err := c.traits.Calculate(o.Element)
	if err != nil {
		return nil, err
	}
	read, err := c.readerFor(o.Element, ic)
	if err != nil {
		return nil, withPath(err, "?")
	}

	if et.HasStride {
		size := et.Size
		return func(buf schemabuf.Buffer, offset uint32) (any, error) {
			flag, err := buf.ReadU8(offset + size)
			if err != nil {
				return nil, readErr(err)
			}
			switch flag {
			case 0:
				return nil, nil
			case 1:
				return read(buf, offset)
			default:
				return nil, errors.InvalidData(errors.PhaseDecode, nil, "invalid optional presence flag "+strconv.Itoa(int(flag)))
			}
		}, nil
	}

	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		addr, err := buf.ReadU32(offset)
		if err != nil {
			return nil, readErr(err)
		}
		if addr == 0 {
			return nil, nil
		}
		return read(buf, addr)
	}, nil
}

func (c *Compiler) variantReader(v *layout.Variant, ic *schema.Interceptors) (Reader, error) {
	readers := make([]Reader, len(v.Alternatives))
	tags := make([]string, len(v.Alternatives))
	for i, alt := range v.Alternatives {
		r, err := c.readerFor(alt, ic)
		if err != nil {
			return nil, withPath(err, alt.Tag)
		}
		readers[i] = r
		tags[i] = alt.Tag
	}

	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		disc, err := buf.ReadU32(offset)
		if err != nil {
			return nil, readErr(err)
		}
		if disc >= uint32(len(readers)) {
			return nil, errors.InvalidDiscriminant(errors.PhaseDecode, nil, disc, len(readers))
		}
		value, err := readers[disc](buf, offset+layout.PointerSize)
		if err != nil {
			return nil, withPath(err, tags[disc])
		}
		return VariantValue{Tag: tags[disc], Value: value}, nil
	}, nil
}

// checkSpan rejects lengths that cannot fit in a buffer of known size,
// before anything is allocated for them.
func checkSpan(buf schemabuf.Buffer, offset uint32, length uint64) error {
	sizer, ok := buf.(schemabuf.Sizer)
	if !ok {
		return nil
	}
	if uint64(offset)+length > uint64(sizer.Size()) {
		return errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Detail("%d bytes at offset %d exceed buffer size %d", length, offset, sizer.Size()).
			Build()
	}
	return nil
}

// readErr classifies a Buffer failure.
func readErr(err error) error {
	return errors.Wrap(errors.PhaseDecode, errors.KindOutOfBounds, err, "buffer read failed")
}
