package transcoder

import (
	"context"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/schema"
)

// Encoder writes values through compiled writers bound to one interceptor
// set. Encoders hold no per-call state and are safe for concurrent use.
type Encoder struct {
	compiler     *Compiler
	interceptors *schema.Interceptors
}

// NewEncoder creates an encoder with its own compiler. ic may be nil.
func NewEncoder(ic *schema.Interceptors) *Encoder {
	return NewEncoderWithCompiler(NewCompiler(), ic)
}

func NewEncoderWithCompiler(c *Compiler, ic *schema.Interceptors) *Encoder {
	return &Encoder{compiler: c, interceptors: ic}
}

// Compiler returns the compiler backing the encoder.
func (e *Encoder) Compiler() *Compiler {
	return e.compiler
}

// Encode writes value at the start of buf.
func (e *Encoder) Encode(l layout.Layout, value any, buf schemabuf.Buffer) (uint32, error) {
	return e.EncodeAt(l, value, buf, 0)
}

// EncodeAt writes value at offset and returns the bytes consumed. On error
// buf may hold a partial encoding.
func (e *Encoder) EncodeAt(l layout.Layout, value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
	write, err := e.compiler.Writer(l, e.interceptors)
	if err != nil {
		return 0, err
	}
	return write(value, buf, offset)
}

// EncodeToBytes encodes value into a new slice sized to the bytes consumed.
func (e *Encoder) EncodeToBytes(l layout.Layout, value any) ([]byte, error) {
	traits, err := e.compiler.Traits(l)
	if err != nil {
		return nil, err
	}
	buf := schemabuf.NewGrowableBytes(int(max(traits.Size, 64)))
	n, err := e.Encode(l, value, buf)
	if err != nil {
		return nil, err
	}
	// trailing alignment padding is counted but never written
	if size := buf.Size(); size < n {
		if err := buf.Write(size, make([]byte, n-size)); err != nil {
			return nil, writeErr(err)
		}
	}
	return buf.Bytes()[:n], nil
}

// EncodeBatch encodes values[i] into bufs[i] concurrently. The first
// failure cancels the remaining work and is returned with the index of the
// failing value in its path.
func (e *Encoder) EncodeBatch(ctx context.Context, l layout.Layout, values []any, bufs []schemabuf.Buffer) ([]uint32, error) {
	if len(values) != len(bufs) {
		return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
			Detail("batch has %d values but %d buffers", len(values), len(bufs)).
			Build()
	}
	write, err := e.compiler.Writer(l, e.interceptors)
	if err != nil {
		return nil, err
	}

	sizes := make([]uint32, len(values))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range values {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := write(values[i], bufs[i], 0)
			if err != nil {
				return withPath(err, "["+strconv.Itoa(i)+"]")
			}
			sizes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sizes, nil
}

// Decoder reads values through compiled readers bound to one interceptor
// set. Safe for concurrent use.
type Decoder struct {
	compiler     *Compiler
	interceptors *schema.Interceptors
}

// NewDecoder creates a decoder with its own compiler. ic may be nil.
func NewDecoder(ic *schema.Interceptors) *Decoder {
	return NewDecoderWithCompiler(NewCompiler(), ic)
}

func NewDecoderWithCompiler(c *Compiler, ic *schema.Interceptors) *Decoder {
	return &Decoder{compiler: c, interceptors: ic}
}

// Compiler returns the compiler backing the decoder.
func (d *Decoder) Compiler() *Compiler {
	return d.compiler
}

// Decode reads the value at offset.
func (d *Decoder) Decode(l layout.Layout, buf schemabuf.Buffer, offset uint32) (any, error) {
	read, err := d.compiler.Reader(l, d.interceptors)
	if err != nil {
		return nil, err
	}
	return read(buf, offset)
}

// DecodeBytes reads the value at the start of data.
func (d *Decoder) DecodeBytes(l layout.Layout, data []byte) (any, error) {
	return d.Decode(l, schemabuf.NewBytes(data), 0)
}

// DecodeBatch decodes the value at the start of each buffer concurrently.
func (d *Decoder) DecodeBatch(ctx context.Context, l layout.Layout, bufs []schemabuf.Buffer) ([]any, error) {
	read, err := d.compiler.Reader(l, d.interceptors)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(bufs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range bufs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := read(bufs[i], 0)
			if err != nil {
				return withPath(err, "["+strconv.Itoa(i)+"]")
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
