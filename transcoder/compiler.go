package transcoder

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/schemabuf"
	"github.com/wippyai/schemabuf/errors"
	"github.com/wippyai/schemabuf/layout"
	"github.com/wippyai/schemabuf/schema"
	"github.com/wippyai/schemabuf/transcoder/internal/memo"
)

// Writer encodes value at offset and returns the bytes consumed, counting
// out-of-line data written after the inline footprint.
type Writer func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error)

// Reader decodes the value at offset.
type Reader func(buf schemabuf.Buffer, offset uint32) (any, error)

// memberWriter writes the members of one struct level and returns the
// advanced locals cursor.
type memberWriter func(value any, buf schemabuf.Buffer, offset, locals uint32) (uint32, error)

// memberReader reads the members of one struct level into out.
type memberReader func(buf schemabuf.Buffer, offset uint32, out map[string]any) error

type cacheKey struct {
	layout       layout.Layout
	interceptors *schema.Interceptors
}

// Compiler compiles and caches writers and readers per (layout,
// interceptors) identity. It is an owned registry: independent compilers
// share nothing. Safe for concurrent use.
type Compiler struct {
	traits        *layout.Calculator
	writers       *memo.Cache[cacheKey, Writer]
	readers       *memo.Cache[cacheKey, Reader]
	memberWriters *memo.Cache[cacheKey, memberWriter]
	memberReaders *memo.Cache[cacheKey, memberReader]
	options       Options
	mu            sync.Mutex
}

func NewCompiler() *Compiler {
	return NewCompilerWithOptions(DefaultOptions())
}

func NewCompilerWithOptions(opts Options) *Compiler {
	c := &Compiler{
		traits:  layout.NewCalculator(),
		options: opts,
	}
	c.writers = memo.New[cacheKey, Writer](&c.mu, forwardWriter)
	c.readers = memo.New[cacheKey, Reader](&c.mu, forwardReader)
	c.memberWriters = memo.New[cacheKey, memberWriter](&c.mu, forwardMemberWriter)
	c.memberReaders = memo.New[cacheKey, memberReader](&c.mu, forwardMemberReader)
	return c
}

// Options returns the configuration.
func (c *Compiler) Options() Options {
	return c.options
}

// Traits returns the traits of l, computed once per node.
func (c *Compiler) Traits(l layout.Layout) (layout.Traits, error) {
	return c.traits.Calculate(l)
}

// Writer returns the compiled writer for l under ic. ic may be nil.
func (c *Compiler) Writer(l layout.Layout, ic *schema.Interceptors) (Writer, error) {
	return c.writers.Get(cacheKey{layout: l, interceptors: ic}, c.buildWriter)
}

// Reader returns the compiled reader for l under ic. ic may be nil.
func (c *Compiler) Reader(l layout.Layout, ic *schema.Interceptors) (Reader, error) {
	return c.readers.Get(cacheKey{layout: l, interceptors: ic}, c.buildReader)
}

// CacheStats describes the compiled function cache.
type CacheStats struct {
	Writers int
	Readers int
	Builds  int64
}

// Stats returns cache occupancy and the number of builds run so far.
func (c *Compiler) Stats() CacheStats {
	return CacheStats{
		Writers: c.writers.Len(),
		Readers: c.readers.Len(),
		Builds: c.writers.Builds() + c.readers.Builds() +
			c.memberWriters.Builds() + c.memberReaders.Builds(),
	}
}

// nested lookups, valid only while a build holds the shared mutex

func (c *Compiler) writerFor(l layout.Layout, ic *schema.Interceptors) (Writer, error) {
	return c.writers.Nested(cacheKey{layout: l, interceptors: ic}, c.buildWriter)
}

func (c *Compiler) readerFor(l layout.Layout, ic *schema.Interceptors) (Reader, error) {
	return c.readers.Nested(cacheKey{layout: l, interceptors: ic}, c.buildReader)
}

func (c *Compiler) memberWriterFor(s *layout.Struct, ic *schema.Interceptors) (memberWriter, error) {
	return c.memberWriters.Nested(cacheKey{layout: s, interceptors: ic}, c.buildMemberWriter)
}

func (c *Compiler) memberReaderFor(s *layout.Struct, ic *schema.Interceptors) (memberReader, error) {
	return c.memberReaders.Nested(cacheKey{layout: s, interceptors: ic}, c.buildMemberReader)
}

// validateStruct checks the members declared directly on s.
func (c *Compiler) validateStruct(s *layout.Struct, ic *schema.Interceptors) error {
	for _, m := range s.Members {
		mt, err := c.traits.Calculate(m.Layout)
		if err != nil {
			return withPath(err, m.Name)
		}
		if !m.Pointer && !mt.HasStride {
			return errors.InvalidLayout([]string{m.Name},
				"member %s of variable size %s must be a pointer", m.Name, m.Layout)
		}
		if !m.Pointer {
			continue
		}
		if mi := ic.Member(s, m.Name); mi != nil && mi.Raw() {
			return errors.InvalidLayout([]string{m.Name}, "pointer member cannot use a raw buffer interceptor")
		}
		if ti := ic.Lookup(m.Layout); ti != nil && ti.Raw() {
			return errors.InvalidLayout([]string{m.Name}, "pointer member layout %s has a raw buffer interceptor", m.Layout)
		}
	}
	return nil
}

// withPath prefixes the path of structured errors with segment.
func withPath(err error, segment string) error {
	if le, ok := err.(*errors.Error); ok {
		return le.WithPath(segment)
	}
	return err
}

func logCompiled(kind string, l layout.Layout, err error) {
	if err != nil {
		Logger().Debug(kind+" compilation failed", zap.Stringer("layout", l), zap.Error(err))
		return
	}
	Logger().Debug("compiled "+kind, zap.Stringer("layout", l))
}

func forwardWriter(get func() (Writer, error)) Writer {
	return func(value any, buf schemabuf.Buffer, offset uint32) (uint32, error) {
		w, err := get()
		if err != nil {
			return 0, err
		}
		return w(value, buf, offset)
	}
}

func forwardReader(get func() (Reader, error)) Reader {
	return func(buf schemabuf.Buffer, offset uint32) (any, error) {
		r, err := get()
		if err != nil {
			return nil, err
		}
		return r(buf, offset)
	}
}

func forwardMemberWriter(get func() (memberWriter, error)) memberWriter {
	return func(value any, buf schemabuf.Buffer, offset, locals uint32) (uint32, error) {
		w, err := get()
		if err != nil {
			return 0, err
		}
		return w(value, buf, offset, locals)
	}
}

func forwardMemberReader(get func() (memberReader, error)) memberReader {
	return func(buf schemabuf.Buffer, offset uint32, out map[string]any) error {
		r, err := get()
		if err != nil {
			return err
		}
		return r(buf, offset, out)
	}
}
