package schemabuf

import (
	"encoding/binary"
	"fmt"
)

// Buffer is a typed accessor over a raw byte region. Offsets are absolute
// within the buffer; callers are responsible for alignment.
type Buffer interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
}

// Sizer provides the current addressable size of a Buffer in bytes.
type Sizer interface {
	Size() uint32
}

// Bytes is a Buffer over a Go byte slice. A fixed Bytes rejects access past
// the end of the slice; a growable Bytes extends the slice on write.
type Bytes struct {
	data     []byte
	growable bool
}

// NewBytes wraps data. Writes past len(data) fail.
func NewBytes(data []byte) *Bytes {
	return &Bytes{data: data}
}

// NewGrowableBytes returns an empty Bytes that grows to fit every write.
func NewGrowableBytes(capacity int) *Bytes {
	return &Bytes{data: make([]byte, 0, capacity), growable: true}
}

// Bytes returns the underlying slice. For a growable buffer it ends at the
// highest byte written so far.
func (b *Bytes) Bytes() []byte {
	return b.data
}

// Size implements Sizer.
func (b *Bytes) Size() uint32 {
	return uint32(len(b.data))
}

// Reset truncates a growable buffer for reuse.
func (b *Bytes) Reset() {
	if b.growable {
		b.data = b.data[:0]
	}
}

func (b *Bytes) span(offset, length uint32, write bool) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(b.data)) {
		if !write || !b.growable || end > 1<<32-1 {
			return nil, fmt.Errorf("buffer access out of bounds: offset=%d, length=%d, size=%d", offset, length, len(b.data))
		}
		b.grow(int(end))
	}
	return b.data[offset:end], nil
}

func (b *Bytes) grow(n int) {
	if n <= cap(b.data) {
		old := len(b.data)
		b.data = b.data[:n]
		clear(b.data[old:])
		return
	}
	newCap := 2 * cap(b.data)
	if newCap < n {
		newCap = n
	}
	grown := make([]byte, n, newCap)
	copy(grown, b.data)
	b.data = grown
}

// Read returns a view of length bytes at offset. The slice aliases the buffer.
func (b *Bytes) Read(offset uint32, length uint32) ([]byte, error) {
	return b.span(offset, length, false)
}

// Write copies data to offset.
func (b *Bytes) Write(offset uint32, data []byte) error {
	dst, err := b.span(offset, uint32(len(data)), true)
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (b *Bytes) ReadU8(offset uint32) (uint8, error) {
	p, err := b.span(offset, 1, false)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (b *Bytes) ReadU16(offset uint32) (uint16, error) {
	p, err := b.span(offset, 2, false)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(p), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (b *Bytes) ReadU32(offset uint32) (uint32, error) {
	p, err := b.span(offset, 4, false)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(p), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (b *Bytes) WriteU8(offset uint32, value uint8) error {
	p, err := b.span(offset, 1, true)
	if err != nil {
		return err
	}
	p[0] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (b *Bytes) WriteU16(offset uint32, value uint16) error {
	p, err := b.span(offset, 2, true)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(p, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (b *Bytes) WriteU32(offset uint32, value uint32) error {
	p, err := b.span(offset, 4, true)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(p, value)
	return nil
}
