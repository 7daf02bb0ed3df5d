// Package schemabuf provides a schema-driven binary encoding engine.
//
// A layout declares how a value is arranged in a flat byte buffer: integral
// widths, struct members at explicit byte offsets, out-of-line pointer members,
// fixed arrays, length-prefixed vectors, enums, optionals and tagged variants.
// Writers and readers are compiled from a layout once and reused for every
// encode and decode, so a simulation process and sandboxed script processes
// can exchange structured state through shared buffers with deterministic
// offsets.
//
// # Architecture Overview
//
//	schemabuf/           Root package with the Buffer interface and Bytes
//	├── layout/          Layout declarations, traits calculator, auto-layout builder
//	├── schema/          Named registration, mod extensions, interceptors
//	├── transcoder/      Compiled writers/readers, Encoder and Decoder
//	├── sandbox/         Guest linear memory (wazero) as a Buffer
//	├── witschema/       WIT type import
//	├── errors/          Structured error types
//	└── cmd/layoutc/     Layout inspection CLI
//
// # Quick Start
//
//	pos, _ := layout.StructOf("Position",
//	    layout.Field{Name: "x", Layout: layout.Int32},
//	    layout.Field{Name: "y", Layout: layout.Int32},
//	)
//
//	enc := transcoder.NewEncoder(nil)
//	data, err := enc.EncodeToBytes(pos, map[string]any{"x": 5, "y": -3})
//	// data = 05 00 00 00 fd ff ff ff
//
//	dec := transcoder.NewDecoderWithCompiler(enc.Compiler(), nil)
//	value, err := dec.DecodeBytes(pos, data)
//	// value = map[string]any{"x": int32(5), "y": int32(-3)}
//
// # Binary Format
//
// All integers are little-endian. Pointers are 4-byte unsigned offsets
// relative to the start of the buffer, never to the enclosing struct.
// The layout must be known to both the writer and the reader; the format
// carries no type information beyond enum indices and variant indices.
//
// # Thread Safety
//
// Compiled writers and readers are safe for concurrent use on disjoint
// buffers. A single Buffer must not be mutated concurrently with an encode
// or decode that targets it.
package schemabuf
