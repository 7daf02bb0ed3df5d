// Package abi provides internal utilities for converting runtime values to
// and from their layout representation.
//
// This package contains value coercion helpers and other low-level
// utilities used by the transcoder package.
//
// # Contents
//
//   - coerce.go: Numeric and boolean coercion with per-kind range checks
//   - count.go: Element collection for slices, arrays and iterators
//   - fields.go: Member lookup on maps and Go structs
//   - helpers.go: Overflow-safe arithmetic and naming helpers
//
// This package is internal to the transcoder.
package abi
