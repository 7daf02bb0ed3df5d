package abi

import (
	"math"
	"reflect"

	"github.com/wippyai/schemabuf/layout"
)

// CoerceToInt64 handles JSON decoded numbers (float64), every Go integer
// type, and named types whose underlying kind is numeric. Floats must hold
// an exact integer.
func CoerceToInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), true
		}
	case float64:
		return floatToInt64(v)
	case float32:
		return floatToInt64(float64(v))
	case nil, bool, string:
		return 0, false
	default:
		return coerceReflect(reflect.ValueOf(value))
	}
	return 0, false
}

func floatToInt64(v float64) (int64, bool) {
	// 2^63 is exactly representable; anything at or above it overflows.
	if v >= -math.Exp2(63) && v < math.Exp2(63) && v == math.Trunc(v) {
		return int64(v), true
	}
	return 0, false
}

func coerceReflect(rv reflect.Value) (int64, bool) {
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return 0, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := rv.Uint(); u <= math.MaxInt64 {
			return int64(u), true
		}
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	}
	return 0, false
}

// CoerceToBool accepts bool, named bool types, and the integers 0 and 1.
func CoerceToBool(value any) (bool, bool) {
	if b, ok := value.(bool); ok {
		return b, true
	}
	rv := reflect.ValueOf(value)
	if rv.IsValid() && rv.Kind() == reflect.Bool {
		return rv.Bool(), true
	}
	if n, ok := CoerceToInt64(value); ok && (n == 0 || n == 1) {
		return n == 1, true
	}
	return false, false
}

// Range returns the inclusive bounds of a numeric integral kind.
func Range(k layout.Integral) (lo, hi int64) {
	switch k {
	case layout.Int8:
		return math.MinInt8, math.MaxInt8
	case layout.Int16:
		return math.MinInt16, math.MaxInt16
	case layout.Int32:
		return math.MinInt32, math.MaxInt32
	case layout.Uint8:
		return 0, math.MaxUint8
	case layout.Uint16:
		return 0, math.MaxUint16
	case layout.Uint32:
		return 0, math.MaxUint32
	case layout.Bool:
		return 0, 1
	}
	return 0, -1
}

// Fits reports whether v is representable in kind k.
func Fits(k layout.Integral, v int64) bool {
	lo, hi := Range(k)
	return v >= lo && v <= hi
}

// Narrow converts raw little-endian bits read from a buffer to the Go type
// that represents kind k.
func Narrow(k layout.Integral, bits uint32) any {
	switch k {
	case layout.Int8:
		return int8(bits)
	case layout.Int16:
		return int16(bits)
	case layout.Int32:
		return int32(bits)
	case layout.Uint8:
		return uint8(bits)
	case layout.Uint16:
		return uint16(bits)
	case layout.Uint32:
		return bits
	case layout.Bool:
		return bits != 0
	}
	return nil
}
