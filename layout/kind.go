package layout

import (
	"github.com/wippyai/schemabuf/errors"
)

// Integral is a literal layout kind. The zero value is not a valid kind.
type Integral uint8

const (
	Int8 Integral = iota + 1
	Int16
	Int32
	Uint8
	Uint16
	Uint32
	Bool
	String
	Buffer
)

var integralNames = [...]string{
	Int8:   "int8",
	Int16:  "int16",
	Int32:  "int32",
	Uint8:  "uint8",
	Uint16: "uint16",
	Uint32: "uint32",
	Bool:   "bool",
	String: "string",
	Buffer: "buffer",
}

func (Integral) isLayout() {}

func (k Integral) String() string {
	if k > 0 && int(k) < len(integralNames) {
		return integralNames[k]
	}
	return "unknown"
}

// Valid reports whether k is one of the declared kinds.
func (k Integral) Valid() bool {
	return k >= Int8 && k <= Buffer
}

// Width returns the fixed byte width of numeric and bool kinds, or 0 for
// the variable-size string and buffer kinds.
func (k Integral) Width() uint32 {
	switch k {
	case Int8, Uint8, Bool:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32:
		return 4
	default:
		return 0
	}
}

// Signed reports whether k is a signed integer kind.
func (k Integral) Signed() bool {
	return k == Int8 || k == Int16 || k == Int32
}

// ParseIntegral maps a kind name such as "uint16" to its Integral.
func ParseIntegral(name string) (Integral, error) {
	for k, n := range integralNames {
		if n != "" && n == name {
			return Integral(k), nil
		}
	}
	return 0, errors.InvalidLayout(nil, "invalid literal layout: %q", name)
}
