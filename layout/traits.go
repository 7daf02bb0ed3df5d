package layout

import (
	"reflect"
	"sync"

	"github.com/wippyai/schemabuf/errors"
)

// PointerSize is the width of pointer slots, vector and string length
// prefixes, and variant discriminators.
const PointerSize = 4

// MaxEnumValues is the number of values addressable by a 1-byte index.
const MaxEnumValues = 256

// Traits are the derived alignment, inline size and element stride of a
// layout. Stride is meaningful only when HasStride is set, which happens
// when every value of the layout occupies the same fixed footprint.
type Traits struct {
	Align     uint32
	Size      uint32
	Stride    uint32
	HasStride bool
}

// AlignTo rounds address up to the next multiple of align. Align need not
// be a power of two.
func AlignTo(address, align uint32) uint32 {
	if align == 0 {
		return address
	}
	remainder := address % align
	if remainder == 0 {
		return address
	}
	return address + align - remainder
}

// Calculator computes traits and caches them by node identity.
// Safe for concurrent use.
type Calculator struct {
	cache    map[Layout]Traits
	visiting map[Layout]bool
	mu       sync.Mutex
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache:    make(map[Layout]Traits),
		visiting: make(map[Layout]bool),
	}
}

// GetTraits computes traits without a shared cache.
func GetTraits(l Layout) (Traits, error) {
	return NewCalculator().Calculate(l)
}

// Calculate returns the traits of l, or an InvalidLayout error for
// malformed nodes.
func (c *Calculator) Calculate(l Layout) (Traits, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calculate(l, nil)
}

func fixed(width uint32) Traits {
	return Traits{Align: width, Size: width, Stride: width, HasStride: true}
}

func (c *Calculator) calculate(l Layout, path []string) (Traits, error) {
	if l == nil {
		return Traits{}, errors.InvalidLayout(path, "nil layout")
	}
	if k, ok := l.(Integral); ok {
		return c.calculateIntegral(k, path)
	}

	if cached, ok := c.cache[l]; ok {
		return cached, nil
	}
	if c.visiting[l] {
		return Traits{}, errors.New(errors.PhaseCompile, errors.KindInvalidLayout).
			Path(path...).
			Layout(l.String()).
			Detail("recursive layout without pointer indirection").
			Build()
	}
	c.visiting[l] = true
	defer delete(c.visiting, l)

	var (
		traits Traits
		err    error
	)
	switch node := l.(type) {
	case *Struct:
		traits, err = c.calculateStruct(node, path)
	case *Array:
		traits, err = c.calculateArray(node, path)
	case *Vector:
		traits, err = c.calculateVector(node, path)
	case *Enum:
		traits, err = c.calculateEnum(node, path)
	case *Optional:
		traits, err = c.calculateOptional(node, path)
	case *Variant:
		traits, err = c.calculateVariant(node, path)
	default:
		err = errors.InvalidLayout(path, "unrecognized layout node %T", l)
	}
	if err != nil {
		return Traits{}, err
	}

	c.cache[l] = traits
	return traits, nil
}

func (c *Calculator) calculateIntegral(k Integral, path []string) (Traits, error) {
	switch k {
	case String, Buffer:
		return Traits{Align: PointerSize, Size: PointerSize}, nil
	default:
		if w := k.Width(); w != 0 {
			return fixed(w), nil
		}
		return Traits{}, errors.InvalidLayout(path, "invalid literal layout: %d", uint8(k))
	}
}

func (c *Calculator) calculateStruct(s *Struct, path []string) (Traits, error) {
	if s.Cyclic() {
		return Traits{}, errors.New(errors.PhaseCompile, errors.KindInvalidLayout).
			Path(path...).
			Layout(s.String()).
			Detail("inheritance chain is cyclic").
			Build()
	}

	traits := Traits{Align: 1}
	hasPointer := false
	names := make(map[string]bool)

	for _, m := range s.AllMembers() {
		memberPath := append(append([]string{}, path...), m.Name)
		if m.Layout == nil {
			return Traits{}, errors.InvalidLayout(memberPath, "member has nil layout")
		}
		if names[m.Name] {
			return Traits{}, errors.InvalidLayout(memberPath, "duplicate member %q", m.Name)
		}
		names[m.Name] = true

		var align, size uint32
		if m.Pointer {
			hasPointer = true
			align, size = PointerSize, PointerSize
		} else {
			mt, err := c.calculate(m.Layout, memberPath)
			if err != nil {
				return Traits{}, err
			}
			align, size = mt.Align, mt.Size
		}

		traits.Align = max(traits.Align, align)
		traits.Size = max(traits.Size, m.Offset+size)
	}

	if !hasPointer {
		traits.Stride = AlignTo(traits.Size, traits.Size)
		traits.HasStride = true
	}
	return traits, nil
}

func (c *Calculator) calculateArray(a *Array, path []string) (Traits, error) {
	if a.Length == 0 {
		return Traits{}, errors.InvalidLayout(path, "array length must be positive")
	}
	elem, err := c.calculate(a.Element, append(path, "[]"))
	if err != nil {
		return Traits{}, err
	}

	traits := Traits{
		Align: elem.Align,
		Size:  elem.Size * a.Length,
	}
	if elem.HasStride {
		// Elements sit at stride(T) intervals, so the inline footprint is the
		// span of the last element. This equals size(T)*n unless stride(T)
		// exceeds size(T), as for fixed optionals.
		traits.Stride = elem.Stride*(a.Length-1) + elem.Size
		traits.Size = traits.Stride
		traits.HasStride = true
	}
	return traits, nil
}

func (c *Calculator) calculateVector(v *Vector, path []string) (Traits, error) {
	elem, err := c.calculate(v.Element, append(path, "[]"))
	if err != nil {
		return Traits{}, err
	}
	return Traits{
		Align: max(PointerSize, elem.Align),
		Size:  PointerSize,
	}, nil
}

func (c *Calculator) calculateEnum(e *Enum, path []string) (Traits, error) {
	if len(e.Values) == 0 {
		return Traits{}, errors.InvalidLayout(path, "enum has no values")
	}
	if len(e.Values) > MaxEnumValues {
		return Traits{}, errors.InvalidLayout(path, "enum has %d values, at most %d fit in one byte", len(e.Values), MaxEnumValues)
	}

	seen := make(map[any]bool, len(e.Values))
	for i, v := range e.Values {
		if v == nil || !reflect.TypeOf(v).Comparable() {
			return Traits{}, errors.InvalidLayout(path, "enum value %d is not comparable", i)
		}
		if seen[v] {
			return Traits{}, errors.InvalidLayout(path, "duplicate enum value %v", v)
		}
		seen[v] = true
	}
	return fixed(1), nil
}

func (c *Calculator) calculateOptional(o *Optional, path []string) (Traits, error) {
	elem, err := c.calculate(o.Element, append(path, "?"))
	if err != nil {
		return Traits{}, err
	}

	if !elem.HasStride {
		return Traits{
			Align: max(PointerSize, elem.Align),
			Size:  PointerSize,
		}, nil
	}

	size := elem.Size + 1
	return Traits{
		Align:     elem.Align,
		Size:      size,
		Stride:    AlignTo(size, elem.Align),
		HasStride: true,
	}, nil
}

func (c *Calculator) calculateVariant(v *Variant, path []string) (Traits, error) {
	if len(v.Alternatives) == 0 {
		return Traits{}, errors.InvalidLayout(path, "variant has no alternatives")
	}

	traits := Traits{Align: PointerSize}
	var maxSize uint32
	tags := make(map[string]bool, len(v.Alternatives))

	for i, alt := range v.Alternatives {
		if alt == nil {
			return Traits{}, errors.InvalidLayout(path, "variant alternative %d is nil", i)
		}
		if alt.Tag == "" {
			return Traits{}, errors.InvalidLayout(path, "variant alternative %d has no tag", i)
		}
		if tags[alt.Tag] {
			return Traits{}, errors.InvalidLayout(path, "duplicate variant tag %q", alt.Tag)
		}
		tags[alt.Tag] = true

		at, err := c.calculate(alt, append(path, alt.Tag))
		if err != nil {
			return Traits{}, err
		}
		traits.Align = max(traits.Align, at.Align)
		maxSize = max(maxSize, at.Size)
	}

	traits.Size = PointerSize + maxSize
	return traits, nil
}
