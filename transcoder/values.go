package transcoder

import "reflect"

// Tagged is implemented by values of variant layouts. VariantTag selects
// the alternative struct whose Tag matches; the value itself is then
// encoded as that struct.
type Tagged interface {
	VariantTag() string
}

// VariantValue pairs a variant tag with the alternative's value. Decoding
// a variant always yields a VariantValue.
type VariantValue struct {
	Value any    `json:"value"`
	Tag   string `json:"tag"`
}

// VariantTag implements Tagged.
func (v VariantValue) VariantTag() string {
	return v.Tag
}

// variantOf splits a variant value into its tag and payload.
func variantOf(value any) (tag string, payload any, ok bool) {
	switch v := value.(type) {
	case VariantValue:
		return v.Tag, v.Value, true
	case *VariantValue:
		if v == nil {
			return "", nil, false
		}
		return v.Tag, v.Value, true
	case Tagged:
		return v.VariantTag(), value, true
	}
	return "", nil, false
}

// absent reports whether value represents a missing optional: nil or a
// nil pointer.
func absent(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
