package abi

import (
	"iter"
	"reflect"
)

// Elements collects the items of a sequence value: []any, any other slice
// or array, or an iter.Seq[any]. Strings and maps are not sequences.
// Nil slices yield an empty result.
func Elements(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case iter.Seq[any]:
		var items []any
		for item := range v {
			items = append(items, item)
		}
		return items, true
	case nil, string:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Array {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return items, true
	}
	return nil, false
}

// Bytes extracts raw bytes from []byte, named byte slices, or strings.
func Bytes(value any) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
		return rv.Bytes(), true
	}
	return nil, false
}
