package abi

import (
	"reflect"
	"strings"
	"sync"
)

type fieldKey struct {
	goType reflect.Type
	name   string
}

// fieldIndex caches fieldKey -> []int (nil when the field does not exist).
var fieldIndex sync.Map

// Member reads the named member of a record-like value. isRecord is false
// when value is neither a string-keyed map nor a (pointer to a) struct.
// Nil pointers and interfaces in found members are reported as nil, and
// non-nil pointers are dereferenced.
func Member(value any, name string) (member any, found, isRecord bool) {
	if m, ok := value.(map[string]any); ok {
		member, found = m[name]
		return member, found, true
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false, true
		}
		return unwrap(mv), true, true
	case reflect.Struct:
		index := FieldIndex(rv.Type(), name)
		if index == nil {
			return nil, false, true
		}
		fv, err := rv.FieldByIndexErr(index)
		if err != nil {
			// nil embedded pointer
			return nil, false, true
		}
		return unwrap(fv), true, true
	}
	return nil, false, false
}

func unwrap(v reflect.Value) any {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// FieldIndex returns the index path of the Go field matching a layout
// member name, or nil. Results are cached per type.
func FieldIndex(goType reflect.Type, name string) []int {
	key := fieldKey{goType: goType, name: name}
	if cached, ok := fieldIndex.Load(key); ok {
		return cached.([]int)
	}
	index := findGoField(goType, name, nil)
	fieldIndex.Store(key, index)
	return index
}

// findGoField matches by: 1) layout:"name" tag, 2) case-insensitive, 3) kebab-to-camel.
// Fields promoted from untagged embedded structs are searched after direct fields.
func findGoField(goType reflect.Type, name string, prefix []int) []int {
	var embedded []reflect.StructField

	for i := 0; i < goType.NumField(); i++ {
		field := goType.Field(i)

		tag := field.Tag.Get("layout")
		if tag == "-" {
			continue
		}
		if field.Anonymous && tag == "" {
			embedded = append(embedded, field)
			continue
		}
		if !field.IsExported() {
			continue
		}

		if tag != "" {
			if tag == name {
				return append(append([]int{}, prefix...), field.Index...)
			}
			continue
		}

		if strings.EqualFold(field.Name, name) || ToKebabCase(field.Name) == name {
			return append(append([]int{}, prefix...), field.Index...)
		}
	}

	for _, field := range embedded {
		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() != reflect.Struct {
			continue
		}
		if index := findGoField(ft, name, append(append([]int{}, prefix...), field.Index...)); index != nil {
			return index
		}
	}
	return nil
}

// IsRecord reports whether value can supply struct members.
func IsRecord(value any) bool {
	_, _, ok := Member(value, "")
	return ok
}
