// Package fields resolves configured field names (key, size, type) on
// arbitrary item values: maps with string keys, structs and pointers to
// structs.
//
// Struct fields match by Go name, by a case-insensitive Go name, or by the
// name in a `json`, `yaml` or `mapstructure` tag, in that order.
package fields

import (
	"fmt"
	"reflect"
	"strings"
)

// Resolver reads the configured fields of items.
type Resolver struct {
	KeyField  string
	SizeField string
	TypeField string
}

// Key returns the key of item. With no KeyField the item itself is the key.
// ok is false when the key is missing, nil or not comparable.
func (r Resolver) Key(item any) (any, bool) {
	v := item
	if r.KeyField != "" {
		var found bool
		if v, found = Lookup(item, r.KeyField); !found {
			return nil, false
		}
	}
	if v == nil || !reflect.TypeOf(v).Comparable() {
		return nil, false
	}
	return v, true
}

// Size returns the numeric size field of item. ok is false when no size
// field is configured, the field is missing or it is not a number.
func (r Resolver) Size(item any) (float64, bool) {
	if r.SizeField == "" {
		return 0, false
	}
	v, found := Lookup(item, r.SizeField)
	if !found {
		return 0, false
	}
	return toFloat(v)
}

// Type returns the type tag of item, "" when no type field is set or the
// item has none.
func (r Resolver) Type(item any) string {
	if r.TypeField == "" {
		return ""
	}
	v, found := Lookup(item, r.TypeField)
	if !found || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Lookup returns the value of field name on item.
func Lookup(item any, name string) (any, bool) {
	if item == nil {
		return nil, false
	}

	if m, ok := item.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}

	rv := reflect.ValueOf(item)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true

	case reflect.Struct:
		f, ok := structField(rv.Type(), name)
		if !ok {
			return nil, false
		}
		fv := rv.FieldByIndex(f.Index)
		if !fv.CanInterface() {
			return nil, false
		}
		return fv.Interface(), true
	}

	return nil, false
}

func structField(t reflect.Type, name string) (reflect.StructField, bool) {
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return f, true
	}
	if f, ok := t.FieldByNameFunc(func(n string) bool { return strings.EqualFold(n, name) }); ok && f.IsExported() {
		return f, true
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		for _, tag := range []string{"json", "yaml", "mapstructure"} {
			if tagName(f.Tag.Get(tag)) == name {
				return f, true
			}
		}
	}
	return reflect.StructField{}, false
}

func tagName(tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	return name
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanFloat():
		return rv.Float(), true
	case rv.CanInt():
		return float64(rv.Int()), true
	case rv.CanUint():
		return float64(rv.Uint()), true
	}
	return 0, false
}
