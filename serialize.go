package runbeam

import (
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// maxSerializeDepth bounds recursion so that an accidentally cyclic value
// degrades to a string leaf instead of overflowing the stack. Callers are
// expected to pass acyclic graphs; the guard is the fail-closed path.
const maxSerializeDepth = 100

// Serialize converts an arbitrary Go value into a JSON-safe value: nil,
// bool, number, string, []any, or map[string]any. It never panics and
// never returns a value that encoding/json cannot marshal.
//
// Conversion walks an ordered chain of capability checks, first match wins:
//
//  1. JSON primitives pass through unchanged.
//  2. time.Time values become RFC 3339 strings.
//  3. uuid.UUID values become their canonical string form.
//  4. json.Marshaler values marshal themselves and are decoded back into
//     generic form.
//  5. encoding.TextMarshaler values become strings.
//  6. Named scalar types (enum-like) reduce to their underlying value.
//  7. Maps convert with keys coerced to strings.
//  8. Slices and arrays convert positionally to []any.
//  9. Structs convert to maps of exported field name (honoring json tags)
//     to converted value.
//  10. Anything else falls back to fmt.Sprint.
//
// Conversion is best effort per leaf: a failure (panic, marshal error)
// inside one element degrades that element to its string representation
// without aborting the rest of the structure.
func Serialize(v any) any {
	return serializeValue(v, 0)
}

func serializeValue(v any, depth int) (out any) {
	defer func() {
		if r := recover(); r != nil {
			out = fallbackString(v)
		}
	}()

	if v == nil {
		return nil
	}
	if depth > maxSerializeDepth {
		return fallbackString(v)
	}

	// Fast path: exact JSON-primitive types skip strategy dispatch
	// entirely. Named types with primitive underlying kinds fall through
	// to the enum-like rule below.
	switch x := v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return x
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.Format(time.RFC3339Nano)
	case time.Duration:
		return x.String()
	case uuid.UUID:
		return x.String()
	case *uuid.UUID:
		if x == nil {
			return nil
		}
		return x.String()
	case []byte:
		return string(x)
	case error:
		return x.Error()
	case json.Marshaler:
		if g, ok := marshalGeneric(x); ok {
			return g
		}
		return fallbackString(v)
	case encoding.TextMarshaler:
		if b, err := x.MarshalText(); err == nil {
			return string(b)
		}
		return fallbackString(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return serializeValue(rv.Elem().Interface(), depth+1)

	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()

	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKeyString(iter.Key())] = serializeValue(iter.Value().Interface(), depth+1)
		}
		return out

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = serializeValue(rv.Index(i).Interface(), depth+1)
		}
		return out

	case reflect.Struct:
		return serializeStruct(rv, depth)

	default:
		// Chan, Func, Complex, UnsafePointer.
		return fallbackString(v)
	}
}

// serializeStruct converts a struct to a map of exported field name to
// converted value. json tags are honored for naming, "-" and "omitempty".
func serializeStruct(rv reflect.Value, depth int) map[string]any {
	t := rv.Type()
	out := make(map[string]any)
	for _, f := range reflect.VisibleFields(t) {
		if f.PkgPath != "" { // unexported
			continue
		}
		if f.Anonymous {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				// Promoted fields are visited individually by VisibleFields.
				continue
			}
		}
		name := f.Name
		omitempty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" && len(parts) == 1 {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, opt := range parts[1:] {
				if opt == "omitempty" {
					omitempty = true
				}
			}
		}
		fv, ok := fieldByIndex(rv, f.Index)
		if !ok {
			continue
		}
		if omitempty && fv.IsZero() {
			continue
		}
		out[name] = serializeValue(fv.Interface(), depth+1)
	}
	return out
}

// fieldByIndex walks a possibly multi-level field index, stopping at
// nil embedded pointers instead of panicking.
func fieldByIndex(rv reflect.Value, index []int) (reflect.Value, bool) {
	for _, i := range index {
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Value{}, false
			}
			rv = rv.Elem()
		}
		rv = rv.Field(i)
	}
	return rv, true
}

// marshalGeneric round-trips a json.Marshaler through encoding/json to
// obtain a generic JSON-safe value.
func marshalGeneric(m json.Marshaler) (any, bool) {
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, false
	}
	var g any
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, false
	}
	return g, true
}

// mapKeyString coerces a map key to a string.
func mapKeyString(k reflect.Value) string {
	v := k.Interface()
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	}
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(v)
}

// fallbackString is the last-resort conversion for a single leaf. It is
// itself panic-safe: a value whose String method panics still yields a
// usable placeholder.
func fallbackString(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = fmt.Sprintf("<unserializable %T>", v)
		}
	}()
	return fmt.Sprint(v)
}

// serializeMap applies Serialize to every value of a string-keyed map.
// Used for run inputs, outputs, and extras before transmission.
func serializeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = serializeValue(v, 0)
	}
	return out
}
