// Package structval converts generic Go values (the shape produced by decoding
// JSON into `any`) to and from protobuf Struct values, which is how rule and
// generator parameters travel between the driver and a plugin.
//
// Numbers are carried as float64 on the wire. Integers outside ±2^53 lose
// precision on a round trip; this matches what every other plugin
// implementation does and is kept deliberately.
package structval

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToValue converts v into a protobuf Value.
//
// Supported inputs are nil, bool, all integer and float kinds, string,
// []any (or any slice) and map[string]any (or any string-keyed map).
func ToValue(v any) (*structpb.Value, error) {
	switch val := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case *structpb.Value:
		return val, nil
	case bool:
		return structpb.NewBoolValue(val), nil
	case string:
		return structpb.NewStringValue(val), nil
	case float64:
		return structpb.NewNumberValue(val), nil
	case float32:
		return structpb.NewNumberValue(float64(val)), nil
	case int:
		return structpb.NewNumberValue(float64(val)), nil
	case int8:
		return structpb.NewNumberValue(float64(val)), nil
	case int16:
		return structpb.NewNumberValue(float64(val)), nil
	case int32:
		return structpb.NewNumberValue(float64(val)), nil
	case int64:
		return structpb.NewNumberValue(float64(val)), nil
	case uint:
		return structpb.NewNumberValue(float64(val)), nil
	case uint8:
		return structpb.NewNumberValue(float64(val)), nil
	case uint16:
		return structpb.NewNumberValue(float64(val)), nil
	case uint32:
		return structpb.NewNumberValue(float64(val)), nil
	case uint64:
		return structpb.NewNumberValue(float64(val)), nil
	case []any:
		list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(val))}
		for i, item := range val {
			converted, err := ToValue(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list.Values = append(list.Values, converted)
		}
		return structpb.NewListValue(list), nil
	case map[string]any:
		s, err := ToStruct(val)
		if err != nil {
			return nil, err
		}
		return structpb.NewStructValue(s), nil
	}

	return reflectValue(v)
}

// reflectValue handles typed slices and maps such as []string or map[string]string.
func reflectValue(v any) (*structpb.Value, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return ToValue(items)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("structval: unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return ToValue(m)
	case reflect.Pointer:
		if rv.IsNil() {
			return structpb.NewNullValue(), nil
		}
		return ToValue(rv.Elem().Interface())
	}
	return nil, fmt.Errorf("structval: unsupported type %T", v)
}

// ToStruct converts a string-keyed map into a protobuf Struct.
func ToStruct(m map[string]any) (*structpb.Struct, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(m))}
	for key, item := range m {
		converted, err := ToValue(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		s.Fields[key] = converted
	}
	return s, nil
}

// FromValue converts a protobuf Value back into a generic Go value.
// Whole numbers within ±2^53 decode as int, other numbers as float64.
// A nil value or one with no kind set decodes as nil.
func FromValue(v *structpb.Value) any {
	if v == nil {
		return nil
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return nil
	case *structpb.Value_BoolValue:
		return kind.BoolValue
	case *structpb.Value_NumberValue:
		n := kind.NumberValue
		if IsExactInteger(n) && n >= math.MinInt && n <= math.MaxInt {
			return int(n)
		}
		return n
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_ListValue:
		values := kind.ListValue.GetValues()
		out := make([]any, len(values))
		for i, item := range values {
			out[i] = FromValue(item)
		}
		return out
	case *structpb.Value_StructValue:
		return FromStruct(kind.StructValue)
	default:
		return nil
	}
}

// FromStruct converts a protobuf Struct into a map. A nil struct yields an empty map.
func FromStruct(s *structpb.Struct) map[string]any {
	fields := s.GetFields()
	out := make(map[string]any, len(fields))
	for key, item := range fields {
		out[key] = FromValue(item)
	}
	return out
}

// SortedKeys returns the keys of m in lexical order, for deterministic iteration.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// IsExactInteger reports whether f carries an integer that survived the float64 wire encoding.
func IsExactInteger(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1<<53
}
