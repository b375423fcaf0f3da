package dynamic

import (
	"math"

	reflect "github.com/goccy/go-reflect"

	"github.com/protodyn/protodyn/desc"
)

// Canonical value representation per kind:
//
//	bool, string                      as themselves
//	int32/sint32/sfixed32, enum       int32
//	int64/sint64/sfixed64             int64
//	uint32/fixed32                    uint32
//	uint64/fixed64                    uint64
//	float, double                     float32, float64
//	bytes                             []byte
//	message, group                    *Message
//	repeated                          []interface{}
//	map                               map[interface{}]interface{}
//
// coerceFieldValue and coerceElementValue convert natural Go values (any
// int width, named types, typed slices and maps) to this representation,
// failing with a *TypeError on a kind mismatch.

func coerceFieldValue(f fieldRef, val interface{}) (interface{}, error) {
	switch {
	case f.IsMap():
		return coerceMapValue(f, val)
	case f.IsList():
		return coerceListValue(f, val)
	default:
		return coerceElementValue(f, val)
	}
}

func coerceMapValue(f fieldRef, val interface{}) (interface{}, error) {
	rv := reflect.ValueOf(val)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, typeErrorf(f.FullName(), "expecting a map, got %T", val)
	}
	kf, vf := f.MapKeyField(), f.MapValueField()
	out := make(map[interface{}]interface{}, rv.Len())
	for _, rk := range rv.MapKeys() {
		k, err := coerceElementValue(kf, rk.Interface())
		if err != nil {
			return nil, err
		}
		v, err := coerceElementValue(vf, rv.MapIndex(rk).Interface())
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func coerceListValue(f fieldRef, val interface{}) (interface{}, error) {
	rv := reflect.ValueOf(val)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, typeErrorf(f.FullName(), "expecting a slice, got %T", val)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		v, err := coerceElementValue(f, rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// coerceElementValue converts one scalar, enum, or message value. For
// repeated and map fields it converts a single element, key, or map value.
func coerceElementValue(f fieldRef, val interface{}) (interface{}, error) {
	if val == nil {
		return nil, typeErrorf(f.FullName(), "value cannot be nil")
	}
	switch f.Kind() {
	case desc.MessageKind, desc.GroupKind:
		dm, ok := val.(*Message)
		if !ok || dm == nil {
			return nil, typeErrorf(f.FullName(), "expecting a *dynamic.Message, got %T", val)
		}
		mt, _ := f.MessageType()
		if dm.md != mt {
			return nil, typeErrorf(f.FullName(), "expecting a message of type %s, got %s", mt.FullName(), dm.md.FullName())
		}
		return dm, nil
	case desc.BoolKind:
		rv := reflect.ValueOf(val)
		if rv.Kind() != reflect.Bool {
			return nil, typeErrorf(f.FullName(), "expecting a bool, got %T", val)
		}
		return rv.Bool(), nil
	case desc.StringKind:
		rv := reflect.ValueOf(val)
		if rv.Kind() != reflect.String {
			return nil, typeErrorf(f.FullName(), "expecting a string, got %T", val)
		}
		return rv.String(), nil
	case desc.BytesKind:
		rv := reflect.ValueOf(val)
		if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, typeErrorf(f.FullName(), "expecting a []byte, got %T", val)
		}
		return rv.Bytes(), nil
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind, desc.EnumKind:
		n, err := coerceInt(f, val, math.MinInt32, math.MaxInt32)
		return int32(n), err
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		return coerceInt(f, val, math.MinInt64, math.MaxInt64)
	case desc.Uint32Kind, desc.Fixed32Kind:
		n, err := coerceUint(f, val, math.MaxUint32)
		return uint32(n), err
	case desc.Uint64Kind, desc.Fixed64Kind:
		return coerceUint(f, val, math.MaxUint64)
	case desc.FloatKind:
		fv, err := coerceFloat(f, val)
		return float32(fv), err
	case desc.DoubleKind:
		return coerceFloat(f, val)
	default:
		return nil, typeErrorf(f.FullName(), "unsupported kind %v", f.Kind())
	}
}

func coerceInt(f fieldRef, val interface{}, min, max int64) (int64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < min || n > max {
			return 0, typeErrorf(f.FullName(), "value %d out of range", n)
		}
		return n, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > uint64(max) {
			return 0, typeErrorf(f.FullName(), "value %d out of range", u)
		}
		return int64(u), nil
	default:
		return 0, typeErrorf(f.FullName(), "expecting an integer, got %T", val)
	}
}

func coerceUint(f fieldRef, val interface{}, max uint64) (uint64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > max {
			return 0, typeErrorf(f.FullName(), "value %d out of range", u)
		}
		return u, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < 0 || uint64(n) > max {
			return 0, typeErrorf(f.FullName(), "value %d out of range", n)
		}
		return uint64(n), nil
	default:
		return 0, typeErrorf(f.FullName(), "expecting an unsigned integer, got %T", val)
	}
}

func coerceFloat(f fieldRef, val interface{}) (float64, error) {
	rv := reflect.ValueOf(val)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	default:
		return 0, typeErrorf(f.FullName(), "expecting a number, got %T", val)
	}
}
