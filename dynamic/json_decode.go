package dynamic

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/protodyn/protodyn/desc"
)

// UnmarshalJSONOptions configures deserialization from the canonical JSON
// mapping.
type UnmarshalJSONOptions struct {
	// IgnoreUnknownFields skips JSON object keys that match no field
	// instead of failing.
	IgnoreUnknownFields bool
	// IgnoreUnknownEnumNames skips enum values given as an unrecognized
	// name instead of failing. Unrecognized numeric enum values are always
	// accepted.
	IgnoreUnknownEnumNames bool
}

// errSkipValue marks an element that an option asked to drop rather than
// either store or reject.
var errSkipValue = errors.New("dynamic: skip value")

// UnmarshalJSON replaces the message's contents with the decoded form of
// the given canonical JSON text, using default options.
func (m *Message) UnmarshalJSON(b []byte) error {
	return UnmarshalJSONOptions{}.Unmarshal(m, b)
}

// Unmarshal replaces the message's contents with the decoded form of the
// given canonical JSON text. Decoding is all-or-nothing: on error the
// message is left untouched.
func (opts UnmarshalJSONOptions) Unmarshal(m *Message, b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return jsonErrorf("malformed input: %v", err)
	}
	if dec.More() {
		return jsonErrorf("unexpected data after top-level value")
	}
	scratch := NewMessage(m.md)
	if err := opts.decodeMessage(scratch, raw); err != nil {
		return err
	}
	m.values = scratch.values
	m.unknownFields = scratch.unknownFields
	return nil
}

func (opts UnmarshalJSONOptions) decodeMessage(m *Message, raw interface{}) error {
	if handled, err := opts.unmarshalWellKnown(m, raw); handled || err != nil {
		return err
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return jsonErrorf("expecting an object for %s, got %T", m.md.FullName(), raw)
	}
	seenOneofs := map[string]string{}
	for key, val := range obj {
		f, found := opts.resolveJSONField(m.md, key)
		if !found {
			if opts.IgnoreUnknownFields {
				continue
			}
			return jsonErrorf("message %s has no field named %q", m.md.FullName(), key)
		}
		if val == nil && !acceptsJSONNull(f) {
			// null reads as "leave the field absent"
			continue
		}
		if oo, isMember := f.ContainingOneof(); isMember && !oo.IsSynthetic() {
			if prev, dup := seenOneofs[oo.FullName()]; dup {
				return jsonErrorf("oneof %s has conflicting members %q and %q", oo.FullName(), prev, key)
			}
			seenOneofs[oo.FullName()] = key
		}
		if err := opts.decodeFieldValue(m, f, val); err != nil {
			return err
		}
	}
	return nil
}

// resolveJSONField maps a JSON object key to a field: a bracketed key
// names an extension by its full name, anything else is matched against
// the fields' JSON names with declared names as fallback.
func (opts UnmarshalJSONOptions) resolveJSONField(md desc.MessageDescriptor, key string) (fieldRef, bool) {
	if strings.HasPrefix(key, "[") && strings.HasSuffix(key, "]") {
		xd, ok := md.ParentFile().Pool().FindExtensionByName(key[1 : len(key)-1])
		if !ok || xd.Extendee() != md {
			return nil, false
		}
		return xd, true
	}
	fd, ok := md.FindFieldByJSONName(key)
	if !ok {
		return nil, false
	}
	return fd, true
}

// acceptsJSONNull reports whether a JSON null is a meaningful value for
// the field rather than an omission: google.protobuf.Value stores it as
// NullValue, and NullValue-typed enum fields accept it directly.
func acceptsJSONNull(f fieldRef) bool {
	if f.Kind() == desc.MessageKind {
		mt, _ := f.MessageType()
		return mt.FullName() == "google.protobuf.Value"
	}
	if f.Kind() == desc.EnumKind {
		et, _ := f.EnumType()
		return et.FullName() == "google.protobuf.NullValue"
	}
	return false
}

func (opts UnmarshalJSONOptions) decodeFieldValue(m *Message, f fieldRef, val interface{}) error {
	switch {
	case f.IsMap():
		obj, ok := val.(map[string]interface{})
		if !ok {
			return jsonErrorf("expecting an object for map field %s, got %T", f.FullName(), val)
		}
		kf, vf := f.MapKeyField(), f.MapValueField()
		for ks, v := range obj {
			k, err := parseJSONMapKey(kf, ks)
			if err != nil {
				return err
			}
			ev, err := opts.decodeElement(vf, v)
			if err == errSkipValue {
				continue
			}
			if err != nil {
				return err
			}
			m.insertMapEntry(f, k, ev)
		}
		return nil
	case f.IsList():
		arr, ok := val.([]interface{})
		if !ok {
			return jsonErrorf("expecting an array for repeated field %s, got %T", f.FullName(), val)
		}
		for _, e := range arr {
			ev, err := opts.decodeElement(f, e)
			if err == errSkipValue {
				continue
			}
			if err != nil {
				return err
			}
			m.appendListValue(f, ev)
		}
		return nil
	default:
		v, err := opts.decodeElement(f, val)
		if err == errSkipValue {
			return nil
		}
		if err != nil {
			return err
		}
		m.internalSetField(f, v)
		return nil
	}
}

func (opts UnmarshalJSONOptions) decodeElement(f fieldRef, val interface{}) (interface{}, error) {
	if val == nil {
		if !acceptsJSONNull(f) {
			return nil, jsonErrorf("field %s: unexpected null", f.FullName())
		}
		if f.Kind() == desc.EnumKind {
			return int32(0), nil
		}
		mt, _ := f.MessageType()
		nested := NewMessage(mt)
		nested.internalSetField(wktField(mt, "null_value"), int32(0))
		return nested, nil
	}
	switch f.Kind() {
	case desc.MessageKind, desc.GroupKind:
		mt, _ := f.MessageType()
		nested := NewMessage(mt)
		if err := opts.decodeMessage(nested, val); err != nil {
			return nil, err
		}
		return nested, nil
	case desc.EnumKind:
		return opts.decodeEnumElement(f, val)
	case desc.BoolKind:
		b, ok := val.(bool)
		if !ok {
			return nil, jsonErrorf("field %s: expecting a boolean, got %T", f.FullName(), val)
		}
		return b, nil
	case desc.StringKind:
		s, ok := val.(string)
		if !ok {
			return nil, jsonErrorf("field %s: expecting a string, got %T", f.FullName(), val)
		}
		return s, nil
	case desc.BytesKind:
		s, ok := val.(string)
		if !ok {
			return nil, jsonErrorf("field %s: expecting a base64 string, got %T", f.FullName(), val)
		}
		return decodeJSONBytes(f, s)
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		n, err := decodeJSONInt(f, val, 32)
		return int32(n), err
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		return decodeJSONInt(f, val, 64)
	case desc.Uint32Kind, desc.Fixed32Kind:
		n, err := decodeJSONUint(f, val, 32)
		return uint32(n), err
	case desc.Uint64Kind, desc.Fixed64Kind:
		return decodeJSONUint(f, val, 64)
	case desc.FloatKind:
		fv, err := decodeJSONFloat(f, val)
		return float32(fv), err
	case desc.DoubleKind:
		return decodeJSONFloat(f, val)
	default:
		return nil, jsonErrorf("field %s: unsupported kind %v", f.FullName(), f.Kind())
	}
}

func (opts UnmarshalJSONOptions) decodeEnumElement(f fieldRef, val interface{}) (interface{}, error) {
	ed, _ := f.EnumType()
	switch v := val.(type) {
	case string:
		vd, ok := ed.FindValueByName(v)
		if !ok {
			if opts.IgnoreUnknownEnumNames {
				return nil, errSkipValue
			}
			return nil, jsonErrorf("enum %s has no value named %q", ed.FullName(), v)
		}
		return vd.Number(), nil
	case json.Number:
		n, err := strconv.ParseInt(string(v), 10, 32)
		if err != nil {
			return nil, jsonErrorf("field %s: invalid enum number %q", f.FullName(), v)
		}
		return int32(n), nil
	default:
		return nil, jsonErrorf("field %s: expecting an enum name or number, got %T", f.FullName(), val)
	}
}

func decodeJSONInt(f fieldRef, val interface{}, bits int) (int64, error) {
	var text string
	switch v := val.(type) {
	case json.Number:
		text = string(v)
	case string:
		text = v
	default:
		return 0, jsonErrorf("field %s: expecting an integer, got %T", f.FullName(), val)
	}
	if n, err := strconv.ParseInt(text, 10, bits); err == nil {
		return n, nil
	}
	// exponent forms like "1e3" are legal for integer fields
	fv, err := strconv.ParseFloat(text, 64)
	if err != nil || fv != math.Trunc(fv) || fv < -math.Ldexp(1, bits-1) || fv >= math.Ldexp(1, bits-1) {
		return 0, jsonErrorf("field %s: invalid integer %q", f.FullName(), text)
	}
	return int64(fv), nil
}

func decodeJSONUint(f fieldRef, val interface{}, bits int) (uint64, error) {
	var text string
	switch v := val.(type) {
	case json.Number:
		text = string(v)
	case string:
		text = v
	default:
		return 0, jsonErrorf("field %s: expecting an unsigned integer, got %T", f.FullName(), val)
	}
	if n, err := strconv.ParseUint(text, 10, bits); err == nil {
		return n, nil
	}
	fv, err := strconv.ParseFloat(text, 64)
	if err != nil || fv != math.Trunc(fv) || fv < 0 || fv >= math.Ldexp(1, bits) {
		return 0, jsonErrorf("field %s: invalid unsigned integer %q", f.FullName(), text)
	}
	return uint64(fv), nil
}

func decodeJSONFloat(f fieldRef, val interface{}) (float64, error) {
	switch v := val.(type) {
	case json.Number:
		fv, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return 0, jsonErrorf("field %s: invalid number %q", f.FullName(), v)
		}
		return fv, nil
	case string:
		switch v {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		fv, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, jsonErrorf("field %s: invalid number %q", f.FullName(), v)
		}
		return fv, nil
	default:
		return 0, jsonErrorf("field %s: expecting a number, got %T", f.FullName(), val)
	}
}

// decodeJSONBytes accepts both padded and raw forms of the standard and
// URL-safe base64 alphabets.
func decodeJSONBytes(f fieldRef, s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, jsonErrorf("field %s: invalid base64 %q", f.FullName(), s)
}

// parseJSONMapKey parses a JSON object key into the canonical map key for
// the entry's key field. Keys always arrive as strings, whatever the
// declared key kind.
func parseJSONMapKey(kf desc.FieldDescriptor, key string) (interface{}, error) {
	switch kf.Kind() {
	case desc.StringKind:
		return key, nil
	case desc.BoolKind:
		b, err := strconv.ParseBool(key)
		if err != nil {
			return nil, jsonErrorf("invalid map key %q for %s", key, kf.FullName())
		}
		return b, nil
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		n, err := strconv.ParseInt(key, 10, 32)
		if err != nil {
			return nil, jsonErrorf("invalid map key %q for %s", key, kf.FullName())
		}
		return int32(n), nil
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		n, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, jsonErrorf("invalid map key %q for %s", key, kf.FullName())
		}
		return n, nil
	case desc.Uint32Kind, desc.Fixed32Kind:
		n, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return nil, jsonErrorf("invalid map key %q for %s", key, kf.FullName())
		}
		return uint32(n), nil
	case desc.Uint64Kind, desc.Fixed64Kind:
		n, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, jsonErrorf("invalid map key %q for %s", key, kf.FullName())
		}
		return n, nil
	default:
		return nil, jsonErrorf("kind %v is not a valid map key kind", kf.Kind())
	}
}

func (opts UnmarshalJSONOptions) unmarshalWellKnown(m *Message, raw interface{}) (bool, error) {
	name := m.md.FullName()
	switch {
	case isWrapperType(name):
		vf := wktField(m.md, "value")
		v, err := opts.decodeElement(vf, raw)
		if err != nil {
			return true, err
		}
		// wrapper payloads keep presence even at their default value
		if m.values == nil {
			m.values = map[int32]interface{}{}
		}
		m.values[vf.Number()] = v
		return true, nil
	case name == "google.protobuf.Duration":
		s, ok := raw.(string)
		if !ok {
			return true, jsonErrorf("expecting a string for google.protobuf.Duration, got %T", raw)
		}
		secs, nanos, err := parseDuration(s)
		if err != nil {
			return true, err
		}
		m.internalSetField(wktField(m.md, "seconds"), secs)
		m.internalSetField(wktField(m.md, "nanos"), nanos)
		return true, nil
	case name == "google.protobuf.Timestamp":
		s, ok := raw.(string)
		if !ok {
			return true, jsonErrorf("expecting a string for google.protobuf.Timestamp, got %T", raw)
		}
		secs, nanos, err := parseTimestamp(s)
		if err != nil {
			return true, err
		}
		m.internalSetField(wktField(m.md, "seconds"), secs)
		m.internalSetField(wktField(m.md, "nanos"), nanos)
		return true, nil
	case name == "google.protobuf.Struct":
		return true, opts.decodeStructMessage(m, raw)
	case name == "google.protobuf.Value":
		return true, opts.decodeValueMessage(m, raw)
	case name == "google.protobuf.ListValue":
		return true, opts.decodeListValueMessage(m, raw)
	case name == "google.protobuf.FieldMask":
		s, ok := raw.(string)
		if !ok {
			return true, jsonErrorf("expecting a string for google.protobuf.FieldMask, got %T", raw)
		}
		if s == "" {
			return true, nil
		}
		pf := wktField(m.md, "paths")
		for _, part := range strings.Split(s, ",") {
			m.appendListValue(pf, snakeCase(part))
		}
		return true, nil
	case name == "google.protobuf.Any":
		return true, opts.decodeAnyMessage(m, raw)
	}
	return false, nil
}

func (opts UnmarshalJSONOptions) decodeStructMessage(m *Message, raw interface{}) error {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return jsonErrorf("expecting an object for google.protobuf.Struct, got %T", raw)
	}
	ff := wktField(m.md, "fields")
	valueType, _ := ff.MapValueField().MessageType()
	for k, v := range obj {
		val := NewMessage(valueType)
		if err := opts.decodeValueMessage(val, v); err != nil {
			return err
		}
		m.insertMapEntry(ff, k, val)
	}
	return nil
}

func (opts UnmarshalJSONOptions) decodeValueMessage(m *Message, raw interface{}) error {
	switch v := raw.(type) {
	case nil:
		m.internalSetField(wktField(m.md, "null_value"), int32(0))
	case bool:
		m.internalSetField(wktField(m.md, "bool_value"), v)
	case string:
		m.internalSetField(wktField(m.md, "string_value"), v)
	case json.Number:
		fv, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return jsonErrorf("invalid number %q for google.protobuf.Value", v)
		}
		m.internalSetField(wktField(m.md, "number_value"), fv)
	case map[string]interface{}:
		sf := wktField(m.md, "struct_value")
		st, _ := sf.MessageType()
		nested := NewMessage(st)
		if err := opts.decodeStructMessage(nested, v); err != nil {
			return err
		}
		m.internalSetField(sf, nested)
	case []interface{}:
		lf := wktField(m.md, "list_value")
		lt, _ := lf.MessageType()
		nested := NewMessage(lt)
		if err := opts.decodeListValueMessage(nested, v); err != nil {
			return err
		}
		m.internalSetField(lf, nested)
	default:
		return jsonErrorf("unsupported google.protobuf.Value input %T", raw)
	}
	return nil
}

func (opts UnmarshalJSONOptions) decodeListValueMessage(m *Message, raw interface{}) error {
	arr, ok := raw.([]interface{})
	if !ok {
		return jsonErrorf("expecting an array for google.protobuf.ListValue, got %T", raw)
	}
	vf := wktField(m.md, "values")
	valueType, _ := vf.MessageType()
	for _, e := range arr {
		val := NewMessage(valueType)
		if err := opts.decodeValueMessage(val, e); err != nil {
			return err
		}
		m.appendListValue(vf, val)
	}
	return nil
}

func (opts UnmarshalJSONOptions) decodeAnyMessage(m *Message, raw interface{}) error {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return jsonErrorf("expecting an object for google.protobuf.Any, got %T", raw)
	}
	if len(obj) == 0 {
		return nil
	}
	typeURL, ok := obj["@type"].(string)
	if !ok {
		return jsonErrorf("google.protobuf.Any requires a string @type key")
	}
	fullName := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		fullName = typeURL[i+1:]
	}
	inner, ok := m.md.ParentFile().Pool().FindMessageByName(fullName)
	if !ok {
		return jsonErrorf("google.protobuf.Any: unknown type %q", typeURL)
	}
	embedded := NewMessage(inner)
	if isWellKnownType(fullName) {
		wrapped, ok := obj["value"]
		if !ok {
			return jsonErrorf("google.protobuf.Any with well-known payload %q requires a value key", typeURL)
		}
		if err := opts.decodeMessage(embedded, wrapped); err != nil {
			return err
		}
	} else {
		fields := make(map[string]interface{}, len(obj)-1)
		for k, v := range obj {
			if k != "@type" {
				fields[k] = v
			}
		}
		if err := opts.decodeMessage(embedded, fields); err != nil {
			return err
		}
	}
	payload, err := embedded.MarshalDeterministic()
	if err != nil {
		return jsonErrorf("google.protobuf.Any: cannot encode payload: %v", err)
	}
	m.internalSetField(wktField(m.md, "type_url"), typeURL)
	if len(payload) > 0 {
		m.internalSetField(wktField(m.md, "value"), payload)
	}
	return nil
}
