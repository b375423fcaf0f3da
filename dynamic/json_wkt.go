package dynamic

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/protodyn/protodyn/desc"
)

// The canonical JSON mapping gives a handful of well-known types compact
// textual forms instead of the ordinary field-record rendering. The exact
// shapes are fixed by the protobuf JSON mapping and must interoperate with
// other runtimes.

func isWellKnownType(fullName string) bool {
	switch fullName {
	case "google.protobuf.Duration",
		"google.protobuf.Timestamp",
		"google.protobuf.Struct",
		"google.protobuf.Value",
		"google.protobuf.ListValue",
		"google.protobuf.FieldMask",
		"google.protobuf.Empty",
		"google.protobuf.Any",
		"google.protobuf.DoubleValue",
		"google.protobuf.FloatValue",
		"google.protobuf.Int64Value",
		"google.protobuf.UInt64Value",
		"google.protobuf.Int32Value",
		"google.protobuf.UInt32Value",
		"google.protobuf.BoolValue",
		"google.protobuf.StringValue",
		"google.protobuf.BytesValue":
		return true
	}
	return false
}

func isWrapperType(fullName string) bool {
	switch fullName {
	case "google.protobuf.DoubleValue",
		"google.protobuf.FloatValue",
		"google.protobuf.Int64Value",
		"google.protobuf.UInt64Value",
		"google.protobuf.Int32Value",
		"google.protobuf.UInt32Value",
		"google.protobuf.BoolValue",
		"google.protobuf.StringValue",
		"google.protobuf.BytesValue":
		return true
	}
	return false
}

// wktField returns the named field of a well-known type's descriptor. The
// descriptors come from the standard google/protobuf sources, so a miss
// means the pool holds a forged schema.
func wktField(md desc.MessageDescriptor, name string) desc.FieldDescriptor {
	fd, ok := md.FindFieldByName(name)
	if !ok {
		panic("dynamic: " + md.FullName() + " has no field " + name)
	}
	return fd
}

func (opts MarshalJSONOptions) marshalWellKnown(w *jsonWriter, m *Message) (bool, error) {
	name := m.md.FullName()
	switch {
	case isWrapperType(name):
		vf := wktField(m.md, "value")
		return true, opts.marshalElement(w, vf, m.getField(vf))
	case name == "google.protobuf.Duration":
		secs := m.getField(wktField(m.md, "seconds")).(int64)
		nanos := m.getField(wktField(m.md, "nanos")).(int32)
		s, err := durationString(secs, nanos)
		if err != nil {
			return true, err
		}
		w.writeString(s)
		return true, nil
	case name == "google.protobuf.Timestamp":
		secs := m.getField(wktField(m.md, "seconds")).(int64)
		nanos := m.getField(wktField(m.md, "nanos")).(int32)
		s, err := timestampString(secs, nanos)
		if err != nil {
			return true, err
		}
		w.writeString(s)
		return true, nil
	case name == "google.protobuf.Struct":
		return true, opts.marshalStructMessage(w, m)
	case name == "google.protobuf.Value":
		return true, opts.marshalValueMessage(w, m)
	case name == "google.protobuf.ListValue":
		return true, opts.marshalListValueMessage(w, m)
	case name == "google.protobuf.FieldMask":
		paths, _ := m.values[wktField(m.md, "paths").Number()].([]interface{})
		parts := make([]string, len(paths))
		for i, p := range paths {
			parts[i] = lowerCamelCase(p.(string))
		}
		w.writeString(strings.Join(parts, ","))
		return true, nil
	case name == "google.protobuf.Any":
		return true, opts.marshalAnyMessage(w, m)
	}
	return false, nil
}

func (opts MarshalJSONOptions) marshalStructMessage(w *jsonWriter, m *Message) error {
	fields, _ := m.values[wktField(m.md, "fields").Number()].(map[interface{}]interface{})
	keys := make([]interface{}, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sortMapKeys(keys)
	w.openObject()
	for _, k := range keys {
		w.key(k.(string))
		if err := opts.marshalValueMessage(w, fields[k].(*Message)); err != nil {
			return err
		}
	}
	w.closeObject()
	return nil
}

func (opts MarshalJSONOptions) marshalValueMessage(w *jsonWriter, m *Message) error {
	for fd := range m.md.Fields() {
		v, ok := m.values[fd.Number()]
		if !ok {
			continue
		}
		switch fd.Name() {
		case "null_value":
			w.writeRaw("null")
		case "number_value":
			f := v.(float64)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return jsonErrorf("google.protobuf.Value cannot represent NaN or Infinity")
			}
			w.writeRaw(strconv.FormatFloat(f, 'g', -1, 64))
		case "string_value":
			w.writeString(v.(string))
		case "bool_value":
			w.writeRaw(strconv.FormatBool(v.(bool)))
		case "struct_value":
			return opts.marshalStructMessage(w, v.(*Message))
		case "list_value":
			return opts.marshalListValueMessage(w, v.(*Message))
		}
		return nil
	}
	return jsonErrorf("google.protobuf.Value has no variant set")
}

func (opts MarshalJSONOptions) marshalListValueMessage(w *jsonWriter, m *Message) error {
	values, _ := m.values[wktField(m.md, "values").Number()].([]interface{})
	w.openArray()
	for _, v := range values {
		w.member()
		if err := opts.marshalValueMessage(w, v.(*Message)); err != nil {
			return err
		}
	}
	w.closeArray()
	return nil
}

func (opts MarshalJSONOptions) marshalAnyMessage(w *jsonWriter, m *Message) error {
	typeURL, _ := m.getField(wktField(m.md, "type_url")).(string)
	if typeURL == "" {
		w.openObject()
		w.closeObject()
		return nil
	}
	payload, _ := m.getField(wktField(m.md, "value")).([]byte)
	fullName := typeURL
	if i := strings.LastIndexByte(typeURL, '/'); i >= 0 {
		fullName = typeURL[i+1:]
	}
	inner, ok := m.md.ParentFile().Pool().FindMessageByName(fullName)
	if !ok {
		return jsonErrorf("google.protobuf.Any: unknown type %q", typeURL)
	}
	embedded := NewMessage(inner)
	if err := embedded.Unmarshal(payload); err != nil {
		return jsonErrorf("google.protobuf.Any: invalid payload for %q: %v", typeURL, err)
	}
	w.openObject()
	w.key("@type")
	w.writeString(typeURL)
	if isWellKnownType(fullName) {
		w.key("value")
		if err := opts.marshalMessage(w, embedded); err != nil {
			return err
		}
	} else if err := opts.marshalMessageFields(w, embedded); err != nil {
		return err
	}
	w.closeObject()
	return nil
}

// maxDurationSeconds bounds the canonical Duration mapping to roughly
// ten thousand years either side of zero.
const maxDurationSeconds = 315576000000

func durationString(secs int64, nanos int32) (string, error) {
	if (secs > 0 && nanos < 0) || (secs < 0 && nanos > 0) {
		return "", jsonErrorf("google.protobuf.Duration: seconds and nanos have opposing signs")
	}
	if secs < -maxDurationSeconds || secs > maxDurationSeconds {
		return "", jsonErrorf("google.protobuf.Duration: seconds %d out of range", secs)
	}
	if nanos <= -1e9 || nanos >= 1e9 {
		return "", jsonErrorf("google.protobuf.Duration: nanos %d out of range", nanos)
	}
	neg := secs < 0 || nanos < 0
	s, n := secs, int64(nanos)
	if s < 0 {
		s = -s
	}
	if n < 0 {
		n = -n
	}
	out := strconv.FormatInt(s, 10)
	if n != 0 {
		frac := fmt.Sprintf("%09d", n)
		for strings.HasSuffix(frac, "000") {
			frac = frac[:len(frac)-3]
		}
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out + "s", nil
}

func parseDuration(s string) (secs int64, nanos int32, err error) {
	text, ok := strings.CutSuffix(s, "s")
	if !ok || text == "" {
		return 0, 0, jsonErrorf("invalid google.protobuf.Duration value %q", s)
	}
	neg := strings.HasPrefix(text, "-")
	if neg || strings.HasPrefix(text, "+") {
		text = text[1:]
	}
	whole, frac, hasFrac := strings.Cut(text, ".")
	secs, perr := strconv.ParseInt(whole, 10, 64)
	if perr != nil {
		return 0, 0, jsonErrorf("invalid google.protobuf.Duration value %q", s)
	}
	if hasFrac {
		if frac == "" || len(frac) > 9 {
			return 0, 0, jsonErrorf("invalid google.protobuf.Duration value %q", s)
		}
		padded := frac + strings.Repeat("0", 9-len(frac))
		n, perr := strconv.ParseUint(padded, 10, 32)
		if perr != nil {
			return 0, 0, jsonErrorf("invalid google.protobuf.Duration value %q", s)
		}
		nanos = int32(n)
	}
	if secs > maxDurationSeconds {
		return 0, 0, jsonErrorf("google.protobuf.Duration value %q out of range", s)
	}
	if neg {
		secs, nanos = -secs, -nanos
	}
	return secs, nanos, nil
}

func timestampString(secs int64, nanos int32) (string, error) {
	if nanos < 0 || nanos >= 1e9 {
		return "", jsonErrorf("google.protobuf.Timestamp: nanos %d out of range", nanos)
	}
	t := time.Unix(secs, int64(nanos)).UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return "", jsonErrorf("google.protobuf.Timestamp: seconds %d out of range", secs)
	}
	out := t.Format("2006-01-02T15:04:05")
	switch {
	case nanos == 0:
	case nanos%1e6 == 0:
		out += fmt.Sprintf(".%03d", nanos/1e6)
	case nanos%1e3 == 0:
		out += fmt.Sprintf(".%06d", nanos/1e3)
	default:
		out += fmt.Sprintf(".%09d", nanos)
	}
	return out + "Z", nil
}

func parseTimestamp(s string) (secs int64, nanos int32, err error) {
	t, perr := time.Parse(time.RFC3339Nano, s)
	if perr != nil {
		return 0, 0, jsonErrorf("invalid google.protobuf.Timestamp value %q", s)
	}
	t = t.UTC()
	if t.Year() < 1 || t.Year() > 9999 {
		return 0, 0, jsonErrorf("google.protobuf.Timestamp value %q out of range", s)
	}
	return t.Unix(), int32(t.Nanosecond()), nil
}

// lowerCamelCase converts a snake_case field path segment sequence to the
// lowerCamelCase form used by FieldMask JSON.
func lowerCamelCase(path string) string {
	var sb strings.Builder
	upperNext := false
	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '_':
			upperNext = true
		case upperNext && c >= 'a' && c <= 'z':
			sb.WriteByte(c - 'a' + 'A')
			upperNext = false
		default:
			sb.WriteByte(c)
			upperNext = false
		}
	}
	return sb.String()
}

// snakeCase is the inverse of lowerCamelCase for FieldMask path parsing.
func snakeCase(path string) string {
	var sb strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
		if c >= 'A' && c <= 'Z' {
			sb.WriteByte('_')
			sb.WriteByte(c - 'A' + 'a')
		} else {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
