package dynamic

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"

	"github.com/protodyn/protodyn/desc"
)

// MarshalJSONOptions configures serialization to the canonical JSON
// mapping.
type MarshalJSONOptions struct {
	// Indent, when non-empty, pretty-prints the output using the given
	// string per nesting level.
	Indent string
	// EmitDefaults emits zero values for absent fields that do not track
	// presence (including empty arrays and objects for repeated and map
	// fields) instead of omitting them.
	EmitDefaults bool
}

// MarshalJSON serializes the message to compact canonical JSON with
// default options.
func (m *Message) MarshalJSON() ([]byte, error) {
	return MarshalJSONOptions{}.Marshal(m)
}

// MarshalJSONIndent is like MarshalJSON but pretty-prints with two-space
// indentation.
func (m *Message) MarshalJSONIndent() ([]byte, error) {
	return MarshalJSONOptions{Indent: "  "}.Marshal(m)
}

// Marshal serializes the message to canonical JSON text.
func (opts MarshalJSONOptions) Marshal(m *Message) ([]byte, error) {
	w := &jsonWriter{indent: opts.Indent}
	if err := opts.marshalMessage(w, m); err != nil {
		return nil, err
	}
	return w.buf.Bytes(), nil
}

// jsonWriter assembles JSON text with optional indentation. Callers open
// and close containers and announce each member; separator and newline
// placement is tracked per nesting level.
type jsonWriter struct {
	buf    bytes.Buffer
	indent string
	counts []int
}

func (w *jsonWriter) newline() {
	if w.indent == "" {
		return
	}
	w.buf.WriteByte('\n')
	for range w.counts {
		w.buf.WriteString(w.indent)
	}
}

func (w *jsonWriter) openObject() {
	w.buf.WriteByte('{')
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) closeObject() {
	n := w.counts[len(w.counts)-1]
	w.counts = w.counts[:len(w.counts)-1]
	if n > 0 {
		w.newline()
	}
	w.buf.WriteByte('}')
}

func (w *jsonWriter) openArray() {
	w.buf.WriteByte('[')
	w.counts = append(w.counts, 0)
}

func (w *jsonWriter) closeArray() {
	n := w.counts[len(w.counts)-1]
	w.counts = w.counts[:len(w.counts)-1]
	if n > 0 {
		w.newline()
	}
	w.buf.WriteByte(']')
}

// member begins the next array element or object entry.
func (w *jsonWriter) member() {
	if w.counts[len(w.counts)-1] > 0 {
		w.buf.WriteByte(',')
	}
	w.counts[len(w.counts)-1]++
	w.newline()
}

func (w *jsonWriter) key(name string) {
	w.member()
	w.writeString(name)
	w.buf.WriteByte(':')
	if w.indent != "" {
		w.buf.WriteByte(' ')
	}
}

func (w *jsonWriter) writeString(s string) {
	b, _ := json.Marshal(s)
	w.buf.Write(b)
}

func (w *jsonWriter) writeRaw(s string) {
	w.buf.WriteString(s)
}

func (opts MarshalJSONOptions) marshalMessage(w *jsonWriter, m *Message) error {
	if handled, err := opts.marshalWellKnown(w, m); handled || err != nil {
		return err
	}
	w.openObject()
	if err := opts.marshalMessageFields(w, m); err != nil {
		return err
	}
	w.closeObject()
	return nil
}

// marshalMessageFields writes the message's entries into the currently
// open JSON object.
func (opts MarshalJSONOptions) marshalMessageFields(w *jsonWriter, m *Message) error {
	for fd := range m.md.Fields() {
		v, present := m.values[fd.Number()]
		if !present {
			if !opts.EmitDefaults || fd.HasPresence() {
				continue
			}
			v = m.getField(fd)
			switch {
			case fd.IsMap():
				v = map[interface{}]interface{}(nil)
			case fd.IsList():
				v = []interface{}(nil)
			}
		}
		w.key(fd.JSONName())
		if err := opts.marshalFieldValue(w, fd, v); err != nil {
			return err
		}
	}
	for _, num := range m.FieldNumbers() {
		x, ok := m.fieldForNumber(num)
		if !ok || !x.IsExtension() {
			continue
		}
		w.key(x.JSONName())
		if err := opts.marshalFieldValue(w, x, m.values[num]); err != nil {
			return err
		}
	}
	return nil
}

func (opts MarshalJSONOptions) marshalFieldValue(w *jsonWriter, f fieldRef, v interface{}) error {
	switch {
	case f.IsMap():
		return opts.marshalMapValue(w, f, v.(map[interface{}]interface{}))
	case f.IsList():
		w.openArray()
		for _, e := range v.([]interface{}) {
			w.member()
			if err := opts.marshalElement(w, f, e); err != nil {
				return err
			}
		}
		w.closeArray()
		return nil
	default:
		return opts.marshalElement(w, f, v)
	}
}

func (opts MarshalJSONOptions) marshalMapValue(w *jsonWriter, f fieldRef, mp map[interface{}]interface{}) error {
	keys := make([]interface{}, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sortMapKeys(keys)
	vf := f.MapValueField()
	w.openObject()
	for _, k := range keys {
		w.key(mapKeyString(k))
		if err := opts.marshalElement(w, vf, mp[k]); err != nil {
			return err
		}
	}
	w.closeObject()
	return nil
}

// mapKeyString renders a canonical map key as the JSON object key string.
func mapKeyString(k interface{}) string {
	switch kv := k.(type) {
	case bool:
		return strconv.FormatBool(kv)
	case int32:
		return strconv.FormatInt(int64(kv), 10)
	case int64:
		return strconv.FormatInt(kv, 10)
	case uint32:
		return strconv.FormatUint(uint64(kv), 10)
	case uint64:
		return strconv.FormatUint(kv, 10)
	default:
		return kv.(string)
	}
}

func (opts MarshalJSONOptions) marshalElement(w *jsonWriter, f fieldRef, v interface{}) error {
	switch f.Kind() {
	case desc.MessageKind, desc.GroupKind:
		return opts.marshalMessage(w, v.(*Message))
	case desc.EnumKind:
		ed, _ := f.EnumType()
		if ed.FullName() == "google.protobuf.NullValue" {
			w.writeRaw("null")
			return nil
		}
		if vd, ok := ed.FindValueByNumber(v.(int32)); ok {
			w.writeString(vd.Name())
		} else {
			w.writeRaw(strconv.FormatInt(int64(v.(int32)), 10))
		}
		return nil
	case desc.StringKind:
		w.writeString(v.(string))
		return nil
	case desc.BytesKind:
		w.writeString(base64.StdEncoding.EncodeToString(v.([]byte)))
		return nil
	case desc.BoolKind:
		w.writeRaw(strconv.FormatBool(v.(bool)))
		return nil
	case desc.Int32Kind, desc.Sint32Kind, desc.Sfixed32Kind:
		w.writeRaw(strconv.FormatInt(int64(v.(int32)), 10))
		return nil
	case desc.Uint32Kind, desc.Fixed32Kind:
		w.writeRaw(strconv.FormatUint(uint64(v.(uint32)), 10))
		return nil
	case desc.Int64Kind, desc.Sint64Kind, desc.Sfixed64Kind:
		// 64-bit integers are quoted to survive IEEE-754 JSON readers
		w.writeString(strconv.FormatInt(v.(int64), 10))
		return nil
	case desc.Uint64Kind, desc.Fixed64Kind:
		w.writeString(strconv.FormatUint(v.(uint64), 10))
		return nil
	case desc.FloatKind:
		writeJSONFloat(w, float64(v.(float32)), 32)
		return nil
	case desc.DoubleKind:
		writeJSONFloat(w, v.(float64), 64)
		return nil
	default:
		return jsonErrorf("field %s: unsupported kind %v", f.FullName(), f.Kind())
	}
}

func writeJSONFloat(w *jsonWriter, f float64, bits int) {
	switch {
	case math.IsNaN(f):
		w.writeString("NaN")
	case math.IsInf(f, 1):
		w.writeString("Infinity")
	case math.IsInf(f, -1):
		w.writeString("-Infinity")
	default:
		w.writeRaw(strconv.FormatFloat(f, 'g', -1, bits))
	}
}
