package dynamic

import "bytes"

// Equal reports whether two messages are bound to the same descriptor,
// hold equal values for the same set of present fields, and carry the same
// unknown-field records. Because fields without explicit presence never
// store their default value, default-valued and absent fields compare
// equal automatically.
func (m *Message) Equal(other *Message) bool {
	if m == other {
		return true
	}
	if m == nil || other == nil {
		return false
	}
	if m.md != other.md {
		return false
	}
	if len(m.values) != len(other.values) {
		return false
	}
	for num, v := range m.values {
		ov, ok := other.values[num]
		if !ok || !fieldValuesEqual(v, ov) {
			return false
		}
	}
	if len(m.unknownFields) != len(other.unknownFields) {
		return false
	}
	for num, ufs := range m.unknownFields {
		oufs, ok := other.unknownFields[num]
		if !ok || len(ufs) != len(oufs) {
			return false
		}
		for i := range ufs {
			if !unknownFieldsEqual(ufs[i], oufs[i]) {
				return false
			}
		}
	}
	return true
}

func fieldValuesEqual(a, b interface{}) bool {
	switch av := a.(type) {
	case *Message:
		bv, ok := b.(*Message)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !fieldValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[interface{}]interface{}:
		bv, ok := b.(map[interface{}]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			ov, ok := bv[k]
			if !ok || !fieldValuesEqual(v, ov) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func unknownFieldsEqual(a, b UnknownField) bool {
	return a.Encoding == b.Encoding && a.Value == b.Value && bytes.Equal(a.Contents, b.Contents)
}

// Clone returns a deep copy of the message: embedded messages, repeated
// and map values, byte slices, and unknown-field bytes are all copied.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := NewMessage(m.md)
	if m.values != nil {
		out.values = make(map[int32]interface{}, len(m.values))
		for num, v := range m.values {
			out.values[num] = cloneFieldValue(v)
		}
	}
	if m.unknownFields != nil {
		out.unknownFields = make(map[int32][]UnknownField, len(m.unknownFields))
		for num, ufs := range m.unknownFields {
			copied := make([]UnknownField, len(ufs))
			for i, uf := range ufs {
				copied[i] = UnknownField{
					Encoding: uf.Encoding,
					Value:    uf.Value,
					Contents: append([]byte(nil), uf.Contents...),
				}
			}
			out.unknownFields[num] = copied
		}
	}
	return out
}

func cloneFieldValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case *Message:
		return tv.Clone()
	case []byte:
		return append([]byte(nil), tv...)
	case []interface{}:
		out := make([]interface{}, len(tv))
		for i, e := range tv {
			out[i] = cloneFieldValue(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[interface{}]interface{}, len(tv))
		for k, e := range tv {
			out[k] = cloneFieldValue(e)
		}
		return out
	default:
		return v
	}
}
