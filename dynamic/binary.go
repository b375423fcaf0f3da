package dynamic

import (
	"math"
	"sort"

	"github.com/protodyn/protodyn/codec"
	"github.com/protodyn/protodyn/desc"
)

// Marshal serializes the message to the binary wire format. Known fields
// are emitted in ascending field-number order, unknown fields after them
// with their captured bytes reproduced verbatim. Map entries are emitted
// in unspecified order; use MarshalDeterministic for stable output.
func (m *Message) Marshal() ([]byte, error) {
	return m.marshal(false)
}

// MarshalDeterministic is like Marshal but emits map entries in sorted key
// order, producing identical bytes for equal messages.
func (m *Message) MarshalDeterministic() ([]byte, error) {
	return m.marshal(true)
}

func (m *Message) marshal(deterministic bool) ([]byte, error) {
	var cb codec.Buffer
	if err := m.marshalTo(&cb, deterministic); err != nil {
		return nil, err
	}
	return cb.Bytes(), nil
}

func (m *Message) marshalTo(cb *codec.Buffer, deterministic bool) error {
	for _, num := range m.FieldNumbers() {
		f, ok := m.fieldForNumber(num)
		if !ok {
			continue
		}
		if err := marshalField(cb, f, m.values[num], deterministic); err != nil {
			return err
		}
	}
	for _, num := range m.UnknownFieldNumbers() {
		for _, uf := range m.unknownFields[num] {
			marshalUnknownField(cb, num, uf)
		}
	}
	return nil
}

func marshalField(cb *codec.Buffer, f fieldRef, v interface{}, deterministic bool) error {
	switch {
	case f.IsMap():
		return marshalMapField(cb, f, v.(map[interface{}]interface{}), deterministic)
	case f.IsList():
		return marshalListField(cb, f, v.([]interface{}), deterministic)
	default:
		return marshalSingular(cb, f, v, deterministic)
	}
}

func marshalMapField(cb *codec.Buffer, f fieldRef, mp map[interface{}]interface{}, deterministic bool) error {
	kf, vf := f.MapKeyField(), f.MapValueField()
	emit := func(k, v interface{}) error {
		var entry codec.Buffer
		if err := marshalSingular(&entry, kf, k, deterministic); err != nil {
			return err
		}
		if err := marshalSingular(&entry, vf, v, deterministic); err != nil {
			return err
		}
		cb.EncodeTagAndWireType(f.Number(), codec.WireBytes)
		cb.EncodeRawBytes(entry.Bytes())
		return nil
	}
	if !deterministic {
		for k, v := range mp {
			if err := emit(k, v); err != nil {
				return err
			}
		}
		return nil
	}
	keys := make([]interface{}, 0, len(mp))
	for k := range mp {
		keys = append(keys, k)
	}
	sortMapKeys(keys)
	for _, k := range keys {
		if err := emit(k, mp[k]); err != nil {
			return err
		}
	}
	return nil
}

// sortMapKeys orders canonical map keys: false before true for bools,
// numeric order for integers, lexicographic for strings. A map field's
// keys are homogeneous, so only same-type comparisons occur.
func sortMapKeys(keys []interface{}) {
	sort.Slice(keys, func(i, j int) bool {
		switch a := keys[i].(type) {
		case bool:
			return !a && keys[j].(bool)
		case int32:
			return a < keys[j].(int32)
		case int64:
			return a < keys[j].(int64)
		case uint32:
			return a < keys[j].(uint32)
		case uint64:
			return a < keys[j].(uint64)
		case string:
			return a < keys[j].(string)
		default:
			return false
		}
	})
}

func marshalListField(cb *codec.Buffer, f fieldRef, list []interface{}, deterministic bool) error {
	if f.IsPacked() && isPackableKind(f.Kind()) {
		var packed codec.Buffer
		for _, v := range list {
			marshalScalarPayload(&packed, f.Kind(), v)
		}
		cb.EncodeTagAndWireType(f.Number(), codec.WireBytes)
		cb.EncodeRawBytes(packed.Bytes())
		return nil
	}
	for _, v := range list {
		if err := marshalSingular(cb, f, v, deterministic); err != nil {
			return err
		}
	}
	return nil
}

func marshalSingular(cb *codec.Buffer, f fieldRef, v interface{}, deterministic bool) error {
	switch f.Kind() {
	case desc.MessageKind:
		nested, err := v.(*Message).marshal(deterministic)
		if err != nil {
			return err
		}
		cb.EncodeTagAndWireType(f.Number(), codec.WireBytes)
		cb.EncodeRawBytes(nested)
	case desc.GroupKind:
		cb.EncodeTagAndWireType(f.Number(), codec.WireStartGroup)
		if err := v.(*Message).marshalTo(cb, deterministic); err != nil {
			return err
		}
		cb.EncodeTagAndWireType(f.Number(), codec.WireEndGroup)
	default:
		cb.EncodeTagAndWireType(f.Number(), kindWireType(f.Kind()))
		marshalScalarPayload(cb, f.Kind(), v)
	}
	return nil
}

// marshalScalarPayload appends the payload of one scalar value, without a
// tag. The value must be in canonical representation for the kind.
func marshalScalarPayload(cb *codec.Buffer, k desc.Kind, v interface{}) {
	switch k {
	case desc.BoolKind:
		if v.(bool) {
			cb.EncodeVarint(1)
		} else {
			cb.EncodeVarint(0)
		}
	case desc.Int32Kind, desc.EnumKind:
		cb.EncodeVarint(uint64(int64(v.(int32))))
	case desc.Int64Kind:
		cb.EncodeVarint(uint64(v.(int64)))
	case desc.Uint32Kind:
		cb.EncodeVarint(uint64(v.(uint32)))
	case desc.Uint64Kind:
		cb.EncodeVarint(v.(uint64))
	case desc.Sint32Kind:
		cb.EncodeVarint(codec.EncodeZigZag32(v.(int32)))
	case desc.Sint64Kind:
		cb.EncodeVarint(codec.EncodeZigZag64(v.(int64)))
	case desc.Fixed32Kind:
		cb.EncodeFixed32(uint64(v.(uint32)))
	case desc.Sfixed32Kind:
		cb.EncodeFixed32(uint64(uint32(v.(int32))))
	case desc.FloatKind:
		cb.EncodeFixed32(uint64(math.Float32bits(v.(float32))))
	case desc.Fixed64Kind:
		cb.EncodeFixed64(v.(uint64))
	case desc.Sfixed64Kind:
		cb.EncodeFixed64(uint64(v.(int64)))
	case desc.DoubleKind:
		cb.EncodeFixed64(math.Float64bits(v.(float64)))
	case desc.StringKind:
		cb.EncodeRawBytes([]byte(v.(string)))
	case desc.BytesKind:
		cb.EncodeRawBytes(v.([]byte))
	}
}

func marshalUnknownField(cb *codec.Buffer, number int32, uf UnknownField) {
	cb.EncodeTagAndWireType(number, uf.Encoding)
	switch uf.Encoding {
	case codec.WireVarint:
		cb.EncodeVarint(uf.Value)
	case codec.WireFixed32:
		cb.EncodeFixed32(uf.Value)
	case codec.WireFixed64:
		cb.EncodeFixed64(uf.Value)
	case codec.WireBytes:
		cb.EncodeRawBytes(uf.Contents)
	case codec.WireStartGroup:
		cb.Write(uf.Contents)
		cb.EncodeTagAndWireType(number, codec.WireEndGroup)
	}
}

// kindWireType returns the wire type a singular value of the kind is
// encoded with.
func kindWireType(k desc.Kind) int8 {
	switch k {
	case desc.Fixed32Kind, desc.Sfixed32Kind, desc.FloatKind:
		return codec.WireFixed32
	case desc.Fixed64Kind, desc.Sfixed64Kind, desc.DoubleKind:
		return codec.WireFixed64
	case desc.StringKind, desc.BytesKind, desc.MessageKind:
		return codec.WireBytes
	case desc.GroupKind:
		return codec.WireStartGroup
	default:
		return codec.WireVarint
	}
}

func isPackableKind(k desc.Kind) bool {
	switch k {
	case desc.StringKind, desc.BytesKind, desc.MessageKind, desc.GroupKind:
		return false
	default:
		return true
	}
}

// Unmarshal replaces the message's contents with the decoded form of the
// given wire bytes. Decoding is all-or-nothing: on error the message is
// left untouched.
func (m *Message) Unmarshal(b []byte) error {
	scratch := NewMessage(m.md)
	if err := scratch.unmarshal(codec.NewBuffer(b)); err != nil {
		return err
	}
	m.values = scratch.values
	m.unknownFields = scratch.unknownFields
	return nil
}

// UnmarshalMerge decodes the given wire bytes into the message, keeping
// fields already present: repeated fields append, map entries overwrite
// per key, nested messages merge recursively, scalars take the last value
// seen. On error the message is left untouched.
func (m *Message) UnmarshalMerge(b []byte) error {
	scratch := m.Clone()
	if err := scratch.unmarshal(codec.NewBuffer(b)); err != nil {
		return err
	}
	m.values = scratch.values
	m.unknownFields = scratch.unknownFields
	return nil
}

// unmarshal decodes records into the message in place until the buffer is
// exhausted.
func (m *Message) unmarshal(cb *codec.Buffer) error {
	for !cb.EOF() {
		num, wt, err := cb.DecodeTagAndWireType()
		if err != nil {
			return wrapDecodeError(m.md, err)
		}
		if wt == codec.WireEndGroup {
			return decodeErrorf(m.md, "unexpected end-group tag for field %d", num)
		}
		f, ok := m.fieldForNumber(num)
		if !ok {
			if err := m.decodeUnknownField(cb, num, wt); err != nil {
				return wrapDecodeError(m.md, err)
			}
			continue
		}
		if err := m.decodeKnownField(cb, f, wt); err != nil {
			return wrapDecodeError(m.md, err)
		}
	}
	return nil
}

func (m *Message) decodeUnknownField(cb *codec.Buffer, number int32, wt int8) error {
	uf := UnknownField{Encoding: wt}
	var err error
	switch wt {
	case codec.WireVarint:
		uf.Value, err = cb.DecodeVarint()
	case codec.WireFixed32:
		uf.Value, err = cb.DecodeFixed32()
	case codec.WireFixed64:
		uf.Value, err = cb.DecodeFixed64()
	case codec.WireBytes:
		uf.Contents, err = cb.DecodeRawBytes(true)
	case codec.WireStartGroup:
		uf.Contents, err = cb.ReadGroup(true)
	default:
		err = codec.ErrBadWireType
	}
	if err != nil {
		return err
	}
	if m.unknownFields == nil {
		m.unknownFields = map[int32][]UnknownField{}
	}
	m.unknownFields[number] = append(m.unknownFields[number], uf)
	return nil
}

func (m *Message) decodeKnownField(cb *codec.Buffer, f fieldRef, wt int8) error {
	want := kindWireType(f.Kind())
	if f.IsList() && wt == codec.WireBytes && want != codec.WireBytes && isPackableKind(f.Kind()) {
		// packed encoding of a repeated scalar field
		raw, err := cb.DecodeRawBytes(false)
		if err != nil {
			return err
		}
		packed := codec.NewBuffer(raw)
		for !packed.EOF() {
			v, err := decodeScalarPayload(packed, f.Kind(), want)
			if err != nil {
				return err
			}
			m.appendListValue(f, v)
		}
		return nil
	}
	if wt != want {
		return decodeErrorf(m.md, "field %s: wire type %d cannot encode kind %v", f.Name(), wt, f.Kind())
	}
	switch f.Kind() {
	case desc.MessageKind:
		raw, err := cb.DecodeRawBytes(false)
		if err != nil {
			return err
		}
		return m.decodeMessageValue(f, raw)
	case desc.GroupKind:
		raw, err := cb.ReadGroup(false)
		if err != nil {
			return err
		}
		return m.decodeMessageValue(f, raw)
	default:
		v, err := decodeScalarPayload(cb, f.Kind(), wt)
		if err != nil {
			return err
		}
		m.storeDecodedValue(f, v)
		return nil
	}
}

// decodeMessageValue handles a message or group payload: a map entry is
// re-assembled into the map, a repeated element appended, and a singular
// value merged into any message already present for the field.
func (m *Message) decodeMessageValue(f fieldRef, raw []byte) error {
	mt, _ := f.MessageType()
	if f.IsMap() {
		entry := NewMessage(mt)
		if err := entry.unmarshal(codec.NewBuffer(raw)); err != nil {
			return err
		}
		// absent entry fields take their defaults even when the entry's
		// syntax tracks presence
		kf, vf := f.MapKeyField(), f.MapValueField()
		k, ok := entry.values[kf.Number()]
		if !ok {
			k = kf.DefaultValue()
		}
		v, ok := entry.values[vf.Number()]
		if !ok {
			if vt, isMessage := vf.MessageType(); isMessage {
				v = NewMessage(vt)
			} else {
				v = vf.DefaultValue()
			}
		}
		m.insertMapEntry(f, k, v)
		return nil
	}
	if f.IsList() {
		nested := NewMessage(mt)
		if err := nested.unmarshal(codec.NewBuffer(raw)); err != nil {
			return err
		}
		m.appendListValue(f, nested)
		return nil
	}
	if existing, ok := m.values[f.Number()].(*Message); ok {
		return existing.unmarshal(codec.NewBuffer(raw))
	}
	nested := NewMessage(mt)
	if err := nested.unmarshal(codec.NewBuffer(raw)); err != nil {
		return err
	}
	m.internalSetField(f, nested)
	return nil
}

// storeDecodedValue assigns one decoded scalar according to the field's
// cardinality. Singular fields go through internalSetField so oneof
// exclusivity and presence semantics hold for wire input too.
func (m *Message) storeDecodedValue(f fieldRef, v interface{}) {
	if f.IsList() {
		m.appendListValue(f, v)
		return
	}
	m.internalSetField(f, v)
}

func (m *Message) appendListValue(f fieldRef, v interface{}) {
	list, _ := m.values[f.Number()].([]interface{})
	if m.values == nil {
		m.values = map[int32]interface{}{}
	}
	m.values[f.Number()] = append(list, v)
}

// insertMapEntry stores an already-canonical key/value pair; a duplicate
// key overwrites the earlier value.
func (m *Message) insertMapEntry(f fieldRef, k, v interface{}) {
	mp, _ := m.values[f.Number()].(map[interface{}]interface{})
	if mp == nil {
		mp = map[interface{}]interface{}{}
		if m.values == nil {
			m.values = map[int32]interface{}{}
		}
		m.values[f.Number()] = mp
	}
	mp[k] = v
}

func decodeScalarPayload(cb *codec.Buffer, k desc.Kind, wt int8) (interface{}, error) {
	switch wt {
	case codec.WireVarint:
		v, err := cb.DecodeVarint()
		if err != nil {
			return nil, err
		}
		switch k {
		case desc.BoolKind:
			return v != 0, nil
		case desc.Int32Kind, desc.EnumKind:
			return int32(v), nil
		case desc.Int64Kind:
			return int64(v), nil
		case desc.Uint32Kind:
			return uint32(v), nil
		case desc.Uint64Kind:
			return v, nil
		case desc.Sint32Kind:
			return codec.DecodeZigZag32(v), nil
		case desc.Sint64Kind:
			return codec.DecodeZigZag64(v), nil
		}
	case codec.WireFixed32:
		v, err := cb.DecodeFixed32()
		if err != nil {
			return nil, err
		}
		switch k {
		case desc.Fixed32Kind:
			return uint32(v), nil
		case desc.Sfixed32Kind:
			return int32(v), nil
		case desc.FloatKind:
			return math.Float32frombits(uint32(v)), nil
		}
	case codec.WireFixed64:
		v, err := cb.DecodeFixed64()
		if err != nil {
			return nil, err
		}
		switch k {
		case desc.Fixed64Kind:
			return v, nil
		case desc.Sfixed64Kind:
			return int64(v), nil
		case desc.DoubleKind:
			return math.Float64frombits(v), nil
		}
	case codec.WireBytes:
		raw, err := cb.DecodeRawBytes(true)
		if err != nil {
			return nil, err
		}
		switch k {
		case desc.StringKind:
			return string(raw), nil
		case desc.BytesKind:
			return raw, nil
		}
	}
	return nil, codec.ErrBadWireType
}
