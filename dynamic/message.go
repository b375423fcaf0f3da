package dynamic

import (
	"sort"

	"github.com/protodyn/protodyn/desc"
)

// fieldRef is the descriptor surface shared by desc.FieldDescriptor and
// desc.ExtensionDescriptor. All field-driven logic in this package works
// against it so that extensions and ordinary fields take the same paths.
type fieldRef interface {
	Name() string
	FullName() string
	JSONName() string
	Number() int32
	Kind() desc.Kind
	Cardinality() desc.Cardinality
	IsMap() bool
	IsList() bool
	IsPacked() bool
	HasPresence() bool
	DefaultValue() interface{}
	ContainingOneof() (desc.OneofDescriptor, bool)
	MessageType() (desc.MessageDescriptor, bool)
	EnumType() (desc.EnumDescriptor, bool)
	MapKeyField() desc.FieldDescriptor
	MapValueField() desc.FieldDescriptor
	IsExtension() bool
}

var (
	_ fieldRef = desc.FieldDescriptor{}
	_ fieldRef = desc.ExtensionDescriptor{}
)

// UnknownField represents one wire-format record for a field number the
// decoding descriptor did not declare. Encoding is the record's wire type;
// varint and fixed records carry their payload in Value, length-delimited
// and group records in Contents.
type UnknownField struct {
	Encoding int8
	Value    uint64
	Contents []byte
}

// Message is a dynamic message: an instance whose allowed fields and their
// types are determined by a message descriptor at runtime.
type Message struct {
	md            desc.MessageDescriptor
	values        map[int32]interface{}
	unknownFields map[int32][]UnknownField
}

// NewMessage returns an empty message bound to the given descriptor: all
// fields absent, no unknown fields.
func NewMessage(md desc.MessageDescriptor) *Message {
	return &Message{md: md}
}

// Descriptor returns the message descriptor this instance is bound to.
func (m *Message) Descriptor() desc.MessageDescriptor {
	return m.md
}

// FieldNumbers returns the numbers of all present fields, in ascending
// order. Extension fields are included.
func (m *Message) FieldNumbers() []int32 {
	nums := make([]int32, 0, len(m.values))
	for n := range m.values {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// UnknownFieldNumbers returns the numbers of all captured unknown fields,
// in ascending order.
func (m *Message) UnknownFieldNumbers() []int32 {
	nums := make([]int32, 0, len(m.unknownFields))
	for n := range m.unknownFields {
		nums = append(nums, n)
	}
	sort.Slice(nums, func(i, j int) bool { return nums[i] < nums[j] })
	return nums
}

// GetUnknownField returns the captured wire records for the given field
// number, in the order they appeared in the input.
func (m *Message) GetUnknownField(number int32) []UnknownField {
	return m.unknownFields[number]
}

// ClearUnknownFields drops all captured unknown fields.
func (m *Message) ClearUnknownFields() {
	m.unknownFields = nil
}

// Reset returns the message to its freshly constructed state.
func (m *Message) Reset() {
	m.values = nil
	m.unknownFields = nil
}

// checkField verifies that the given descriptor belongs to this message's
// type: a plain field must be declared by the bound descriptor, an
// extension must extend it within a declared extension range.
func (m *Message) checkField(f fieldRef) error {
	if xd, ok := f.(desc.ExtensionDescriptor); ok {
		if xd.Extendee() != m.md {
			return typeErrorf(f.FullName(), "extension does not extend %s", m.md.FullName())
		}
		return nil
	}
	fd := f.(desc.FieldDescriptor)
	if fd.ContainingMessage() != m.md {
		return typeErrorf(f.FullName(), "field belongs to %s, not %s", fd.ContainingMessage().FullName(), m.md.FullName())
	}
	return nil
}

// fieldForNumber maps a field number to its descriptor, consulting the
// pool's extension index for numbers inside an extension range.
func (m *Message) fieldForNumber(number int32) (fieldRef, bool) {
	if fd, ok := m.md.FindFieldByNumber(number); ok {
		return fd, true
	}
	if m.md.IsExtensionNumber(number) {
		if xd, ok := m.md.ParentFile().Pool().FindExtensionByNumber(m.md, number); ok {
			return xd, true
		}
	}
	return nil, false
}

func (m *Message) fieldForName(name string) (desc.FieldDescriptor, error) {
	fd, ok := m.md.FindFieldByName(name)
	if !ok {
		return desc.FieldDescriptor{}, ErrUnknownFieldName
	}
	return fd, nil
}

// TryHasField reports whether the field is present. For fields without
// explicit presence this is a statement about storage, not semantics: such
// a field set to its default reads as absent.
func (m *Message) TryHasField(fd desc.FieldDescriptor) (bool, error) {
	if err := m.checkField(fd); err != nil {
		return false, err
	}
	_, ok := m.values[fd.Number()]
	return ok, nil
}

// HasField is like TryHasField but panics on a foreign descriptor.
func (m *Message) HasField(fd desc.FieldDescriptor) bool {
	ok, err := m.TryHasField(fd)
	if err != nil {
		panic(err.Error())
	}
	return ok
}

// HasFieldName reports whether the field with the given declared name is
// present.
func (m *Message) HasFieldName(name string) (bool, error) {
	fd, err := m.fieldForName(name)
	if err != nil {
		return false, err
	}
	_, ok := m.values[fd.Number()]
	return ok, nil
}

// TryGetField returns the field's current value. An absent field reads as
// its declared default for fields without explicit presence, as nil for
// presence-tracking fields, and as an empty (nil) slice or map for
// repeated and map fields.
func (m *Message) TryGetField(fd desc.FieldDescriptor) (interface{}, error) {
	if err := m.checkField(fd); err != nil {
		return nil, err
	}
	return m.getField(fd), nil
}

// GetField is like TryGetField but panics on a foreign descriptor.
func (m *Message) GetField(fd desc.FieldDescriptor) interface{} {
	v, err := m.TryGetField(fd)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// TryGetFieldByNumber returns the value of the field with the given
// number.
func (m *Message) TryGetFieldByNumber(number int32) (interface{}, error) {
	f, ok := m.fieldForNumber(number)
	if !ok {
		return nil, typeErrorf("", "message %s has no field with number %d", m.md.FullName(), number)
	}
	return m.getField(f), nil
}

// GetFieldByNumber is like TryGetFieldByNumber but panics on an unknown
// number.
func (m *Message) GetFieldByNumber(number int32) interface{} {
	v, err := m.TryGetFieldByNumber(number)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// TryGetFieldByName returns the value of the field with the given declared
// name.
func (m *Message) TryGetFieldByName(name string) (interface{}, error) {
	fd, err := m.fieldForName(name)
	if err != nil {
		return nil, err
	}
	return m.getField(fd), nil
}

// GetFieldByName is like TryGetFieldByName but panics on an unknown name.
func (m *Message) GetFieldByName(name string) interface{} {
	v, err := m.TryGetFieldByName(name)
	if err != nil {
		panic(err.Error())
	}
	return v
}

func (m *Message) getField(f fieldRef) interface{} {
	if v, ok := m.values[f.Number()]; ok {
		return v
	}
	switch {
	case f.IsMap():
		return map[interface{}]interface{}(nil)
	case f.IsList():
		return []interface{}(nil)
	case f.HasPresence():
		return nil
	default:
		return f.DefaultValue()
	}
}

// TrySetField sets the field to the given value. The value is coerced to
// the field's canonical representation; a kind mismatch fails with a
// *TypeError and commits nothing. Setting a oneof member clears any other
// set member of the same oneof. Setting a field without explicit presence
// to its default value clears it instead.
func (m *Message) TrySetField(fd desc.FieldDescriptor, val interface{}) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.setField(fd, val)
}

// SetField is like TrySetField but panics on error.
func (m *Message) SetField(fd desc.FieldDescriptor, val interface{}) {
	if err := m.TrySetField(fd, val); err != nil {
		panic(err.Error())
	}
}

// TrySetFieldByNumber sets the field with the given number.
func (m *Message) TrySetFieldByNumber(number int32, val interface{}) error {
	f, ok := m.fieldForNumber(number)
	if !ok {
		return typeErrorf("", "message %s has no field with number %d", m.md.FullName(), number)
	}
	return m.setField(f, val)
}

// SetFieldByNumber is like TrySetFieldByNumber but panics on error.
func (m *Message) SetFieldByNumber(number int32, val interface{}) {
	if err := m.TrySetFieldByNumber(number, val); err != nil {
		panic(err.Error())
	}
}

// TrySetFieldByName sets the field with the given declared name.
func (m *Message) TrySetFieldByName(name string, val interface{}) error {
	fd, err := m.fieldForName(name)
	if err != nil {
		return err
	}
	return m.setField(fd, val)
}

// SetFieldByName is like TrySetFieldByName but panics on error.
func (m *Message) SetFieldByName(name string, val interface{}) {
	if err := m.TrySetFieldByName(name, val); err != nil {
		panic(err.Error())
	}
}

func (m *Message) setField(f fieldRef, val interface{}) error {
	v, err := coerceFieldValue(f, val)
	if err != nil {
		return err
	}
	m.internalSetField(f, v)
	return nil
}

// internalSetField stores an already-canonical value. It enforces oneof
// exclusivity and drops default-valued sets on fields without presence.
func (m *Message) internalSetField(f fieldRef, v interface{}) {
	if !f.HasPresence() {
		switch {
		case f.IsMap():
			if len(v.(map[interface{}]interface{})) == 0 {
				m.clearNumber(f.Number())
				return
			}
		case f.IsList():
			if len(v.([]interface{})) == 0 {
				m.clearNumber(f.Number())
				return
			}
		case isDefaultValue(f, v):
			m.clearNumber(f.Number())
			return
		}
	}
	if oo, ok := f.ContainingOneof(); ok {
		for member := range oo.Fields() {
			if member.Number() != f.Number() {
				delete(m.values, member.Number())
			}
		}
	}
	if m.values == nil {
		m.values = map[int32]interface{}{}
	}
	m.values[f.Number()] = v
}

func (m *Message) clearNumber(number int32) {
	if m.values != nil {
		delete(m.values, number)
	}
}

// isDefaultValue reports whether a canonical scalar value equals the
// field's declared default.
func isDefaultValue(f fieldRef, v interface{}) bool {
	switch dv := f.DefaultValue().(type) {
	case []byte:
		b, ok := v.([]byte)
		return ok && len(b) == len(dv) && string(b) == string(dv)
	case nil:
		return false
	default:
		return v == dv
	}
}

// TryClearField removes the field's value, returning it to the absent
// state.
func (m *Message) TryClearField(fd desc.FieldDescriptor) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	m.clearNumber(fd.Number())
	return nil
}

// ClearField is like TryClearField but panics on a foreign descriptor.
func (m *Message) ClearField(fd desc.FieldDescriptor) {
	if err := m.TryClearField(fd); err != nil {
		panic(err.Error())
	}
}

// TryClearFieldByName removes the value of the field with the given name.
func (m *Message) TryClearFieldByName(name string) error {
	fd, err := m.fieldForName(name)
	if err != nil {
		return err
	}
	m.clearNumber(fd.Number())
	return nil
}

// GetOneofField returns the currently set member of the oneof, if any.
func (m *Message) GetOneofField(od desc.OneofDescriptor) (desc.FieldDescriptor, bool) {
	if od.ContainingMessage() != m.md {
		panic("dynamic: oneof " + od.FullName() + " does not belong to " + m.md.FullName())
	}
	for member := range od.Fields() {
		if _, ok := m.values[member.Number()]; ok {
			return member, true
		}
	}
	return desc.FieldDescriptor{}, false
}

// TryAddRepeatedField appends a value to a repeated field.
func (m *Message) TryAddRepeatedField(fd desc.FieldDescriptor, val interface{}) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.addRepeatedField(fd, val)
}

// AddRepeatedField is like TryAddRepeatedField but panics on error.
func (m *Message) AddRepeatedField(fd desc.FieldDescriptor, val interface{}) {
	if err := m.TryAddRepeatedField(fd, val); err != nil {
		panic(err.Error())
	}
}

func (m *Message) addRepeatedField(f fieldRef, val interface{}) error {
	if !f.IsList() {
		return ErrFieldIsNotRepeated
	}
	v, err := coerceElementValue(f, val)
	if err != nil {
		return err
	}
	list, _ := m.values[f.Number()].([]interface{})
	if m.values == nil {
		m.values = map[int32]interface{}{}
	}
	m.values[f.Number()] = append(list, v)
	return nil
}

// TryGetRepeatedField returns the index-th element of a repeated field.
func (m *Message) TryGetRepeatedField(fd desc.FieldDescriptor, index int) (interface{}, error) {
	if err := m.checkField(fd); err != nil {
		return nil, err
	}
	if !fd.IsList() {
		return nil, ErrFieldIsNotRepeated
	}
	list, _ := m.values[fd.Number()].([]interface{})
	if index < 0 || index >= len(list) {
		return nil, ErrIndexOutOfRange
	}
	return list[index], nil
}

// GetRepeatedField is like TryGetRepeatedField but panics on error.
func (m *Message) GetRepeatedField(fd desc.FieldDescriptor, index int) interface{} {
	v, err := m.TryGetRepeatedField(fd, index)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// TrySetRepeatedField replaces the index-th element of a repeated field.
func (m *Message) TrySetRepeatedField(fd desc.FieldDescriptor, index int, val interface{}) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	if !fd.IsList() {
		return ErrFieldIsNotRepeated
	}
	v, err := coerceElementValue(fd, val)
	if err != nil {
		return err
	}
	list, _ := m.values[fd.Number()].([]interface{})
	if index < 0 || index >= len(list) {
		return ErrIndexOutOfRange
	}
	list[index] = v
	return nil
}

// TryRepeatedFieldLength returns the element count of a repeated field.
func (m *Message) TryRepeatedFieldLength(fd desc.FieldDescriptor) (int, error) {
	if err := m.checkField(fd); err != nil {
		return 0, err
	}
	if !fd.IsList() {
		return 0, ErrFieldIsNotRepeated
	}
	list, _ := m.values[fd.Number()].([]interface{})
	return len(list), nil
}

// TryGetMapField returns the value stored under the given key of a map
// field. A missing key yields (nil, false, nil).
func (m *Message) TryGetMapField(fd desc.FieldDescriptor, key interface{}) (interface{}, bool, error) {
	if err := m.checkField(fd); err != nil {
		return nil, false, err
	}
	if !fd.IsMap() {
		return nil, false, ErrFieldIsNotMap
	}
	k, err := coerceElementValue(fd.MapKeyField(), key)
	if err != nil {
		return nil, false, err
	}
	mp, _ := m.values[fd.Number()].(map[interface{}]interface{})
	v, ok := mp[k]
	return v, ok, nil
}

// GetMapField is like TryGetMapField but panics on error; a missing key
// yields nil.
func (m *Message) GetMapField(fd desc.FieldDescriptor, key interface{}) interface{} {
	v, _, err := m.TryGetMapField(fd, key)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// TryPutMapField stores a key/value pair in a map field, replacing any
// existing value for the key.
func (m *Message) TryPutMapField(fd desc.FieldDescriptor, key, val interface{}) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	return m.putMapField(fd, key, val)
}

// PutMapField is like TryPutMapField but panics on error.
func (m *Message) PutMapField(fd desc.FieldDescriptor, key, val interface{}) {
	if err := m.TryPutMapField(fd, key, val); err != nil {
		panic(err.Error())
	}
}

func (m *Message) putMapField(f fieldRef, key, val interface{}) error {
	if !f.IsMap() {
		return ErrFieldIsNotMap
	}
	k, err := coerceElementValue(f.MapKeyField(), key)
	if err != nil {
		return err
	}
	v, err := coerceElementValue(f.MapValueField(), val)
	if err != nil {
		return err
	}
	mp, _ := m.values[f.Number()].(map[interface{}]interface{})
	if mp == nil {
		mp = map[interface{}]interface{}{}
		if m.values == nil {
			m.values = map[int32]interface{}{}
		}
		m.values[f.Number()] = mp
	}
	mp[k] = v
	return nil
}

// TryRemoveMapField deletes the entry for the given key of a map field.
func (m *Message) TryRemoveMapField(fd desc.FieldDescriptor, key interface{}) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	if !fd.IsMap() {
		return ErrFieldIsNotMap
	}
	k, err := coerceElementValue(fd.MapKeyField(), key)
	if err != nil {
		return err
	}
	mp, _ := m.values[fd.Number()].(map[interface{}]interface{})
	delete(mp, k)
	if len(mp) == 0 {
		m.clearNumber(fd.Number())
	}
	return nil
}

// RemoveMapField is like TryRemoveMapField but panics on error.
func (m *Message) RemoveMapField(fd desc.FieldDescriptor, key interface{}) {
	if err := m.TryRemoveMapField(fd, key); err != nil {
		panic(err.Error())
	}
}

// ForEachMapFieldEntry calls fn for every entry of a map field, in
// unspecified order, until fn returns false.
func (m *Message) ForEachMapFieldEntry(fd desc.FieldDescriptor, fn func(key, val interface{}) bool) error {
	if err := m.checkField(fd); err != nil {
		return err
	}
	if !fd.IsMap() {
		return ErrFieldIsNotMap
	}
	mp, _ := m.values[fd.Number()].(map[interface{}]interface{})
	for k, v := range mp {
		if !fn(k, v) {
			return nil
		}
	}
	return nil
}

// HasExtension reports whether the extension field is present.
func (m *Message) HasExtension(xd desc.ExtensionDescriptor) (bool, error) {
	if err := m.checkField(xd); err != nil {
		return false, err
	}
	_, ok := m.values[xd.Number()]
	return ok, nil
}

// TryGetExtension returns the extension field's current value, with the
// same absent-field semantics as TryGetField.
func (m *Message) TryGetExtension(xd desc.ExtensionDescriptor) (interface{}, error) {
	if err := m.checkField(xd); err != nil {
		return nil, err
	}
	return m.getField(xd), nil
}

// GetExtension is like TryGetExtension but panics on error.
func (m *Message) GetExtension(xd desc.ExtensionDescriptor) interface{} {
	v, err := m.TryGetExtension(xd)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// TrySetExtension sets the extension field to the given value.
func (m *Message) TrySetExtension(xd desc.ExtensionDescriptor, val interface{}) error {
	if err := m.checkField(xd); err != nil {
		return err
	}
	return m.setField(xd, val)
}

// SetExtension is like TrySetExtension but panics on error.
func (m *Message) SetExtension(xd desc.ExtensionDescriptor, val interface{}) {
	if err := m.TrySetExtension(xd, val); err != nil {
		panic(err.Error())
	}
}

// TryClearExtension removes the extension field's value.
func (m *Message) TryClearExtension(xd desc.ExtensionDescriptor) error {
	if err := m.checkField(xd); err != nil {
		return err
	}
	m.clearNumber(xd.Number())
	return nil
}

// TryAddRepeatedExtension appends a value to a repeated extension field.
func (m *Message) TryAddRepeatedExtension(xd desc.ExtensionDescriptor, val interface{}) error {
	if err := m.checkField(xd); err != nil {
		return err
	}
	return m.addRepeatedField(xd, val)
}
