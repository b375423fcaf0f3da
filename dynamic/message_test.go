package dynamic_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protodyn/protodyn/desc"
	"github.com/protodyn/protodyn/dynamic"
	"github.com/protodyn/protodyn/internal/testprotos"
)

func field(t *testing.T, md desc.MessageDescriptor, name string) desc.FieldDescriptor {
	t.Helper()
	fd, ok := md.FindFieldByName(name)
	require.True(t, ok, "field %s", name)
	return fd
}

func TestSetAndGetScalars(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)

	m.SetFieldByName("f_int32", int32(-5))
	m.SetFieldByName("f_int64", int64(1<<40))
	m.SetFieldByName("f_string", "hello")
	m.SetFieldByName("f_bool", true)
	m.SetFieldByName("f_bytes", []byte{0, 1, 2})
	m.SetFieldByName("f_color", int32(2))

	assert.Equal(t, int32(-5), m.GetFieldByName("f_int32"))
	assert.Equal(t, int64(1<<40), m.GetFieldByName("f_int64"))
	assert.Equal(t, "hello", m.GetFieldByName("f_string"))
	assert.Equal(t, true, m.GetFieldByName("f_bool"))
	assert.Equal(t, []byte{0, 1, 2}, m.GetFieldByName("f_bytes"))
	assert.Equal(t, int32(2), m.GetFieldByName("f_color"))
}

func TestCoercionOfNaturalGoValues(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)

	// plain ints convert when they fit
	require.NoError(t, m.TrySetFieldByName("f_int32", 7))
	assert.Equal(t, int32(7), m.GetFieldByName("f_int32"))
	require.NoError(t, m.TrySetFieldByName("f_uint64", 12))
	assert.Equal(t, uint64(12), m.GetFieldByName("f_uint64"))
	require.NoError(t, m.TrySetFieldByName("f_double", 1))
	assert.Equal(t, float64(1), m.GetFieldByName("f_double"))
	require.NoError(t, m.TrySetFieldByName("f_float", float64(2.5)))
	assert.Equal(t, float32(2.5), m.GetFieldByName("f_float"))

	// typed slices convert elementwise
	require.NoError(t, m.TrySetFieldByName("r_int32", []int{1, 2, 3}))
	assert.Equal(t, []interface{}{int32(1), int32(2), int32(3)}, m.GetFieldByName("r_int32"))

	// out of range and wrong kinds are rejected
	var te *dynamic.TypeError
	err := m.TrySetFieldByName("f_int32", int64(1<<40))
	require.ErrorAs(t, err, &te)
	err = m.TrySetFieldByName("f_uint32", -1)
	require.ErrorAs(t, err, &te)
	err = m.TrySetFieldByName("f_string", 42)
	require.ErrorAs(t, err, &te)
	err = m.TrySetFieldByName("f_bool", "true")
	require.ErrorAs(t, err, &te)
}

func TestUnknownFieldName(t *testing.T) {
	m := dynamic.NewMessage(testprotos.Message("testdata.Scalars"))
	_, err := m.TryGetFieldByName("nope")
	assert.ErrorIs(t, err, dynamic.ErrUnknownFieldName)
	assert.Panics(t, func() { m.GetFieldByName("nope") })
}

func TestForeignDescriptorRejected(t *testing.T) {
	widget := testprotos.Message("testdata.Widget")
	scalars := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(widget)

	var te *dynamic.TypeError
	_, err := m.TryGetField(field(t, scalars, "f_int32"))
	require.ErrorAs(t, err, &te)
	assert.Panics(t, func() { m.GetField(field(t, scalars, "f_int32")) })
}

func TestProto3PresenceSemantics(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)

	// absent fields without presence read as their defaults
	assert.Equal(t, "", m.GetFieldByName("f_string"))
	assert.Equal(t, int32(0), m.GetFieldByName("f_int32"))
	assert.False(t, m.HasField(field(t, md, "f_string")))

	// setting the zero value on a field without presence stays absent
	m.SetFieldByName("f_string", "")
	assert.False(t, m.HasField(field(t, md, "f_string")))

	// a proto3 optional field keeps an explicit empty value
	assert.Nil(t, m.GetFieldByName("opt_string"))
	m.SetFieldByName("opt_string", "")
	assert.True(t, m.HasField(field(t, md, "opt_string")))
	assert.Equal(t, "", m.GetFieldByName("opt_string"))

	m.ClearField(field(t, md, "opt_string"))
	assert.False(t, m.HasField(field(t, md, "opt_string")))
}

func TestProto2Defaults(t *testing.T) {
	md := testprotos.Message("testdata2.Legacy")
	m := dynamic.NewMessage(md)

	// presence-tracking fields read as unset; the declared default lives
	// on the descriptor
	assert.Nil(t, m.GetFieldByName("num"))
	assert.Equal(t, int32(42), field(t, md, "num").DefaultValue())

	m.SetFieldByName("num", int32(42))
	assert.True(t, m.HasField(field(t, md, "num")), "explicit default-valued set is kept")
	assert.Equal(t, int32(42), m.GetFieldByName("num"))
}

func TestOneofExclusivity(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)

	m.SetFieldByName("choice_name", "first")
	require.True(t, m.HasField(field(t, md, "choice_name")))

	m.SetFieldByName("choice_id", int64(99))
	assert.False(t, m.HasField(field(t, md, "choice_name")), "setting field 5 clears sibling field 3")
	assert.True(t, m.HasField(field(t, md, "choice_id")))

	oo, _ := field(t, md, "choice_id").ContainingOneof()
	set, ok := m.GetOneofField(oo)
	require.True(t, ok)
	assert.Equal(t, int32(5), set.Number())
}

func TestRepeatedFieldOps(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)
	rs := field(t, md, "r_string")

	m.AddRepeatedField(rs, "a")
	m.AddRepeatedField(rs, "b")
	n, err := m.TryRepeatedFieldLength(rs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "b", m.GetRepeatedField(rs, 1))

	require.NoError(t, m.TrySetRepeatedField(rs, 0, "z"))
	assert.Equal(t, "z", m.GetRepeatedField(rs, 0))

	_, err = m.TryGetRepeatedField(rs, 2)
	assert.ErrorIs(t, err, dynamic.ErrIndexOutOfRange)

	err = m.TryAddRepeatedField(field(t, md, "f_string"), "x")
	assert.ErrorIs(t, err, dynamic.ErrFieldIsNotRepeated)
}

func TestMapFieldOps(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	counts := field(t, md, "counts")

	m.PutMapField(counts, "a", int32(1))
	m.PutMapField(counts, "b", 2)
	assert.Equal(t, int32(2), m.GetMapField(counts, "b"))

	m.PutMapField(counts, "b", 5)
	assert.Equal(t, int32(5), m.GetMapField(counts, "b"), "put overwrites")

	seen := map[string]int32{}
	require.NoError(t, m.ForEachMapFieldEntry(counts, func(k, v interface{}) bool {
		seen[k.(string)] = v.(int32)
		return true
	}))
	assert.Equal(t, map[string]int32{"a": 1, "b": 5}, seen)

	require.NoError(t, m.TryRemoveMapField(counts, "a"))
	_, ok, err := m.TryGetMapField(counts, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.TryRemoveMapField(counts, "b"))
	assert.False(t, m.HasField(counts), "removing the last entry clears the field")

	// a whole map value coerces from a natural Go map
	require.NoError(t, m.TrySetField(counts, map[string]int{"x": 3}))
	assert.Equal(t, int32(3), m.GetMapField(counts, "x"))

	err = m.TryPutMapField(field(t, md, "name"), "k", "v")
	assert.ErrorIs(t, err, dynamic.ErrFieldIsNotMap)
}

func TestNestedMessageValues(t *testing.T) {
	widget := testprotos.Message("testdata.Widget")
	part := testprotos.Message("testdata.Widget.Part")
	m := dynamic.NewMessage(widget)

	p := dynamic.NewMessage(part)
	p.SetFieldByName("sku", "X-1")
	p.SetFieldByName("qty", int64(3))
	m.AddRepeatedField(field(t, widget, "extras"), p)
	m.PutMapField(field(t, widget, "parts"), "x", p.Clone())

	got := m.GetRepeatedField(field(t, widget, "extras"), 0).(*dynamic.Message)
	assert.Equal(t, "X-1", got.GetFieldByName("sku"))

	// a message of the wrong type is rejected
	var te *dynamic.TypeError
	err := m.TrySetFieldByName("scalars", p)
	require.ErrorAs(t, err, &te)
}

func TestExtensionAccessors(t *testing.T) {
	pool := testprotos.Pool()
	legacy := testprotos.Message("testdata2.Legacy")
	m := dynamic.NewMessage(legacy)

	extStr, ok := pool.FindExtensionByName("testdata2.ext_str")
	require.True(t, ok)
	extNums, ok := pool.FindExtensionByName("testdata2.ext_nums")
	require.True(t, ok)

	m.SetExtension(extStr, "tagged")
	assert.Equal(t, "tagged", m.GetExtension(extStr))
	has, err := m.HasExtension(extStr)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, m.TryAddRepeatedExtension(extNums, 4))
	require.NoError(t, m.TryAddRepeatedExtension(extNums, 5))
	assert.Equal(t, []interface{}{int32(4), int32(5)}, m.GetExtension(extNums))

	require.NoError(t, m.TryClearExtension(extStr))
	has, err = m.HasExtension(extStr)
	require.NoError(t, err)
	assert.False(t, has)

	// an extension of a different message is foreign here
	other := dynamic.NewMessage(testprotos.Message("testdata.Scalars"))
	var te *dynamic.TypeError
	err = other.TrySetExtension(extStr, "x")
	require.ErrorAs(t, err, &te)
}

func TestCloneAndEqual(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("name", "w")
	m.PutMapField(field(t, md, "counts"), "a", 1)
	p := dynamic.NewMessage(testprotos.Message("testdata.Widget.Part"))
	p.SetFieldByName("sku", "s")
	m.AddRepeatedField(field(t, md, "extras"), p)

	c := m.Clone()
	assert.True(t, m.Equal(c))
	assert.True(t, c.Equal(m))

	// deep copy: mutating the clone's nested message leaves the original
	c.GetRepeatedField(field(t, md, "extras"), 0).(*dynamic.Message).SetFieldByName("sku", "t")
	assert.False(t, m.Equal(c))
	assert.Equal(t, "s", p.GetFieldByName("sku"))

	// messages of different descriptors never compare equal
	assert.False(t, m.Equal(dynamic.NewMessage(testprotos.Message("testdata.Scalars"))))
}

func TestValidateRequiredFields(t *testing.T) {
	md := testprotos.Message("testdata2.Legacy")
	m := dynamic.NewMessage(md)

	err := m.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id")

	m.SetFieldByName("id", "ok")
	assert.NoError(t, m.Validate())
}

func TestFieldNumbersAndReset(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("f_string", "x")
	m.SetFieldByName("f_int32", 9)
	assert.Equal(t, []int32{3, 14}, m.FieldNumbers())

	m.Reset()
	assert.Empty(t, m.FieldNumbers())
	assert.Equal(t, "", m.GetFieldByName("f_string"))
}
