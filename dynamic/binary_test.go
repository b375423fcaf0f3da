package dynamic_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/protocolbuffers/protoscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/protodyn/protodyn/codec"
	"github.com/protodyn/protodyn/dynamic"
	"github.com/protodyn/protodyn/internal/testprotos"
)

// wire assembles a binary specimen from protoscope text.
func wire(t *testing.T, src string) []byte {
	t.Helper()
	b, err := protoscope.NewScanner(src).Exec()
	require.NoError(t, err, "protoscope: %s", src)
	return b
}

func roundTrip(t *testing.T, m *dynamic.Message) *dynamic.Message {
	t.Helper()
	b, err := m.Marshal()
	require.NoError(t, err)
	back := dynamic.NewMessage(m.Descriptor())
	require.NoError(t, back.Unmarshal(b))
	require.True(t, m.Equal(back), "round trip changed the message")
	return back
}

func TestBinaryRoundTripScalars(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("f_double", 3.5)
	m.SetFieldByName("f_float", float32(-1.25))
	m.SetFieldByName("f_int32", int32(-40))
	m.SetFieldByName("f_int64", int64(-1<<40))
	m.SetFieldByName("f_uint32", uint32(300))
	m.SetFieldByName("f_uint64", uint64(1)<<63)
	m.SetFieldByName("f_sint32", int32(-3))
	m.SetFieldByName("f_sint64", int64(-1<<50))
	m.SetFieldByName("f_fixed32", uint32(7))
	m.SetFieldByName("f_fixed64", uint64(8))
	m.SetFieldByName("f_sfixed32", int32(-9))
	m.SetFieldByName("f_sfixed64", int64(-10))
	m.SetFieldByName("f_bool", true)
	m.SetFieldByName("f_string", "héllo")
	m.SetFieldByName("f_bytes", []byte{0xff, 0x00})
	m.SetFieldByName("f_color", int32(3))
	m.SetFieldByName("r_int32", []int32{1, -1, 1 << 20})
	m.SetFieldByName("r_string", []string{"a", "", "c"})
	m.SetFieldByName("unpacked_int32", []int32{5, 6})
	roundTrip(t, m)
}

func TestBinaryRoundTripComplex(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("name", "w1")
	m.SetFieldByName("choice_id", int64(-7))

	sc := dynamic.NewMessage(testprotos.Message("testdata.Scalars"))
	sc.SetFieldByName("f_string", "inner")
	m.SetFieldByName("scalars", sc)

	m.PutMapField(field(t, md, "counts"), "a", 1)
	m.PutMapField(field(t, md, "counts"), "b", 0)
	m.PutMapField(field(t, md, "labels"), int32(-2), "neg")

	p := dynamic.NewMessage(testprotos.Message("testdata.Widget.Part"))
	p.SetFieldByName("sku", "s1")
	p.SetFieldByName("qty", 2)
	m.PutMapField(field(t, md, "parts"), "p", p)
	m.AddRepeatedField(field(t, md, "extras"), p.Clone())

	roundTrip(t, m)
}

func TestBinaryRoundTripProto2(t *testing.T) {
	md := testprotos.Message("testdata2.Legacy")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("id", "L-1")
	m.SetFieldByName("num", 42)
	m.SetFieldByName("mood", int32(1))

	g := dynamic.NewMessage(testprotos.Message("testdata2.Legacy.Extras"))
	g.SetFieldByName("note", "n")
	g.SetFieldByName("tags", []int32{1, 2})
	m.SetFieldByName("extras", g)

	extStr, _ := testprotos.Pool().FindExtensionByName("testdata2.ext_str")
	extNums, _ := testprotos.Pool().FindExtensionByName("testdata2.ext_nums")
	m.SetExtension(extStr, "tagged")
	m.SetExtension(extNums, []int32{9, 10})

	b, err := m.Marshal()
	require.NoError(t, err)
	back := dynamic.NewMessage(md)
	require.NoError(t, back.Unmarshal(b))
	require.True(t, m.Equal(back))

	// extensions survive because the descriptor's pool knows them
	assert.Equal(t, "tagged", back.GetExtension(extStr))
	gotG := back.GetFieldByName("extras").(*dynamic.Message)
	assert.Equal(t, "n", gotG.GetFieldByName("note"))
}

func TestDecodeWireSpecimen(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	src := `
		1: {"gadget"}
		6: {1: {"a"} 2: 3}
		9: {1: {"sku-1"} 2: 12}
	`
	require.NoError(t, m.Unmarshal(wire(t, src)))
	assert.Equal(t, "gadget", m.GetFieldByName("name"))
	assert.Equal(t, int32(3), m.GetMapField(field(t, md, "counts"), "a"))
	part := m.GetRepeatedField(field(t, md, "extras"), 0).(*dynamic.Message)
	assert.Equal(t, "sku-1", part.GetFieldByName("sku"))
	assert.Equal(t, int64(12), part.GetFieldByName("qty"))
}

func TestUnknownFieldsPreservedByteForByte(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)

	// known field first, then unknowns in ascending number order, covering
	// the group, length-delimited, and varint encodings
	src := `
		14: {"hi"}
		97: !{1: 5}
		98: {"opaque"}
		99: 1234
	`
	input := wire(t, src)
	require.NoError(t, m.Unmarshal(input))

	assert.Equal(t, "hi", m.GetFieldByName("f_string"))
	assert.Equal(t, []int32{97, 98, 99}, m.UnknownFieldNumbers())
	uf := m.GetUnknownField(99)
	require.Len(t, uf, 1)
	assert.Equal(t, int8(codec.WireVarint), uf[0].Encoding)
	assert.Equal(t, uint64(1234), uf[0].Value)

	out, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, input, out, "re-encoding must reproduce the input bytes")
}

func TestRepeatedUnknownOccurrencesKeepOrder(t *testing.T) {
	m := dynamic.NewMessage(testprotos.Message("testdata.Scalars"))
	src := `
		99: 1
		99: {"x"}
		99: 2
	`
	input := wire(t, src)
	require.NoError(t, m.Unmarshal(input))
	require.Len(t, m.GetUnknownField(99), 3)

	out, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, input, out)
}

func TestPackedAndUnpackedDecodeInterchangeably(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")

	// unpacked records for a packed field
	m := dynamic.NewMessage(md)
	require.NoError(t, m.Unmarshal(wire(t, `18: 1  18: 2  18: 3`)))
	assert.Equal(t, []interface{}{int32(1), int32(2), int32(3)}, m.GetFieldByName("r_int32"))

	// a packed record for a field declared unpacked
	var cb codec.Buffer
	cb.EncodeTagAndWireType(20, codec.WireBytes)
	var payload codec.Buffer
	payload.EncodeVarint(4)
	payload.EncodeVarint(5)
	cb.EncodeRawBytes(payload.Bytes())
	m = dynamic.NewMessage(md)
	require.NoError(t, m.Unmarshal(cb.Bytes()))
	assert.Equal(t, []interface{}{int32(4), int32(5)}, m.GetFieldByName("unpacked_int32"))
}

func TestPackedEncoding(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("r_int32", []int32{1, 2})
	m.SetFieldByName("unpacked_int32", []int32{3})
	m.SetFieldByName("r_color", []int32{0, 1, 1})

	var want codec.Buffer
	want.EncodeTagAndWireType(18, codec.WireBytes)
	want.EncodeRawBytes([]byte{1, 2})
	want.EncodeTagAndWireType(20, codec.WireVarint)
	want.EncodeVarint(3)
	want.EncodeTagAndWireType(21, codec.WireBytes)
	want.EncodeRawBytes([]byte{0, 1, 1})

	b, err := m.Marshal()
	require.NoError(t, err)
	assert.Equal(t, want.Bytes(), b)
}

func TestDuplicateMapKeysLastWins(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	src := `
		6: {1: {"a"} 2: 1}
		6: {1: {"b"} 2: 2}
		6: {1: {"a"} 2: 3}
	`
	require.NoError(t, m.Unmarshal(wire(t, src)))
	assert.Equal(t, int32(3), m.GetMapField(field(t, md, "counts"), "a"))
	assert.Equal(t, int32(2), m.GetMapField(field(t, md, "counts"), "b"))
}

func TestMapEntryDefaultsWhenFieldsAbsent(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)

	// entry with no value field, then one with no key field
	require.NoError(t, m.Unmarshal(wire(t, `6: {1: {"only-key"}}  6: {2: 9}`)))
	assert.Equal(t, int32(0), m.GetMapField(field(t, md, "counts"), "only-key"))
	assert.Equal(t, int32(9), m.GetMapField(field(t, md, "counts"), ""))
}

func TestProto2MapEntryDefaults(t *testing.T) {
	md := testprotos.Message("testdata2.Legacy")
	attrs := field(t, md, "attrs")
	m := dynamic.NewMessage(md)

	// an entry whose presence-tracked key and value are both absent still
	// lands in the map under the default key
	require.NoError(t, m.Unmarshal(wire(t, `8: {}`)))
	assert.Equal(t, int32(0), m.GetMapField(attrs, ""))

	out, err := m.Marshal()
	require.NoError(t, err)
	back := dynamic.NewMessage(md)
	require.NoError(t, back.Unmarshal(out))
	assert.True(t, m.Equal(back))
}

func TestDecodeErrors(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	var de *dynamic.DecodeError

	// length prefix runs past the end of the buffer
	m := dynamic.NewMessage(md)
	err := m.Unmarshal([]byte{0x72, 0x05, 'h', 'i'})
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "testdata.Scalars", de.MessageName)

	// varint record for a length-delimited field
	err = dynamic.NewMessage(md).Unmarshal([]byte{0x70, 0x01})
	assert.ErrorAs(t, err, &de)

	// end-group tag with no matching start
	err = dynamic.NewMessage(md).Unmarshal([]byte{0x0c})
	assert.ErrorAs(t, err, &de)

	// a failed decode leaves the message untouched
	m = dynamic.NewMessage(md)
	m.SetFieldByName("f_string", "kept")
	require.Error(t, m.Unmarshal([]byte{0x72, 0x05}))
	assert.Equal(t, "kept", m.GetFieldByName("f_string"))
}

func TestUnmarshalReplacesAndMergeAppends(t *testing.T) {
	md := testprotos.Message("testdata.Scalars")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("f_int32", 1)
	m.SetFieldByName("r_string", []string{"a"})

	// plain Unmarshal resets before decoding
	require.NoError(t, m.Unmarshal(wire(t, `19: {"b"}`)))
	assert.Equal(t, int32(0), m.GetFieldByName("f_int32"))
	assert.Equal(t, []interface{}{"b"}, m.GetFieldByName("r_string"))

	// merge keeps existing state and appends repeated values
	m.SetFieldByName("f_int32", 1)
	require.NoError(t, m.UnmarshalMerge(wire(t, `19: {"c"}  3: 2`)))
	assert.Equal(t, int32(2), m.GetFieldByName("f_int32"))
	assert.Equal(t, []interface{}{"b", "c"}, m.GetFieldByName("r_string"))
}

func TestNestedMessageMergeOnRepeatedOccurrence(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)

	// two records for the same singular message field merge their contents
	src := `
		2: {14: {"s"}}
		2: {3: 7}
	`
	require.NoError(t, m.Unmarshal(wire(t, src)))
	sc := m.GetFieldByName("scalars").(*dynamic.Message)
	assert.Equal(t, "s", sc.GetFieldByName("f_string"))
	assert.Equal(t, int32(7), sc.GetFieldByName("f_int32"))
}

func TestDeterministicMarshalIsStable(t *testing.T) {
	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	counts := field(t, md, "counts")
	for _, k := range []string{"z", "a", "m", "b"} {
		m.PutMapField(counts, k, 1)
	}
	first, err := m.MarshalDeterministic()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := m.MarshalDeterministic()
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestBinaryInteropWithReferenceRuntime(t *testing.T) {
	files, err := protodesc.NewFiles(testprotos.FileSet())
	require.NoError(t, err)
	d, err := files.FindDescriptorByName("testdata.Widget")
	require.NoError(t, err)
	refMD := d.(protoreflect.MessageDescriptor)

	md := testprotos.Message("testdata.Widget")
	m := dynamic.NewMessage(md)
	m.SetFieldByName("name", "interop")
	m.SetFieldByName("choice_id", int64(88))
	m.PutMapField(field(t, md, "counts"), "k", 7)
	p := dynamic.NewMessage(testprotos.Message("testdata.Widget.Part"))
	p.SetFieldByName("sku", "sk")
	m.AddRepeatedField(field(t, md, "extras"), p)
	sc := dynamic.NewMessage(testprotos.Message("testdata.Scalars"))
	sc.SetFieldByName("r_color", []int32{0, 1, 1})
	m.SetFieldByName("scalars", sc)

	ours, err := m.Marshal()
	require.NoError(t, err)

	ref := dynamicpb.NewMessage(refMD)
	require.NoError(t, proto.Unmarshal(ours, ref))
	theirs, err := proto.MarshalOptions{Deterministic: true}.Marshal(ref)
	require.NoError(t, err)

	back := dynamic.NewMessage(md)
	require.NoError(t, back.Unmarshal(theirs))
	assert.True(t, m.Equal(back), "value survives a pass through the reference runtime")

	// and our re-encoding of it parses to the same reference value
	ours2, err := back.Marshal()
	require.NoError(t, err)
	ref2 := dynamicpb.NewMessage(refMD)
	require.NoError(t, proto.Unmarshal(ours2, ref2))
	assert.Empty(t, cmp.Diff(ref, ref2, protocmp.Transform()))
}
