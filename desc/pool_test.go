package desc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/protodyn/protodyn/desc"
	"github.com/protodyn/protodyn/internal/testprotos"
)

func TestNewPoolFromSetBytes(t *testing.T) {
	p, err := desc.NewPool(testprotos.DescriptorSetBytes())
	require.NoError(t, err)

	fd, ok := p.FileByName("test/scalars.proto")
	require.True(t, ok)
	assert.Equal(t, "testdata", fd.Package())
	assert.True(t, fd.IsProto3())

	_, ok = p.FileByName("no/such.proto")
	assert.False(t, ok)

	md, ok := p.FindMessageByName("testdata.Scalars")
	require.True(t, ok)
	assert.Equal(t, "Scalars", md.Name())
	assert.Equal(t, "testdata.Scalars", md.FullName())

	// nested full names use the enclosing message as scope
	part, ok := p.FindMessageByName("testdata.Widget.Part")
	require.True(t, ok)
	parent, ok := part.Parent()
	require.True(t, ok)
	assert.Equal(t, "testdata.Widget", parent.FullName())

	ed, ok := p.FindEnumByName("testdata.Color")
	require.True(t, ok)
	assert.Equal(t, 4, ed.ValueCount())

	_, ok = p.FindMessageByName("testdata.Color")
	assert.False(t, ok, "enum name must not resolve as a message")
}

func TestNewPoolMalformedBytes(t *testing.T) {
	_, err := desc.NewPool([]byte{0xff, 0x01, 0x02})
	require.Error(t, err)
	var de *desc.DescriptorError
	assert.ErrorAs(t, err, &de)
}

func TestHandleEquality(t *testing.T) {
	p := testprotos.Pool()
	a, ok := p.FindMessageByName("testdata.Widget")
	require.True(t, ok)
	b, ok := p.FindMessageByName("testdata.Widget")
	require.True(t, ok)
	assert.True(t, a == b)
	assert.True(t, a.Field(0) == b.Field(0))
	assert.False(t, a.Field(0) == a.Field(1))

	// same schema in a different pool is a different identity
	p2, err := desc.NewPool(testprotos.DescriptorSetBytes())
	require.NoError(t, err)
	c, ok := p2.FindMessageByName("testdata.Widget")
	require.True(t, ok)
	assert.False(t, a == c)
}

func TestIndexedAccessPanicsOutOfRange(t *testing.T) {
	p := testprotos.Pool()
	assert.Panics(t, func() { p.File(p.FileCount()) })
	md, _ := p.FindMessageByName("testdata.Widget")
	assert.Panics(t, func() { md.Field(md.FieldCount()) })
	assert.Panics(t, func() { md.Oneof(-1) })
}

func TestIteratorsAreRestartable(t *testing.T) {
	md, _ := testprotos.Pool().FindMessageByName("testdata.Scalars")
	seq := md.Fields()
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	assert.Equal(t, md.FieldCount(), count())
	assert.Equal(t, md.FieldCount(), count(), "second pass over the same sequence")
}

func TestFieldMetadata(t *testing.T) {
	p := testprotos.Pool()
	md, _ := p.FindMessageByName("testdata.Scalars")

	fd, ok := md.FindFieldByName("f_sint64")
	require.True(t, ok)
	assert.Equal(t, desc.Sint64Kind, fd.Kind())
	assert.Equal(t, int32(8), fd.Number())
	assert.Equal(t, "fSint64", fd.JSONName())
	assert.False(t, fd.HasPresence())
	assert.Equal(t, desc.CardinalitySingular, fd.Cardinality())
	assert.Equal(t, int64(0), fd.DefaultValue())

	byJSON, ok := md.FindFieldByJSONName("fSint64")
	require.True(t, ok)
	assert.True(t, byJSON == fd)
	byDeclared, ok := md.FindFieldByJSONName("f_sint64")
	require.True(t, ok, "declared name works as a JSON name fallback")
	assert.True(t, byDeclared == fd)

	opt, ok := md.FindFieldByName("opt_string")
	require.True(t, ok)
	assert.True(t, opt.HasPresence())
	oo, isMember := opt.ContainingOneof()
	require.True(t, isMember)
	assert.True(t, oo.IsSynthetic())

	packed, _ := md.FindFieldByName("r_int32")
	assert.True(t, packed.IsPacked())
	assert.True(t, packed.IsList())
	unpacked, _ := md.FindFieldByName("unpacked_int32")
	assert.False(t, unpacked.IsPacked())

	strs, _ := md.FindFieldByName("r_string")
	assert.False(t, strs.IsPacked(), "strings cannot be packed")

	enums, _ := md.FindFieldByName("r_color")
	assert.True(t, enums.IsPacked(), "repeated enums pack in proto3")

	enumFld, _ := md.FindFieldByName("f_color")
	et, ok := enumFld.EnumType()
	require.True(t, ok)
	assert.Equal(t, "testdata.Color", et.FullName())
	assert.Equal(t, int32(0), enumFld.DefaultValue())
}

func TestOneofMetadata(t *testing.T) {
	md, _ := testprotos.Pool().FindMessageByName("testdata.Widget")
	choiceName, _ := md.FindFieldByName("choice_name")
	oo, ok := choiceName.ContainingOneof()
	require.True(t, ok)
	assert.Equal(t, "choice", oo.Name())
	assert.False(t, oo.IsSynthetic())
	assert.Equal(t, 2, oo.FieldCount())
	assert.Equal(t, int32(3), oo.Field(0).Number())
	assert.Equal(t, int32(5), oo.Field(1).Number())
}

func TestMapFieldMetadata(t *testing.T) {
	md, _ := testprotos.Pool().FindMessageByName("testdata.Widget")

	counts, _ := md.FindFieldByName("counts")
	require.True(t, counts.IsMap())
	assert.False(t, counts.IsList())
	assert.Equal(t, desc.StringKind, counts.MapKeyField().Kind())
	assert.Equal(t, desc.Int32Kind, counts.MapValueField().Kind())

	entry, ok := counts.MessageType()
	require.True(t, ok)
	assert.True(t, entry.IsMapEntry())

	labels, _ := md.FindFieldByName("labels")
	assert.Equal(t, desc.Int32Kind, labels.MapKeyField().Kind())

	parts, _ := md.FindFieldByName("parts")
	vt, ok := parts.MapValueField().MessageType()
	require.True(t, ok)
	assert.Equal(t, "testdata.Widget.Part", vt.FullName())

	name, _ := md.FindFieldByName("name")
	assert.Panics(t, func() { name.MapKeyField() })
}

func TestProto2Metadata(t *testing.T) {
	p := testprotos.Pool()
	md, ok := p.FindMessageByName("testdata2.Legacy")
	require.True(t, ok)
	assert.False(t, md.ParentFile().IsProto3())

	id, _ := md.FindFieldByName("id")
	assert.Equal(t, desc.CardinalityRequired, id.Cardinality())
	assert.True(t, id.HasPresence())

	num, _ := md.FindFieldByName("num")
	assert.Equal(t, int32(42), num.DefaultValue())
	label, _ := md.FindFieldByName("label")
	assert.Equal(t, "unnamed", label.DefaultValue())
	blob, _ := md.FindFieldByName("blob")
	assert.Equal(t, []byte{1, 2, 3}, blob.DefaultValue())
	mood, _ := md.FindFieldByName("mood")
	assert.Equal(t, int32(2), mood.DefaultValue(), "explicit enum default by name")

	grp, _ := md.FindFieldByName("extras")
	assert.Equal(t, desc.GroupKind, grp.Kind())
	gt, ok := grp.MessageType()
	require.True(t, ok)
	assert.Equal(t, "testdata2.Legacy.Extras", gt.FullName())

	imported, _ := md.FindFieldByName("imported")
	it, ok := imported.MessageType()
	require.True(t, ok)
	assert.Equal(t, "testdata.Scalars", it.FullName(), "cross-file reference")

	assert.True(t, md.IsExtensionNumber(100))
	assert.True(t, md.IsExtensionNumber(200))
	assert.False(t, md.IsExtensionNumber(99))
}

func TestEnumMetadata(t *testing.T) {
	ed, ok := testprotos.Pool().FindEnumByName("testdata2.Mood")
	require.True(t, ok)
	assert.Equal(t, int32(1), ed.DefaultValue().Number(), "proto2 enums default to the first declared value")

	vd, ok := ed.FindValueByName("MOOD_HAPPY")
	require.True(t, ok)
	assert.Equal(t, int32(2), vd.Number())
	assert.Equal(t, "testdata2.MOOD_HAPPY", vd.FullName(), "enum values scope to the enum's parent")

	byNum, ok := ed.FindValueByNumber(2)
	require.True(t, ok)
	assert.True(t, byNum == vd)

	_, ok = ed.FindValueByName("MOOD_BORED")
	assert.False(t, ok)
}

func TestExtensions(t *testing.T) {
	p := testprotos.Pool()
	legacy, _ := p.FindMessageByName("testdata2.Legacy")

	xd, ok := p.FindExtensionByName("testdata2.ext_str")
	require.True(t, ok)
	assert.Equal(t, desc.StringKind, xd.Kind())
	assert.Equal(t, int32(100), xd.Number())
	assert.True(t, xd.Extendee() == legacy)
	assert.True(t, xd.IsExtension())
	assert.Equal(t, "[testdata2.ext_str]", xd.JSONName())

	nested, ok := p.FindExtensionByName("testdata2.Holder.ext_id")
	require.True(t, ok)
	assert.Equal(t, int32(102), nested.Number())

	byNum, ok := p.FindExtensionByNumber(legacy, 101)
	require.True(t, ok)
	assert.Equal(t, "testdata2.ext_nums", byNum.FullName())
	assert.True(t, byNum.IsList())

	_, ok = p.FindExtensionByNumber(legacy, 150)
	assert.False(t, ok)
}

func TestServices(t *testing.T) {
	p := testprotos.Pool()
	fd, _ := p.FileByName("test/complex.proto")
	var svc desc.ServiceDescriptor
	found := false
	for s := range fd.Services() {
		svc = s
		found = true
	}
	require.True(t, found)
	assert.Equal(t, "testdata.WidgetService", svc.FullName())
	require.Equal(t, 2, svc.MethodCount())

	get := svc.Method(0)
	assert.Equal(t, "GetWidget", get.Name())
	assert.Equal(t, "testdata.Widget", get.Input().FullName())
	assert.False(t, get.IsServerStreaming())

	watch := svc.Method(1)
	assert.True(t, watch.IsServerStreaming())
	assert.False(t, watch.IsClientStreaming())
}

func TestGlobalPool(t *testing.T) {
	defer desc.SetGlobal(nil)
	_, ok := desc.GlobalMessage("testdata.Widget")
	assert.False(t, ok)

	desc.SetGlobal(testprotos.Pool())
	md, ok := desc.GlobalMessage("testdata.Widget")
	require.True(t, ok)
	assert.Equal(t, "testdata.Widget", md.FullName())
	assert.NotNil(t, desc.Global())
}

// helpers for hand-built descriptor protos exercising build failures

func strPtr(s string) *string { return proto.String(s) }

func simpleFile(name, pkg string, msgs ...*descriptorpb.DescriptorProto) *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:        strPtr(name),
		Package:     strPtr(pkg),
		Syntax:      strPtr("proto3"),
		MessageType: msgs,
	}
}

func simpleMessage(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: strPtr(name), Field: fields}
}

func scalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   strPtr(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func requireDescErr(t *testing.T, err error, entity string) {
	t.Helper()
	require.Error(t, err)
	var de *desc.DescriptorError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, entity, de.Name())
}

func TestBuildRejectsDuplicateFullName(t *testing.T) {
	f1 := simpleFile("one.proto", "dup", simpleMessage("M"))
	f2 := simpleFile("two.proto", "dup", simpleMessage("M"))
	_, err := desc.NewPoolFromFiles(f1, f2)
	requireDescErr(t, err, "dup.M")
}

func TestBuildRejectsDuplicateFileName(t *testing.T) {
	_, err := desc.NewPoolFromFiles(
		simpleFile("same.proto", "a"),
		simpleFile("same.proto", "b"),
	)
	requireDescErr(t, err, "same.proto")
}

func TestBuildRejectsUnresolvedReference(t *testing.T) {
	fld := &descriptorpb.FieldDescriptorProto{
		Name:     strPtr("ref"),
		Number:   proto.Int32(1),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: strPtr(".no.Such"),
	}
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", simpleMessage("M", fld)))
	requireDescErr(t, err, "t.M.ref")
}

func TestBuildRejectsMissingDependency(t *testing.T) {
	f := simpleFile("f.proto", "t")
	f.Dependency = []string{"missing.proto"}
	_, err := desc.NewPoolFromFiles(f)
	requireDescErr(t, err, "f.proto")
}

func TestBuildRejectsDuplicateFieldNumber(t *testing.T) {
	m := simpleMessage("M",
		scalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalarField("b", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", m))
	requireDescErr(t, err, "t.M.b")
}

func TestBuildRejectsOneofIndexOutOfRange(t *testing.T) {
	fld := scalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	fld.OneofIndex = proto.Int32(3)
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", simpleMessage("M", fld)))
	requireDescErr(t, err, "t.M.a")
}

func TestBuildRejectsBadMapEntryShape(t *testing.T) {
	entry := simpleMessage("CountsEntry",
		scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalarField("value", 3, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	entry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	m := simpleMessage("M", &descriptorpb.FieldDescriptorProto{
		Name:     strPtr("counts"),
		Number:   proto.Int32(1),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: strPtr(".t.M.CountsEntry"),
	})
	m.NestedType = []*descriptorpb.DescriptorProto{entry}
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", m))
	requireDescErr(t, err, "t.M.CountsEntry")
}

func TestBuildRejectsMapEntryOnSingularField(t *testing.T) {
	entry := simpleMessage("CountsEntry",
		scalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	entry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	m := simpleMessage("M", &descriptorpb.FieldDescriptorProto{
		Name:     strPtr("counts"),
		Number:   proto.Int32(1),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: strPtr(".t.M.CountsEntry"),
	})
	m.NestedType = []*descriptorpb.DescriptorProto{entry}
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", m))
	requireDescErr(t, err, "t.M.counts")
}

func TestBuildRejectsRequiredInProto3(t *testing.T) {
	fld := scalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING)
	fld.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	_, err := desc.NewPoolFromFiles(simpleFile("f.proto", "t", simpleMessage("M", fld)))
	requireDescErr(t, err, "t.M.a")
}

func TestBuildRejectsEmptyEnum(t *testing.T) {
	f := simpleFile("f.proto", "t")
	f.EnumType = []*descriptorpb.EnumDescriptorProto{{Name: strPtr("E")}}
	_, err := desc.NewPoolFromFiles(f)
	requireDescErr(t, err, "t.E")
}

func TestBuildRejectsUnknownSyntax(t *testing.T) {
	f := simpleFile("f.proto", "t")
	f.Syntax = strPtr("editions")
	_, err := desc.NewPoolFromFiles(f)
	requireDescErr(t, err, "f.proto")
}

func TestRelativeNameResolution(t *testing.T) {
	// package a, message M{ message T{} ref } plus a top-level T: a
	// relative reference "T" from inside M must pick the innermost scope.
	inner := simpleMessage("T")
	outerT := simpleMessage("T", scalarField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	m := simpleMessage("M", &descriptorpb.FieldDescriptorProto{
		Name:     strPtr("ref"),
		Number:   proto.Int32(1),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		TypeName: strPtr("T"),
	})
	m.NestedType = []*descriptorpb.DescriptorProto{inner}
	p, err := desc.NewPoolFromFiles(simpleFile("f.proto", "a", m, outerT))
	require.NoError(t, err)

	md, _ := p.FindMessageByName("a.M")
	ref, _ := md.FindFieldByName("ref")
	mt, ok := ref.MessageType()
	require.True(t, ok)
	assert.Equal(t, "a.M.T", mt.FullName())
}

func TestAbsoluteNameResolution(t *testing.T) {
	// compiled descriptors carry absolute references; a.b.Outer.Inner
	// resolves identically through the field and through direct lookup
	p := testprotos.Pool()
	outer, ok := p.FindMessageByName("a.b.Outer")
	require.True(t, ok)
	inner, ok := p.FindMessageByName("a.b.Outer.Inner")
	require.True(t, ok)

	rel, _ := outer.FindFieldByName("inner")
	relType, _ := rel.MessageType()
	abs, _ := outer.FindFieldByName("abs_inner")
	absType, _ := abs.MessageType()
	assert.True(t, relType == inner)
	assert.True(t, absType == inner)
	assert.True(t, relType == absType)
}
