package desc

import "iter"

// FileDescriptor is a shareable, immutable handle for one pooled file. The
// zero value is invalid; handles are obtained from a Pool.
type FileDescriptor struct {
	pool  *Pool
	index int
}

func (fd FileDescriptor) inner() *fileInner {
	return &fd.pool.files[fd.index]
}

// Pool returns the pool the file belongs to.
func (fd FileDescriptor) Pool() *Pool {
	return fd.pool
}

// Name returns the file's path, e.g. "my/pkg/file.proto".
func (fd FileDescriptor) Name() string {
	return fd.inner().name
}

// Package returns the file's package name, or "" when it declares none.
func (fd FileDescriptor) Package() string {
	return fd.inner().pkg
}

// IsProto3 reports whether the file uses proto3 syntax.
func (fd FileDescriptor) IsProto3() bool {
	return fd.inner().proto3
}

// Dependencies returns a sequence of the files this file imports.
func (fd FileDescriptor) Dependencies() iter.Seq[FileDescriptor] {
	return func(yield func(FileDescriptor) bool) {
		for _, di := range fd.inner().deps {
			if !yield(FileDescriptor{pool: fd.pool, index: di}) {
				return
			}
		}
	}
}

// Messages returns a sequence of the file's top-level messages.
func (fd FileDescriptor) Messages() iter.Seq[MessageDescriptor] {
	return func(yield func(MessageDescriptor) bool) {
		for i := range fd.inner().messages {
			if fd.inner().messages[i].parent != -1 {
				continue
			}
			if !yield(MessageDescriptor{file: fd, index: i}) {
				return
			}
		}
	}
}

// AllMessages returns a sequence of every message declared in the file,
// including nested ones, in declaration order with outer types first.
func (fd FileDescriptor) AllMessages() iter.Seq[MessageDescriptor] {
	return func(yield func(MessageDescriptor) bool) {
		for i := range fd.inner().messages {
			if !yield(MessageDescriptor{file: fd, index: i}) {
				return
			}
		}
	}
}

// Enums returns a sequence of the file's top-level enums.
func (fd FileDescriptor) Enums() iter.Seq[EnumDescriptor] {
	return func(yield func(EnumDescriptor) bool) {
		for i := range fd.inner().enums {
			if fd.inner().enums[i].parent != -1 {
				continue
			}
			if !yield(EnumDescriptor{file: fd, index: i}) {
				return
			}
		}
	}
}

// Services returns a sequence of the services declared in the file.
func (fd FileDescriptor) Services() iter.Seq[ServiceDescriptor] {
	return func(yield func(ServiceDescriptor) bool) {
		for i := range fd.inner().services {
			if !yield(ServiceDescriptor{file: fd, index: i}) {
				return
			}
		}
	}
}

// Extensions returns a sequence of the extensions declared in the file,
// both at file level and inside messages.
func (fd FileDescriptor) Extensions() iter.Seq[ExtensionDescriptor] {
	return func(yield func(ExtensionDescriptor) bool) {
		for i := range fd.inner().extensions {
			if !yield(ExtensionDescriptor{file: fd, index: i}) {
				return
			}
		}
	}
}

// MessageDescriptor describes the shape of one message type.
type MessageDescriptor struct {
	file  FileDescriptor
	index int
}

func (md MessageDescriptor) inner() *messageInner {
	return &md.file.inner().messages[md.index]
}

// ParentFile returns the file the message is declared in.
func (md MessageDescriptor) ParentFile() FileDescriptor {
	return md.file
}

// Parent returns the enclosing message for nested declarations.
func (md MessageDescriptor) Parent() (MessageDescriptor, bool) {
	p := md.inner().parent
	if p == -1 {
		return MessageDescriptor{}, false
	}
	return MessageDescriptor{file: md.file, index: p}, true
}

// Name returns the short name, e.g. "MyMessage".
func (md MessageDescriptor) Name() string {
	return ParseName(md.inner().fullName)
}

// FullName returns the dotted full name, e.g. "my.pkg.Outer.MyMessage".
func (md MessageDescriptor) FullName() string {
	return md.inner().fullName
}

// Package returns the package the message is declared in.
func (md MessageDescriptor) Package() string {
	return md.file.Package()
}

// IsMapEntry reports whether this message is the synthetic entry type of a
// map field. Map entry messages are an encoding detail; they are never
// presented as the value of an ordinary message field.
func (md MessageDescriptor) IsMapEntry() bool {
	return md.inner().mapEntry
}

// FieldCount returns the number of fields declared in the message.
func (md MessageDescriptor) FieldCount() int {
	return len(md.inner().fields)
}

// Field returns the i-th field in declaration order. It panics if i is out
// of range.
func (md MessageDescriptor) Field(i int) FieldDescriptor {
	if i < 0 || i >= len(md.inner().fields) {
		panic("desc: field index out of range")
	}
	return FieldDescriptor{parent: md, index: i}
}

// Fields returns a sequence of the message's fields in declaration order.
func (md MessageDescriptor) Fields() iter.Seq[FieldDescriptor] {
	return func(yield func(FieldDescriptor) bool) {
		for i := range md.inner().fields {
			if !yield(FieldDescriptor{parent: md, index: i}) {
				return
			}
		}
	}
}

// FindFieldByNumber returns the field with the given number.
func (md MessageDescriptor) FindFieldByNumber(number int32) (FieldDescriptor, bool) {
	i, ok := md.inner().fieldsByNumber[number]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{parent: md, index: i}, true
}

// FindFieldByName returns the field with the given declared name.
func (md MessageDescriptor) FindFieldByName(name string) (FieldDescriptor, bool) {
	i, ok := md.inner().fieldsByName[name]
	if !ok {
		return FieldDescriptor{}, false
	}
	return FieldDescriptor{parent: md, index: i}, true
}

// FindFieldByJSONName returns the field with the given JSON name, falling
// back to the declared name.
func (md MessageDescriptor) FindFieldByJSONName(name string) (FieldDescriptor, bool) {
	if i, ok := md.inner().fieldsByJSON[name]; ok {
		return FieldDescriptor{parent: md, index: i}, true
	}
	return md.FindFieldByName(name)
}

// OneofCount returns the number of oneofs declared in the message,
// including synthetic ones backing proto3 optional fields.
func (md MessageDescriptor) OneofCount() int {
	return len(md.inner().oneofs)
}

// Oneof returns the i-th oneof. It panics if i is out of range.
func (md MessageDescriptor) Oneof(i int) OneofDescriptor {
	if i < 0 || i >= len(md.inner().oneofs) {
		panic("desc: oneof index out of range")
	}
	return OneofDescriptor{parent: md, index: i}
}

// Oneofs returns a sequence of the message's oneofs.
func (md MessageDescriptor) Oneofs() iter.Seq[OneofDescriptor] {
	return func(yield func(OneofDescriptor) bool) {
		for i := range md.inner().oneofs {
			if !yield(OneofDescriptor{parent: md, index: i}) {
				return
			}
		}
	}
}

// Messages returns a sequence of the message's directly nested messages.
func (md MessageDescriptor) Messages() iter.Seq[MessageDescriptor] {
	return func(yield func(MessageDescriptor) bool) {
		for _, ni := range md.inner().nestedMessages {
			if !yield(MessageDescriptor{file: md.file, index: ni}) {
				return
			}
		}
	}
}

// Enums returns a sequence of the message's directly nested enums.
func (md MessageDescriptor) Enums() iter.Seq[EnumDescriptor] {
	return func(yield func(EnumDescriptor) bool) {
		for _, ni := range md.inner().nestedEnums {
			if !yield(EnumDescriptor{file: md.file, index: ni}) {
				return
			}
		}
	}
}

// ReservedRanges returns the reserved field number ranges as [start, end)
// pairs.
func (md MessageDescriptor) ReservedRanges() [][2]int32 {
	return append([][2]int32(nil), md.inner().reservedRanges...)
}

// ReservedNames returns the reserved field names.
func (md MessageDescriptor) ReservedNames() []string {
	return append([]string(nil), md.inner().reservedNames...)
}

// ExtensionRanges returns the extendable field number ranges as
// [start, end) pairs. A message with no ranges cannot be extended.
func (md MessageDescriptor) ExtensionRanges() [][2]int32 {
	return append([][2]int32(nil), md.inner().extensionRanges...)
}

// IsExtensionNumber reports whether the given field number falls in one of
// the message's extension ranges.
func (md MessageDescriptor) IsExtensionNumber(number int32) bool {
	for _, er := range md.inner().extensionRanges {
		if number >= er[0] && number < er[1] {
			return true
		}
	}
	return false
}

// FieldDescriptor describes one field of a message.
type FieldDescriptor struct {
	parent MessageDescriptor
	index  int
}

func (fd FieldDescriptor) inner() *fieldInner {
	return &fd.parent.inner().fields[fd.index]
}

// ContainingMessage returns the message the field is declared in.
func (fd FieldDescriptor) ContainingMessage() MessageDescriptor {
	return fd.parent
}

// Name returns the declared field name.
func (fd FieldDescriptor) Name() string {
	return fd.inner().name
}

// FullName returns the dotted full name, e.g. "my.pkg.MyMessage.my_field".
func (fd FieldDescriptor) FullName() string {
	return fd.inner().fullName
}

// JSONName returns the name used for the field in the JSON mapping: the
// explicitly declared JSON name if present, otherwise the camelCased
// declared name.
func (fd FieldDescriptor) JSONName() string {
	return fd.inner().jsonName
}

// Number returns the field number.
func (fd FieldDescriptor) Number() int32 {
	return fd.inner().number
}

// Kind returns the declared kind of the field.
func (fd FieldDescriptor) Kind() Kind {
	return fd.inner().kind
}

// Cardinality returns the cardinality of the field.
func (fd FieldDescriptor) Cardinality() Cardinality {
	return fd.inner().cardinality
}

// IsMap reports whether the field is a map field.
func (fd FieldDescriptor) IsMap() bool {
	return fd.inner().isMap
}

// IsList reports whether the field is repeated and not a map.
func (fd FieldDescriptor) IsList() bool {
	return fd.inner().cardinality == CardinalityRepeated && !fd.inner().isMap
}

// IsPacked reports whether a repeated scalar field uses the packed wire
// encoding.
func (fd FieldDescriptor) IsPacked() bool {
	return fd.inner().packed
}

// HasPresence reports whether the field tracks explicit presence: such a
// field set to its default value is distinguishable from an absent one.
func (fd FieldDescriptor) HasPresence() bool {
	return fd.inner().hasPresence
}

// DefaultValue returns the value reported for an absent field: the
// explicit proto2 default when declared, otherwise the zero value for the
// field's kind. It returns nil for message, group, repeated, and map
// fields. Callers must not modify a returned []byte.
func (fd FieldDescriptor) DefaultValue() interface{} {
	return fd.inner().defaultValue
}

// ContainingOneof returns the oneof the field is a member of, if any.
func (fd FieldDescriptor) ContainingOneof() (OneofDescriptor, bool) {
	oi := fd.inner().oneof
	if oi == -1 {
		return OneofDescriptor{}, false
	}
	return OneofDescriptor{parent: fd.parent, index: oi}, true
}

// MessageType returns the referenced message type for message and group
// kind fields (for map fields, the synthetic entry type).
func (fd FieldDescriptor) MessageType() (MessageDescriptor, bool) {
	in := fd.inner()
	if in.kind != MessageKind && in.kind != GroupKind {
		return MessageDescriptor{}, false
	}
	return fd.parent.file.pool.messageByID(in.typeID), true
}

// EnumType returns the referenced enum type for enum kind fields.
func (fd FieldDescriptor) EnumType() (EnumDescriptor, bool) {
	in := fd.inner()
	if in.kind != EnumKind {
		return EnumDescriptor{}, false
	}
	return fd.parent.file.pool.enumByID(in.typeID), true
}

// MapKeyField returns the key field of a map field's entry type. It panics
// if the field is not a map.
func (fd FieldDescriptor) MapKeyField() FieldDescriptor {
	return fd.mapEntryField(0)
}

// MapValueField returns the value field of a map field's entry type. It
// panics if the field is not a map.
func (fd FieldDescriptor) MapValueField() FieldDescriptor {
	return fd.mapEntryField(1)
}

func (fd FieldDescriptor) mapEntryField(i int) FieldDescriptor {
	if !fd.IsMap() {
		panic("desc: " + fd.FullName() + " is not a map field")
	}
	entry, _ := fd.MessageType()
	return entry.Field(i)
}

// IsExtension reports whether the descriptor is an extension declaration.
// It always returns false for a FieldDescriptor; the method exists so that
// FieldDescriptor and ExtensionDescriptor are interchangeable to generic
// field-driven code.
func (fd FieldDescriptor) IsExtension() bool {
	return false
}

// OneofDescriptor describes a set of fields of which at most one may be
// set on a message instance.
type OneofDescriptor struct {
	parent MessageDescriptor
	index  int
}

func (od OneofDescriptor) inner() *oneofInner {
	return &od.parent.inner().oneofs[od.index]
}

// ContainingMessage returns the message the oneof is declared in.
func (od OneofDescriptor) ContainingMessage() MessageDescriptor {
	return od.parent
}

// Name returns the declared oneof name.
func (od OneofDescriptor) Name() string {
	return od.inner().name
}

// FullName returns the dotted full name of the oneof.
func (od OneofDescriptor) FullName() string {
	return od.inner().fullName
}

// IsSynthetic reports whether the oneof exists only to give a proto3
// optional field explicit presence.
func (od OneofDescriptor) IsSynthetic() bool {
	return od.inner().synthetic
}

// FieldCount returns the number of member fields.
func (od OneofDescriptor) FieldCount() int {
	return len(od.inner().fields)
}

// Field returns the i-th member field. It panics if i is out of range.
func (od OneofDescriptor) Field(i int) FieldDescriptor {
	if i < 0 || i >= len(od.inner().fields) {
		panic("desc: oneof field index out of range")
	}
	return FieldDescriptor{parent: od.parent, index: od.inner().fields[i]}
}

// Fields returns a sequence of the oneof's member fields.
func (od OneofDescriptor) Fields() iter.Seq[FieldDescriptor] {
	return func(yield func(FieldDescriptor) bool) {
		for _, fi := range od.inner().fields {
			if !yield(FieldDescriptor{parent: od.parent, index: fi}) {
				return
			}
		}
	}
}

// EnumDescriptor describes one enum type.
type EnumDescriptor struct {
	file  FileDescriptor
	index int
}

func (ed EnumDescriptor) inner() *enumInner {
	return &ed.file.inner().enums[ed.index]
}

// ParentFile returns the file the enum is declared in.
func (ed EnumDescriptor) ParentFile() FileDescriptor {
	return ed.file
}

// Parent returns the enclosing message for nested declarations.
func (ed EnumDescriptor) Parent() (MessageDescriptor, bool) {
	p := ed.inner().parent
	if p == -1 {
		return MessageDescriptor{}, false
	}
	return MessageDescriptor{file: ed.file, index: p}, true
}

// Name returns the short name, e.g. "MyEnum".
func (ed EnumDescriptor) Name() string {
	return ParseName(ed.inner().fullName)
}

// FullName returns the dotted full name, e.g. "my.pkg.MyEnum".
func (ed EnumDescriptor) FullName() string {
	return ed.inner().fullName
}

// ValueCount returns the number of declared values.
func (ed EnumDescriptor) ValueCount() int {
	return len(ed.inner().values)
}

// Value returns the i-th declared value. It panics if i is out of range.
func (ed EnumDescriptor) Value(i int) EnumValueDescriptor {
	if i < 0 || i >= len(ed.inner().values) {
		panic("desc: enum value index out of range")
	}
	return EnumValueDescriptor{parent: ed, index: i}
}

// Values returns a sequence of the enum's values in declaration order.
// Value numbers need not be unique or contiguous.
func (ed EnumDescriptor) Values() iter.Seq[EnumValueDescriptor] {
	return func(yield func(EnumValueDescriptor) bool) {
		for i := range ed.inner().values {
			if !yield(EnumValueDescriptor{parent: ed, index: i}) {
				return
			}
		}
	}
}

// DefaultValue returns the first declared value, which is the default for
// fields of this enum type without an explicit default.
func (ed EnumDescriptor) DefaultValue() EnumValueDescriptor {
	return EnumValueDescriptor{parent: ed, index: 0}
}

// FindValueByName returns the value with the given declared name.
func (ed EnumDescriptor) FindValueByName(name string) (EnumValueDescriptor, bool) {
	i, ok := ed.inner().valuesByName[name]
	if !ok {
		return EnumValueDescriptor{}, false
	}
	return EnumValueDescriptor{parent: ed, index: i}, true
}

// FindValueByNumber returns the first declared value with the given
// number.
func (ed EnumDescriptor) FindValueByNumber(number int32) (EnumValueDescriptor, bool) {
	i, ok := ed.inner().valuesByNumber[number]
	if !ok {
		return EnumValueDescriptor{}, false
	}
	return EnumValueDescriptor{parent: ed, index: i}, true
}

// EnumValueDescriptor describes one (name, number) pair of an enum.
type EnumValueDescriptor struct {
	parent EnumDescriptor
	index  int
}

func (vd EnumValueDescriptor) inner() *enumValueInner {
	return &vd.parent.inner().values[vd.index]
}

// Enum returns the enum the value is declared in.
func (vd EnumValueDescriptor) Enum() EnumDescriptor {
	return vd.parent
}

// Name returns the declared value name.
func (vd EnumValueDescriptor) Name() string {
	return vd.inner().name
}

// FullName returns the dotted full name. Enum values are scoped to the
// enum's enclosing scope, so the name does not include the enum itself.
func (vd EnumValueDescriptor) FullName() string {
	return vd.inner().fullName
}

// Number returns the numeric value.
func (vd EnumValueDescriptor) Number() int32 {
	return vd.inner().number
}

// ServiceDescriptor describes one service declaration.
type ServiceDescriptor struct {
	file  FileDescriptor
	index int
}

func (sd ServiceDescriptor) inner() *serviceInner {
	return &sd.file.inner().services[sd.index]
}

// ParentFile returns the file the service is declared in.
func (sd ServiceDescriptor) ParentFile() FileDescriptor {
	return sd.file
}

// Name returns the short name, e.g. "MyService".
func (sd ServiceDescriptor) Name() string {
	return ParseName(sd.inner().fullName)
}

// FullName returns the dotted full name, e.g. "my.pkg.MyService".
func (sd ServiceDescriptor) FullName() string {
	return sd.inner().fullName
}

// Package returns the package the service is declared in.
func (sd ServiceDescriptor) Package() string {
	return sd.file.Package()
}

// MethodCount returns the number of methods declared by the service.
func (sd ServiceDescriptor) MethodCount() int {
	return len(sd.inner().methods)
}

// Method returns the i-th declared method. It panics if i is out of range.
func (sd ServiceDescriptor) Method(i int) MethodDescriptor {
	if i < 0 || i >= len(sd.inner().methods) {
		panic("desc: method index out of range")
	}
	return MethodDescriptor{service: sd, index: i}
}

// Methods returns a sequence of the service's methods.
func (sd ServiceDescriptor) Methods() iter.Seq[MethodDescriptor] {
	return func(yield func(MethodDescriptor) bool) {
		for i := range sd.inner().methods {
			if !yield(MethodDescriptor{service: sd, index: i}) {
				return
			}
		}
	}
}

// MethodDescriptor describes one method of a service.
type MethodDescriptor struct {
	service ServiceDescriptor
	index   int
}

func (md MethodDescriptor) inner() *methodInner {
	return &md.service.inner().methods[md.index]
}

// Service returns the service the method is declared in.
func (md MethodDescriptor) Service() ServiceDescriptor {
	return md.service
}

// Name returns the short method name.
func (md MethodDescriptor) Name() string {
	return md.inner().name
}

// FullName returns the dotted full name, e.g. "my.pkg.MyService.MyMethod".
func (md MethodDescriptor) FullName() string {
	return md.inner().fullName
}

// Input returns the method's request message type.
func (md MethodDescriptor) Input() MessageDescriptor {
	return md.service.file.pool.messageByID(md.inner().input)
}

// Output returns the method's response message type.
func (md MethodDescriptor) Output() MessageDescriptor {
	return md.service.file.pool.messageByID(md.inner().output)
}

// IsClientStreaming reports whether the client streams multiple messages.
func (md MethodDescriptor) IsClientStreaming() bool {
	return md.inner().clientStreaming
}

// IsServerStreaming reports whether the server streams multiple messages.
func (md MethodDescriptor) IsServerStreaming() bool {
	return md.inner().serverStreaming
}

// ExtensionDescriptor describes an extension declaration: a field declared
// outside the message it belongs to. It is addressed by the extended
// message's type and the field number rather than appearing in the
// message's own field list.
type ExtensionDescriptor struct {
	file  FileDescriptor
	index int
}

func (xd ExtensionDescriptor) inner() *fieldInner {
	return &xd.file.inner().extensions[xd.index].fieldInner
}

// ParentFile returns the file the extension is declared in.
func (xd ExtensionDescriptor) ParentFile() FileDescriptor {
	return xd.file
}

// Extendee returns the message the extension extends.
func (xd ExtensionDescriptor) Extendee() MessageDescriptor {
	return xd.file.pool.messageByID(xd.file.inner().extensions[xd.index].extendee)
}

// Name returns the declared extension name.
func (xd ExtensionDescriptor) Name() string {
	return xd.inner().name
}

// FullName returns the dotted full name of the declaration site, e.g.
// "my.pkg.my_extension".
func (xd ExtensionDescriptor) FullName() string {
	return xd.inner().fullName
}

// JSONName returns the name used in the JSON mapping. Extensions appear in
// JSON text under their bracketed full name.
func (xd ExtensionDescriptor) JSONName() string {
	return "[" + xd.inner().fullName + "]"
}

// Number returns the extension's field number.
func (xd ExtensionDescriptor) Number() int32 {
	return xd.inner().number
}

// Kind returns the declared kind of the extension field.
func (xd ExtensionDescriptor) Kind() Kind {
	return xd.inner().kind
}

// Cardinality returns the cardinality of the extension field.
func (xd ExtensionDescriptor) Cardinality() Cardinality {
	return xd.inner().cardinality
}

// IsMap reports whether the extension is a map field. Extensions cannot be
// maps, so this always returns false; the method mirrors FieldDescriptor.
func (xd ExtensionDescriptor) IsMap() bool {
	return false
}

// IsList reports whether the extension field is repeated.
func (xd ExtensionDescriptor) IsList() bool {
	return xd.inner().cardinality == CardinalityRepeated
}

// IsPacked reports whether a repeated scalar extension uses the packed
// wire encoding.
func (xd ExtensionDescriptor) IsPacked() bool {
	return xd.inner().packed
}

// HasPresence reports whether the extension field tracks explicit
// presence.
func (xd ExtensionDescriptor) HasPresence() bool {
	return xd.inner().hasPresence
}

// DefaultValue returns the value reported for an absent extension field.
func (xd ExtensionDescriptor) DefaultValue() interface{} {
	return xd.inner().defaultValue
}

// ContainingOneof mirrors FieldDescriptor; extensions are never oneof
// members.
func (xd ExtensionDescriptor) ContainingOneof() (OneofDescriptor, bool) {
	return OneofDescriptor{}, false
}

// MessageType returns the referenced message type for message and group
// kind extensions.
func (xd ExtensionDescriptor) MessageType() (MessageDescriptor, bool) {
	in := xd.inner()
	if in.kind != MessageKind && in.kind != GroupKind {
		return MessageDescriptor{}, false
	}
	return xd.file.pool.messageByID(in.typeID), true
}

// EnumType returns the referenced enum type for enum kind extensions.
func (xd ExtensionDescriptor) EnumType() (EnumDescriptor, bool) {
	in := xd.inner()
	if in.kind != EnumKind {
		return EnumDescriptor{}, false
	}
	return xd.file.pool.enumByID(in.typeID), true
}

// MapKeyField mirrors FieldDescriptor and always panics: extensions cannot
// be map fields.
func (xd ExtensionDescriptor) MapKeyField() FieldDescriptor {
	panic("desc: " + xd.FullName() + " is not a map field")
}

// MapValueField mirrors FieldDescriptor and always panics: extensions
// cannot be map fields.
func (xd ExtensionDescriptor) MapValueField() FieldDescriptor {
	panic("desc: " + xd.FullName() + " is not a map field")
}

// IsExtension reports whether the descriptor is an extension declaration.
// It always returns true for an ExtensionDescriptor.
func (xd ExtensionDescriptor) IsExtension() bool {
	return true
}
