package desc

import (
	"iter"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
)

// TypeID is a pool-internal identifier for a message or enum type. IDs are
// minted during pool construction and are stable for the lifetime of the
// pool. Derived metadata stores TypeIDs instead of name strings so that
// cross references never require repeated name lookups.
type TypeID int32

type typeKind int8

const (
	typeKindMessage typeKind = iota + 1
	typeKindEnum
)

// typeEntry locates the metadata for a minted TypeID.
type typeEntry struct {
	kind  typeKind
	file  int // index into Pool.files
	index int // flattened index into fileInner.messages or fileInner.enums
}

// Pool is an immutable collection of file schemas with every cross-file and
// cross-message type reference resolved. Pools are safe for concurrent use.
type Pool struct {
	files       []fileInner
	filesByName map[string]int
	types       []typeEntry
	typesByName map[string]TypeID
	extsByName  map[string]extensionRef
	extensions  map[extensionKey]extensionRef
}

type extensionKey struct {
	extendee TypeID
	number   int32
}

type extensionRef struct {
	file  int
	index int
}

type fileInner struct {
	name       string
	pkg        string
	proto3     bool
	deps       []int
	messages   []messageInner // flattened, outer types before their nested types
	enums      []enumInner    // flattened
	services   []serviceInner
	extensions []extensionInner // flattened, file-level and message-level
}

type messageInner struct {
	fullName        string
	id              TypeID
	parent          int   // flattened index of the enclosing message, or -1
	nestedMessages  []int // flattened indices
	nestedEnums     []int
	fields          []fieldInner
	oneofs          []oneofInner
	fieldsByNumber  map[int32]int
	fieldsByName    map[string]int
	fieldsByJSON    map[string]int
	mapEntry        bool
	reservedRanges  [][2]int32 // [start, end), like descriptor reserved ranges
	reservedNames   []string
	extensionRanges [][2]int32
}

type fieldInner struct {
	name         string
	fullName     string
	jsonName     string
	number       int32
	kind         Kind
	typeID       TypeID // message/group/enum kinds only
	cardinality  Cardinality
	packed       bool
	isMap        bool
	oneof        int // index into messageInner.oneofs, or -1
	hasPresence  bool
	defaultValue interface{} // nil for message and group kinds
}

type oneofInner struct {
	name      string
	fullName  string
	synthetic bool
	fields    []int // field indices within the containing message
}

type enumInner struct {
	fullName       string
	id             TypeID
	parent         int // flattened index of the enclosing message, or -1
	values         []enumValueInner
	valuesByName   map[string]int
	valuesByNumber map[int32]int // first declared value wins for aliases
	reservedRanges [][2]int32    // [start, end], inclusive per enum reserved ranges
	reservedNames  []string
}

type enumValueInner struct {
	name     string
	fullName string // declared in the enum's enclosing scope, not inside the enum
	number   int32
}

type serviceInner struct {
	fullName string
	methods  []methodInner
}

type methodInner struct {
	name            string
	fullName        string
	input           TypeID
	output          TypeID
	clientStreaming bool
	serverStreaming bool
}

type extensionInner struct {
	fieldInner
	extendee TypeID
}

// NewPool parses a serialized FileDescriptorSet and builds a pool from the
// files it contains. The set must be self-contained: every dependency of
// every file must itself be present in the set.
func NewPool(descriptorSetBytes []byte) (*Pool, error) {
	var fds descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(descriptorSetBytes, &fds); err != nil {
		return nil, newDescriptorError("", "malformed file descriptor set: %v", err)
	}
	return NewPoolFromFiles(fds.GetFile()...)
}

// NewPoolFromFiles builds a pool from already-parsed file descriptors.
func NewPoolFromFiles(files ...*descriptorpb.FileDescriptorProto) (*Pool, error) {
	b := newPoolBuilder()
	for _, fdp := range files {
		if err := b.collectFile(fdp); err != nil {
			return nil, err
		}
	}
	if err := b.resolve(); err != nil {
		return nil, err
	}
	return b.pool, nil
}

// Files returns a sequence of handles for the pooled files, in the order
// they were supplied to the pool.
func (p *Pool) Files() iter.Seq[FileDescriptor] {
	return func(yield func(FileDescriptor) bool) {
		for i := range p.files {
			if !yield(FileDescriptor{pool: p, index: i}) {
				return
			}
		}
	}
}

// FileCount returns the number of files in the pool.
func (p *Pool) FileCount() int {
	return len(p.files)
}

// File returns a handle for the i-th pooled file. It panics if i is out of
// range.
func (p *Pool) File(i int) FileDescriptor {
	if i < 0 || i >= len(p.files) {
		panic("desc: file index out of range")
	}
	return FileDescriptor{pool: p, index: i}
}

// FileByName returns the handle for the file with the given path.
func (p *Pool) FileByName(name string) (FileDescriptor, bool) {
	i, ok := p.filesByName[name]
	if !ok {
		return FileDescriptor{}, false
	}
	return FileDescriptor{pool: p, index: i}, true
}

// FindMessageByName returns the message descriptor with the given dotted
// full name (no leading dot).
func (p *Pool) FindMessageByName(fullName string) (MessageDescriptor, bool) {
	id, ok := p.typesByName[fullName]
	if !ok || p.types[id].kind != typeKindMessage {
		return MessageDescriptor{}, false
	}
	return p.messageByID(id), true
}

// FindEnumByName returns the enum descriptor with the given dotted full
// name (no leading dot).
func (p *Pool) FindEnumByName(fullName string) (EnumDescriptor, bool) {
	id, ok := p.typesByName[fullName]
	if !ok || p.types[id].kind != typeKindEnum {
		return EnumDescriptor{}, false
	}
	return p.enumByID(id), true
}

// FindExtensionByName returns the extension descriptor declared with the
// given dotted full name.
func (p *Pool) FindExtensionByName(fullName string) (ExtensionDescriptor, bool) {
	ref, ok := p.extsByName[fullName]
	if !ok {
		return ExtensionDescriptor{}, false
	}
	return ExtensionDescriptor{file: FileDescriptor{pool: p, index: ref.file}, index: ref.index}, true
}

// FindExtensionByNumber returns the extension of the given message with the
// given field number.
func (p *Pool) FindExtensionByNumber(extendee MessageDescriptor, number int32) (ExtensionDescriptor, bool) {
	if extendee.file.pool != p {
		return ExtensionDescriptor{}, false
	}
	ref, ok := p.extensions[extensionKey{extendee: extendee.inner().id, number: number}]
	if !ok {
		return ExtensionDescriptor{}, false
	}
	return ExtensionDescriptor{file: FileDescriptor{pool: p, index: ref.file}, index: ref.index}, true
}

func (p *Pool) messageByID(id TypeID) MessageDescriptor {
	e := p.types[id]
	return MessageDescriptor{file: FileDescriptor{pool: p, index: e.file}, index: e.index}
}

func (p *Pool) enumByID(id TypeID) EnumDescriptor {
	e := p.types[id]
	return EnumDescriptor{file: FileDescriptor{pool: p, index: e.file}, index: e.index}
}

// resolveTypeName resolves a type reference the way a protobuf compiler
// scopes names: a name with a leading dot is absolute; otherwise the name
// is tried against each enclosing scope of namespace, innermost first, and
// finally against the root scope.
func (p *Pool) resolveTypeName(namespace, name string) (TypeID, error) {
	if strings.HasPrefix(name, ".") {
		if id, ok := p.typesByName[name[1:]]; ok {
			return id, nil
		}
		return 0, newDescriptorError(name[1:], "unresolved type reference")
	}
	for scope := namespace; ; scope = ParseNamespace(scope) {
		if id, ok := p.typesByName[makeFullName(scope, name)]; ok {
			return id, nil
		}
		if scope == "" {
			break
		}
	}
	return 0, newDescriptorError(makeFullName(namespace, name), "unresolved type reference to %q in scope %q", name, namespace)
}
