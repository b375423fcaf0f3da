package desc

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/types/descriptorpb"
)

// maxFieldNumber is the largest permitted field number (2^29 - 1).
const maxFieldNumber = 536870911

// poolBuilder accumulates raw declarations during the collection pass and
// resolves them into derived metadata during the resolution pass. Names are
// collected for the whole batch before any reference is resolved, so
// forward references and cross-file cycles between message types work
// regardless of file order.
type poolBuilder struct {
	pool *Pool

	// declared tracks every full name in the batch for duplicate
	// detection; the value is the file that declared it.
	declared map[string]string

	depNames    [][]string
	rawMessages [][]*descriptorpb.DescriptorProto // parallel to fileInner.messages
	rawServices [][]*descriptorpb.ServiceDescriptorProto
	rawExts     [][]rawExtension
}

type rawExtension struct {
	proto *descriptorpb.FieldDescriptorProto
	scope string
}

func newPoolBuilder() *poolBuilder {
	return &poolBuilder{
		pool: &Pool{
			filesByName: map[string]int{},
			typesByName: map[string]TypeID{},
			extsByName:  map[string]extensionRef{},
			extensions:  map[extensionKey]extensionRef{},
		},
		declared: map[string]string{},
	}
}

// collectFile is the first pass for one file: flatten declarations, mint
// type ids, and index every full name. No references are resolved here.
func (b *poolBuilder) collectFile(fdp *descriptorpb.FileDescriptorProto) error {
	name := fdp.GetName()
	if _, ok := b.pool.filesByName[name]; ok {
		return newDescriptorError(name, "file appears more than once in descriptor set")
	}
	switch fdp.GetSyntax() {
	case "", "proto2", "proto3":
	default:
		return newDescriptorError(name, "unsupported syntax %q", fdp.GetSyntax())
	}

	fi := len(b.pool.files)
	b.pool.files = append(b.pool.files, fileInner{
		name:   name,
		pkg:    fdp.GetPackage(),
		proto3: fdp.GetSyntax() == "proto3",
	})
	b.pool.filesByName[name] = fi
	b.depNames = append(b.depNames, fdp.GetDependency())
	b.rawMessages = append(b.rawMessages, nil)
	b.rawServices = append(b.rawServices, fdp.GetService())
	b.rawExts = append(b.rawExts, nil)

	pkg := fdp.GetPackage()
	for _, md := range fdp.GetMessageType() {
		if err := b.collectMessage(fi, -1, pkg, md); err != nil {
			return err
		}
	}
	for _, ed := range fdp.GetEnumType() {
		if err := b.collectEnum(fi, -1, pkg, ed); err != nil {
			return err
		}
	}
	for _, xd := range fdp.GetExtension() {
		if err := b.collectExtension(fi, pkg, xd); err != nil {
			return err
		}
	}
	for _, sd := range fdp.GetService() {
		svcName := makeFullName(pkg, sd.GetName())
		if err := b.declare(fi, svcName); err != nil {
			return err
		}
		svc := serviceInner{fullName: svcName}
		for _, mtd := range sd.GetMethod() {
			mtdName := makeFullName(svcName, mtd.GetName())
			if err := b.declare(fi, mtdName); err != nil {
				return err
			}
			svc.methods = append(svc.methods, methodInner{
				name:            mtd.GetName(),
				fullName:        mtdName,
				clientStreaming: mtd.GetClientStreaming(),
				serverStreaming: mtd.GetServerStreaming(),
			})
		}
		b.pool.files[fi].services = append(b.pool.files[fi].services, svc)
	}
	return nil
}

func (b *poolBuilder) declare(fi int, fullName string) error {
	if prev, ok := b.declared[fullName]; ok {
		return newDescriptorError(fullName, "name declared in both %q and %q", prev, b.pool.files[fi].name)
	}
	b.declared[fullName] = b.pool.files[fi].name
	return nil
}

func (b *poolBuilder) mintTypeID(fi int, fullName string, kind typeKind, index int) (TypeID, error) {
	if err := b.declare(fi, fullName); err != nil {
		return 0, err
	}
	id := TypeID(len(b.pool.types))
	b.pool.types = append(b.pool.types, typeEntry{kind: kind, file: fi, index: index})
	b.pool.typesByName[fullName] = id
	return id, nil
}

func (b *poolBuilder) collectMessage(fi, parent int, scope string, md *descriptorpb.DescriptorProto) error {
	fullName := makeFullName(scope, md.GetName())
	file := &b.pool.files[fi]
	index := len(file.messages)
	id, err := b.mintTypeID(fi, fullName, typeKindMessage, index)
	if err != nil {
		return err
	}

	inner := messageInner{
		fullName: fullName,
		id:       id,
		parent:   parent,
		mapEntry: md.GetOptions().GetMapEntry(),
	}
	for _, rr := range md.GetReservedRange() {
		inner.reservedRanges = append(inner.reservedRanges, [2]int32{rr.GetStart(), rr.GetEnd()})
	}
	inner.reservedNames = append(inner.reservedNames, md.GetReservedName()...)
	for _, er := range md.GetExtensionRange() {
		inner.extensionRanges = append(inner.extensionRanges, [2]int32{er.GetStart(), er.GetEnd()})
	}
	file.messages = append(file.messages, inner)
	b.rawMessages[fi] = append(b.rawMessages[fi], md)

	for _, fld := range md.GetField() {
		if err := b.declare(fi, makeFullName(fullName, fld.GetName())); err != nil {
			return err
		}
	}

	for _, nested := range md.GetNestedType() {
		nestedIndex := len(file.messages)
		if err := b.collectMessage(fi, index, fullName, nested); err != nil {
			return err
		}
		file.messages[index].nestedMessages = append(file.messages[index].nestedMessages, nestedIndex)
	}
	for _, nested := range md.GetEnumType() {
		nestedIndex := len(file.enums)
		if err := b.collectEnum(fi, index, fullName, nested); err != nil {
			return err
		}
		file.messages[index].nestedEnums = append(file.messages[index].nestedEnums, nestedIndex)
	}
	for _, xd := range md.GetExtension() {
		if err := b.collectExtension(fi, fullName, xd); err != nil {
			return err
		}
	}
	return nil
}

func (b *poolBuilder) collectEnum(fi, parent int, scope string, ed *descriptorpb.EnumDescriptorProto) error {
	fullName := makeFullName(scope, ed.GetName())
	file := &b.pool.files[fi]
	index := len(file.enums)
	id, err := b.mintTypeID(fi, fullName, typeKindEnum, index)
	if err != nil {
		return err
	}
	if len(ed.GetValue()) == 0 {
		return newDescriptorError(fullName, "enum must declare at least one value")
	}

	inner := enumInner{
		fullName:       fullName,
		id:             id,
		parent:         parent,
		valuesByName:   map[string]int{},
		valuesByNumber: map[int32]int{},
	}
	for _, rr := range ed.GetReservedRange() {
		inner.reservedRanges = append(inner.reservedRanges, [2]int32{rr.GetStart(), rr.GetEnd()})
	}
	inner.reservedNames = append(inner.reservedNames, ed.GetReservedName()...)

	for i, vd := range ed.GetValue() {
		// enum values are scoped to the enum's enclosing scope, not the enum
		valueFullName := makeFullName(scope, vd.GetName())
		if err := b.declare(fi, valueFullName); err != nil {
			return err
		}
		inner.values = append(inner.values, enumValueInner{
			name:     vd.GetName(),
			fullName: valueFullName,
			number:   vd.GetNumber(),
		})
		inner.valuesByName[vd.GetName()] = i
		if _, ok := inner.valuesByNumber[vd.GetNumber()]; !ok {
			inner.valuesByNumber[vd.GetNumber()] = i
		}
	}
	file.enums = append(file.enums, inner)
	return nil
}

func (b *poolBuilder) collectExtension(fi int, scope string, xd *descriptorpb.FieldDescriptorProto) error {
	if err := b.declare(fi, makeFullName(scope, xd.GetName())); err != nil {
		return err
	}
	b.rawExts[fi] = append(b.rawExts[fi], rawExtension{proto: xd, scope: scope})
	return nil
}

// resolve is the second pass: every type reference recorded during
// collection is resolved to a TypeID and per-entity derived metadata is
// computed.
func (b *poolBuilder) resolve() error {
	p := b.pool

	for fi := range p.files {
		for _, dep := range b.depNames[fi] {
			di, ok := p.filesByName[dep]
			if !ok {
				return newDescriptorError(p.files[fi].name, "dependency %q is not present in the descriptor set", dep)
			}
			p.files[fi].deps = append(p.files[fi].deps, di)
		}
	}

	// fields first, so that map-entry shapes can be checked afterwards
	for fi := range p.files {
		for mi := range p.files[fi].messages {
			if err := b.resolveMessage(fi, mi); err != nil {
				return err
			}
		}
	}
	for fi := range p.files {
		for mi := range p.files[fi].messages {
			if err := b.checkMapFields(fi, mi); err != nil {
				return err
			}
		}
	}
	for fi := range p.files {
		if err := b.resolveServices(fi); err != nil {
			return err
		}
		if err := b.resolveExtensions(fi); err != nil {
			return err
		}
	}
	return nil
}

func (b *poolBuilder) resolveMessage(fi, mi int) error {
	p := b.pool
	raw := b.rawMessages[fi][mi]
	m := &p.files[fi].messages[mi]
	proto3 := p.files[fi].proto3

	for _, od := range raw.GetOneofDecl() {
		m.oneofs = append(m.oneofs, oneofInner{
			name:     od.GetName(),
			fullName: makeFullName(m.fullName, od.GetName()),
		})
	}

	m.fieldsByNumber = make(map[int32]int, len(raw.GetField()))
	m.fieldsByName = make(map[string]int, len(raw.GetField()))
	m.fieldsByJSON = make(map[string]int, len(raw.GetField()))

	for i, rawField := range raw.GetField() {
		fld, err := b.buildField(m.fullName, rawField, proto3)
		if err != nil {
			return err
		}

		if oi := rawField.OneofIndex; oi != nil {
			if *oi < 0 || int(*oi) >= len(m.oneofs) {
				return newDescriptorError(fld.fullName, "oneof index %d out of range", *oi)
			}
			fld.oneof = int(*oi)
			if fld.cardinality == CardinalityRepeated {
				return newDescriptorError(fld.fullName, "oneof member must not be repeated")
			}
			fld.cardinality = CardinalityOptional
			fld.hasPresence = true
			m.oneofs[*oi].fields = append(m.oneofs[*oi].fields, i)
			if rawField.GetProto3Optional() {
				m.oneofs[*oi].synthetic = true
			}
		}

		if fld.number <= 0 || fld.number > maxFieldNumber {
			return newDescriptorError(fld.fullName, "field number %d out of range", fld.number)
		}
		if prev, ok := m.fieldsByNumber[fld.number]; ok {
			return newDescriptorError(fld.fullName, "field number %d already used by %q", fld.number, m.fields[prev].name)
		}
		for _, rr := range m.reservedRanges {
			if fld.number >= rr[0] && fld.number < rr[1] {
				return newDescriptorError(fld.fullName, "field number %d is reserved", fld.number)
			}
		}
		for _, rn := range m.reservedNames {
			if rn == fld.name {
				return newDescriptorError(fld.fullName, "field name %q is reserved", fld.name)
			}
		}

		m.fields = append(m.fields, fld)
		m.fieldsByNumber[fld.number] = i
		m.fieldsByName[fld.name] = i
		m.fieldsByJSON[fld.jsonName] = i
	}
	return nil
}

// buildField derives field metadata common to message fields and extension
// declarations. scope is the lexical scope the declaration appears in.
func (b *poolBuilder) buildField(scope string, raw *descriptorpb.FieldDescriptorProto, proto3 bool) (fieldInner, error) {
	fld := fieldInner{
		name:     raw.GetName(),
		fullName: makeFullName(scope, raw.GetName()),
		number:   raw.GetNumber(),
		oneof:    -1,
		typeID:   -1,
	}

	fld.jsonName = raw.GetJsonName()
	if fld.jsonName == "" {
		fld.jsonName = jsonName(fld.name)
	}

	kind := Kind(raw.GetType())
	if raw.Type != nil && (kind < DoubleKind || kind > Sint64Kind) {
		return fieldInner{}, newDescriptorError(fld.fullName, "unknown field type %d", raw.GetType())
	}

	if tn := raw.GetTypeName(); tn != "" {
		id, err := b.pool.resolveTypeName(scope, tn)
		if err != nil {
			return fieldInner{}, newDescriptorError(fld.fullName, "%v", err)
		}
		fld.typeID = id
		referenced := b.pool.types[id]
		switch {
		case raw.Type == nil:
			// older compilers omit the type when a named type is referenced
			if referenced.kind == typeKindEnum {
				kind = EnumKind
			} else {
				kind = MessageKind
			}
		case kind == MessageKind || kind == GroupKind:
			if referenced.kind != typeKindMessage {
				return fieldInner{}, newDescriptorError(fld.fullName, "type name %q does not refer to a message", tn)
			}
		case kind == EnumKind:
			if referenced.kind != typeKindEnum {
				return fieldInner{}, newDescriptorError(fld.fullName, "type name %q does not refer to an enum", tn)
			}
		default:
			return fieldInner{}, newDescriptorError(fld.fullName, "scalar field must not have a type name")
		}
	} else if kind == MessageKind || kind == GroupKind || kind == EnumKind {
		return fieldInner{}, newDescriptorError(fld.fullName, "field of kind %v is missing a type name", kind)
	}
	fld.kind = kind

	switch raw.GetLabel() {
	case descriptorpb.FieldDescriptorProto_LABEL_REPEATED:
		fld.cardinality = CardinalityRepeated
	case descriptorpb.FieldDescriptorProto_LABEL_REQUIRED:
		if proto3 {
			return fieldInner{}, newDescriptorError(fld.fullName, "required fields are not allowed in proto3")
		}
		fld.cardinality = CardinalityRequired
		fld.hasPresence = true
	default:
		explicit := !proto3 || raw.GetProto3Optional() ||
			kind == MessageKind || kind == GroupKind
		if explicit {
			fld.cardinality = CardinalityOptional
			fld.hasPresence = true
		} else {
			fld.cardinality = CardinalitySingular
		}
	}

	if fld.cardinality == CardinalityRepeated && kind.isPackable() {
		if opts := raw.GetOptions(); opts != nil && opts.Packed != nil {
			fld.packed = opts.GetPacked()
		} else {
			fld.packed = proto3
		}
	}

	if kind != MessageKind && kind != GroupKind && fld.cardinality != CardinalityRepeated {
		def, err := b.defaultValue(&fld, raw)
		if err != nil {
			return fieldInner{}, err
		}
		fld.defaultValue = def
	}
	return fld, nil
}

// defaultValue computes the value reported for an absent field: the
// explicit proto2 default when declared, otherwise the zero value for the
// field's kind (first declared value for enums).
func (b *poolBuilder) defaultValue(fld *fieldInner, raw *descriptorpb.FieldDescriptorProto) (interface{}, error) {
	if raw.DefaultValue != nil {
		v, err := parseDefault(fld.kind, raw.GetDefaultValue(), b.enumForField(fld))
		if err != nil {
			return nil, newDescriptorError(fld.fullName, "invalid default value %q: %v", raw.GetDefaultValue(), err)
		}
		return v, nil
	}
	switch fld.kind {
	case DoubleKind:
		return float64(0), nil
	case FloatKind:
		return float32(0), nil
	case Int32Kind, Sint32Kind, Sfixed32Kind:
		return int32(0), nil
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return int64(0), nil
	case Uint32Kind, Fixed32Kind:
		return uint32(0), nil
	case Uint64Kind, Fixed64Kind:
		return uint64(0), nil
	case BoolKind:
		return false, nil
	case StringKind:
		return "", nil
	case BytesKind:
		return []byte(nil), nil
	case EnumKind:
		e := b.enumForField(fld)
		return e.values[0].number, nil
	default:
		return nil, nil
	}
}

func (b *poolBuilder) enumForField(fld *fieldInner) *enumInner {
	if fld.kind != EnumKind {
		return nil
	}
	e := b.pool.types[fld.typeID]
	return &b.pool.files[e.file].enums[e.index]
}

func parseDefault(kind Kind, text string, enum *enumInner) (interface{}, error) {
	switch kind {
	case DoubleKind:
		return strconv.ParseFloat(text, 64)
	case FloatKind:
		f, err := strconv.ParseFloat(text, 32)
		return float32(f), err
	case Int32Kind, Sint32Kind, Sfixed32Kind:
		n, err := strconv.ParseInt(text, 10, 32)
		return int32(n), err
	case Int64Kind, Sint64Kind, Sfixed64Kind:
		return strconv.ParseInt(text, 10, 64)
	case Uint32Kind, Fixed32Kind:
		n, err := strconv.ParseUint(text, 10, 32)
		return uint32(n), err
	case Uint64Kind, Fixed64Kind:
		return strconv.ParseUint(text, 10, 64)
	case BoolKind:
		return strconv.ParseBool(text)
	case StringKind:
		return text, nil
	case BytesKind:
		return unescapeBytes(text)
	case EnumKind:
		i, ok := enum.valuesByName[text]
		if !ok {
			return nil, fmt.Errorf("enum %s has no value named %q", enum.fullName, text)
		}
		return enum.values[i].number, nil
	default:
		return nil, fmt.Errorf("kind %v cannot have a default value", kind)
	}
}

// unescapeBytes decodes the C-style escaping used for bytes defaults in
// descriptor metadata.
func unescapeBytes(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(s) {
			return nil, fmt.Errorf("trailing backslash")
		}
		switch e := s[i]; e {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case '\\', '\'', '"', '?':
			out = append(out, e)
		case 'x', 'X':
			if i+2 >= len(s) {
				return nil, fmt.Errorf("truncated hex escape")
			}
			n, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("bad hex escape: %v", err)
			}
			out = append(out, byte(n))
			i += 2
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			n, err := strconv.ParseUint(s[i:j], 8, 32)
			if err != nil || n > math.MaxUint8 {
				return nil, fmt.Errorf("bad octal escape %q", s[i:j])
			}
			out = append(out, byte(n))
			i = j - 1
		default:
			return nil, fmt.Errorf("unknown escape \\%c", e)
		}
	}
	return out, nil
}

// checkMapFields runs after all fields in the pool are built: it marks map
// fields and validates the shape of their synthetic entry messages.
func (b *poolBuilder) checkMapFields(fi, mi int) error {
	p := b.pool
	m := &p.files[fi].messages[mi]
	for i := range m.fields {
		fld := &m.fields[i]
		if fld.kind != MessageKind && fld.kind != GroupKind {
			continue
		}
		e := p.types[fld.typeID]
		entry := &p.files[e.file].messages[e.index]
		if !entry.mapEntry {
			continue
		}
		if fld.kind == GroupKind || fld.cardinality != CardinalityRepeated {
			return newDescriptorError(fld.fullName, "map entry type %q may only be used by a repeated message field", entry.fullName)
		}
		if err := checkMapEntryShape(entry); err != nil {
			return err
		}
		fld.isMap = true
	}
	return nil
}

func checkMapEntryShape(entry *messageInner) error {
	if len(entry.fields) != 2 {
		return newDescriptorError(entry.fullName, "map entry must have exactly two fields, found %d", len(entry.fields))
	}
	key, value := &entry.fields[0], &entry.fields[1]
	if key.number != 1 || key.name != "key" {
		return newDescriptorError(entry.fullName, "map entry field 1 must be named \"key\"")
	}
	if value.number != 2 || value.name != "value" {
		return newDescriptorError(entry.fullName, "map entry field 2 must be named \"value\"")
	}
	if key.cardinality == CardinalityRepeated || value.cardinality == CardinalityRepeated {
		return newDescriptorError(entry.fullName, "map entry fields must not be repeated")
	}
	if !key.kind.isValidMapKey() {
		return newDescriptorError(entry.fullName, "%v is not a valid map key kind", key.kind)
	}
	return nil
}

func (b *poolBuilder) resolveServices(fi int) error {
	p := b.pool
	for si := range p.files[fi].services {
		svc := &p.files[fi].services[si]
		raw := b.rawServices[fi][si]
		for mi := range svc.methods {
			mtd := &svc.methods[mi]
			rawMtd := raw.GetMethod()[mi]
			var err error
			if mtd.input, err = b.resolveMessageRef(svc.fullName, rawMtd.GetInputType(), mtd.fullName); err != nil {
				return err
			}
			if mtd.output, err = b.resolveMessageRef(svc.fullName, rawMtd.GetOutputType(), mtd.fullName); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *poolBuilder) resolveMessageRef(scope, name, forEntity string) (TypeID, error) {
	id, err := b.pool.resolveTypeName(scope, name)
	if err != nil {
		return 0, newDescriptorError(forEntity, "%v", err)
	}
	if b.pool.types[id].kind != typeKindMessage {
		return 0, newDescriptorError(forEntity, "type name %q does not refer to a message", name)
	}
	return id, nil
}

func (b *poolBuilder) resolveExtensions(fi int) error {
	p := b.pool
	proto3 := p.files[fi].proto3
	for _, rawExt := range b.rawExts[fi] {
		fld, err := b.buildField(rawExt.scope, rawExt.proto, proto3)
		if err != nil {
			return err
		}
		extendee, err := b.resolveMessageRef(rawExt.scope, rawExt.proto.GetExtendee(), fld.fullName)
		if err != nil {
			return err
		}
		e := p.types[extendee]
		target := &p.files[e.file].messages[e.index]
		inRange := false
		for _, er := range target.extensionRanges {
			if fld.number >= er[0] && fld.number < er[1] {
				inRange = true
				break
			}
		}
		if !inRange {
			return newDescriptorError(fld.fullName, "field number %d is not in an extension range of %q", fld.number, target.fullName)
		}
		key := extensionKey{extendee: extendee, number: fld.number}
		if _, ok := p.extensions[key]; ok {
			return newDescriptorError(fld.fullName, "duplicate extension of %q with number %d", target.fullName, fld.number)
		}
		ref := extensionRef{file: fi, index: len(p.files[fi].extensions)}
		p.files[fi].extensions = append(p.files[fi].extensions, extensionInner{fieldInner: fld, extendee: extendee})
		p.extensions[key] = ref
		p.extsByName[fld.fullName] = ref
	}
	return nil
}
