package desc

import "fmt"

// Kind classifies the declared type of a field. The numeric values match
// the wire-level type enumeration used by descriptor metadata, so a Kind
// can be derived directly from a field declaration.
type Kind int8

const (
	DoubleKind   Kind = 1
	FloatKind    Kind = 2
	Int64Kind    Kind = 3
	Uint64Kind   Kind = 4
	Int32Kind    Kind = 5
	Fixed64Kind  Kind = 6
	Fixed32Kind  Kind = 7
	BoolKind     Kind = 8
	StringKind   Kind = 9
	GroupKind    Kind = 10
	MessageKind  Kind = 11
	BytesKind    Kind = 12
	Uint32Kind   Kind = 13
	EnumKind     Kind = 14
	Sfixed32Kind Kind = 15
	Sfixed64Kind Kind = 16
	Sint32Kind   Kind = 17
	Sint64Kind   Kind = 18
)

var kindNames = map[Kind]string{
	DoubleKind:   "double",
	FloatKind:    "float",
	Int64Kind:    "int64",
	Uint64Kind:   "uint64",
	Int32Kind:    "int32",
	Fixed64Kind:  "fixed64",
	Fixed32Kind:  "fixed32",
	BoolKind:     "bool",
	StringKind:   "string",
	GroupKind:    "group",
	MessageKind:  "message",
	BytesKind:    "bytes",
	Uint32Kind:   "uint32",
	EnumKind:     "enum",
	Sfixed32Kind: "sfixed32",
	Sfixed64Kind: "sfixed64",
	Sint32Kind:   "sint32",
	Sint64Kind:   "sint64",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsScalar reports whether the kind is a scalar (neither a message, group,
// nor enum reference).
func (k Kind) IsScalar() bool {
	switch k {
	case GroupKind, MessageKind, EnumKind:
		return false
	default:
		return true
	}
}

// isPackable reports whether repeated values of the kind may share a
// single length-delimited record. Everything with a fixed-width or varint
// encoding qualifies, enums included.
func (k Kind) isPackable() bool {
	switch k {
	case StringKind, BytesKind, MessageKind, GroupKind:
		return false
	default:
		return true
	}
}

// isValidMapKey reports whether the kind may be used as a map key.
func (k Kind) isValidMapKey() bool {
	switch k {
	case Int32Kind, Int64Kind, Uint32Kind, Uint64Kind,
		Sint32Kind, Sint64Kind, Fixed32Kind, Fixed64Kind,
		Sfixed32Kind, Sfixed64Kind, BoolKind, StringKind:
		return true
	default:
		return false
	}
}

// Cardinality describes how many values a field may carry and whether the
// field tracks explicit presence.
type Cardinality int8

const (
	// CardinalitySingular is a field without explicit presence tracking:
	// a value equal to the declared default is indistinguishable from an
	// absent value.
	CardinalitySingular Cardinality = iota + 1
	// CardinalityOptional is a field with explicit presence tracking.
	CardinalityOptional
	// CardinalityRequired is a proto2 required field. It tracks presence
	// like an optional field.
	CardinalityRequired
	// CardinalityRepeated is a repeated or map field.
	CardinalityRepeated
)

func (c Cardinality) String() string {
	switch c {
	case CardinalitySingular:
		return "singular"
	case CardinalityOptional:
		return "optional"
	case CardinalityRequired:
		return "required"
	case CardinalityRepeated:
		return "repeated"
	default:
		return fmt.Sprintf("Cardinality(%d)", int(c))
	}
}
