// Package dynamic provides a message implementation whose shape is driven
// entirely by a descriptor at runtime instead of a compiled-in struct
// layout.
//
// A Message is bound to exactly one desc.MessageDescriptor. Fields are
// stored sparsely by field number; an absent entry means "not set", which
// for presence-tracking fields is distinct from "set to the default".
// Field numbers a decode does not recognize are kept verbatim in an
// unknown-field table and re-emitted byte for byte on encode.
//
// Messages convert to and from the binary wire format (Marshal/Unmarshal)
// and the canonical JSON mapping (MarshalJSON/UnmarshalJSON), including
// the fixed well-known-type shortcuts for Duration, Timestamp, the wrapper
// types, Struct/Value/ListValue, FieldMask, Empty, and Any.
//
// Accessors come in pairs: TryGetField returns an error on misuse while
// GetField panics. The panicking forms are for callers that know their
// descriptor and value types line up; the Try forms are for handling
// untrusted input.
//
// A Message is not safe for concurrent mutation. The descriptor pool it
// references is immutable and freely shared.
package dynamic
