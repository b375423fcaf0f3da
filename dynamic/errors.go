package dynamic

import (
	"errors"
	"fmt"

	"github.com/protodyn/protodyn/desc"
)

// ErrUnknownFieldName is returned when a name lookup against a message's
// descriptor finds no field.
var ErrUnknownFieldName = errors.New("dynamic: unknown field name")

// ErrFieldIsNotMap is returned when a map operation is invoked on a field
// that is not a map field.
var ErrFieldIsNotMap = errors.New("dynamic: field is not a map")

// ErrFieldIsNotRepeated is returned when a repeated-field operation is
// invoked on a field that is not repeated.
var ErrFieldIsNotRepeated = errors.New("dynamic: field is not repeated")

// ErrIndexOutOfRange is returned when accessing an element of a repeated
// field with an index outside the current element count.
var ErrIndexOutOfRange = errors.New("dynamic: index out of range")

// TypeError indicates a value whose type disagrees with the declared kind
// of the field it was offered to, or a descriptor that does not belong to
// the message it was used with. The failed operation commits no mutation.
type TypeError struct {
	FieldName string
	msg       string
}

func typeErrorf(fld string, format string, args ...interface{}) *TypeError {
	return &TypeError{FieldName: fld, msg: fmt.Sprintf(format, args...)}
}

func (e *TypeError) Error() string {
	if e.FieldName == "" {
		return "dynamic: " + e.msg
	}
	return fmt.Sprintf("dynamic: field %s: %s", e.FieldName, e.msg)
}

// DecodeError indicates malformed or truncated wire-format input, or a
// record whose wire type is incompatible with the target field's kind.
// A failed decode leaves the target message untouched.
type DecodeError struct {
	MessageName string
	msg         string
	cause       error
}

func decodeErrorf(md desc.MessageDescriptor, format string, args ...interface{}) *DecodeError {
	return &DecodeError{MessageName: md.FullName(), msg: fmt.Sprintf(format, args...)}
}

func wrapDecodeError(md desc.MessageDescriptor, err error) *DecodeError {
	var de *DecodeError
	if errors.As(err, &de) {
		return de
	}
	return &DecodeError{MessageName: md.FullName(), msg: err.Error(), cause: err}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("dynamic: decoding %s: %s", e.MessageName, e.msg)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}

// JSONError indicates malformed JSON input, a JSON value incompatible with
// the target field's kind, an unknown field name (unless ignored by
// option), or a malformed well-known-type textual form. A failed
// unmarshal leaves the target message untouched.
type JSONError struct {
	msg string
}

func jsonErrorf(format string, args ...interface{}) *JSONError {
	return &JSONError{msg: fmt.Sprintf(format, args...)}
}

func (e *JSONError) Error() string {
	return "dynamic: json: " + e.msg
}
