package dynamic

import (
	"fmt"

	"github.com/protodyn/protodyn/desc"
)

// Validate reports the first required field, at any depth, that has no
// value. Encoding does not call this; callers that need the proto2
// required-field guarantee invoke it explicitly.
func (m *Message) Validate() error {
	for fd := range m.md.Fields() {
		v, present := m.values[fd.Number()]
		if !present {
			if fd.Cardinality() == desc.CardinalityRequired {
				return fmt.Errorf("message %s: required field %s is not set", m.md.FullName(), fd.Name())
			}
			continue
		}
		if err := validateFieldValue(fd, v); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldValue(fd desc.FieldDescriptor, v interface{}) error {
	switch {
	case fd.IsMap():
		for _, mv := range v.(map[interface{}]interface{}) {
			if nested, ok := mv.(*Message); ok {
				if err := nested.Validate(); err != nil {
					return err
				}
			}
		}
	case fd.IsList():
		for _, e := range v.([]interface{}) {
			if nested, ok := e.(*Message); ok {
				if err := nested.Validate(); err != nil {
					return err
				}
			}
		}
	default:
		if nested, ok := v.(*Message); ok {
			return nested.Validate()
		}
	}
	return nil
}
