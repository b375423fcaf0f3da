package desc

import "fmt"

// DescriptorError is returned when a Pool cannot be built from its input
// files. It identifies the entity that could not be processed.
type DescriptorError struct {
	name   string
	reason string
}

func newDescriptorError(name, format string, args ...interface{}) *DescriptorError {
	return &DescriptorError{name: name, reason: fmt.Sprintf(format, args...)}
}

// Name returns the full name of the offending entity, or the file name when
// the error is not attributable to a single declaration.
func (e *DescriptorError) Name() string {
	return e.name
}

func (e *DescriptorError) Error() string {
	if e.name == "" {
		return e.reason
	}
	return fmt.Sprintf("%s: %s", e.name, e.reason)
}
