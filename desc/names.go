package desc

import "strings"

// ParseName returns the short name of a dotted full name: the substring
// after the last '.', or the whole string if it contains no dot.
func ParseName(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[i+1:]
	}
	return fullName
}

// ParseNamespace returns the enclosing scope of a dotted full name: the
// substring before the last '.', or the empty string if it contains no dot.
func ParseNamespace(fullName string) string {
	if i := strings.LastIndexByte(fullName, '.'); i >= 0 {
		return fullName[:i]
	}
	return ""
}

func makeFullName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}

// jsonName derives the default JSON name for a field: underscores are
// removed and the following letter is upper-cased.
func jsonName(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))
	nextUpper := false
	for i, r := range name {
		switch {
		case r == '_':
			nextUpper = true
		case nextUpper && i > 0:
			nextUpper = false
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			sb.WriteRune(r)
		default:
			nextUpper = false
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
