package desc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/protodyn/protodyn/desc"
)

func TestParseName(t *testing.T) {
	cases := []struct {
		input, name, namespace string
	}{
		{"foo.bar.Baz", "Baz", "foo.bar"},
		{"foo.Bar", "Bar", "foo"},
		{"Bar", "Bar", ""},
		{"", "", ""},
		{"a.b.Outer.Inner", "Inner", "a.b.Outer"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.name, desc.ParseName(tc.input), "name of %q", tc.input)
		assert.Equal(t, tc.namespace, desc.ParseNamespace(tc.input), "namespace of %q", tc.input)
	}
}
