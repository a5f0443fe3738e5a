package symcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDemangleName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"_ZN4deno4main17h0123456789abcdefE", "deno::main"},
		{"_ZN3foo3barEv", "foo::bar"},
		{"__ZN3foo3barEv", "foo::bar"},
		{"main.main", "main.main"},
		{"plain_c_function", "plain_c_function"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, demangleName(tt.in))
		})
	}
}
