package qa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	n := Identity()
	assert.Equal(t, "Harry Truman", n.Normalize("Harry Truman"))
	assert.Equal(t, "  YES ", n.Normalize("  YES "))
}

func TestFold(t *testing.T) {
	n := Fold()
	tests := []struct {
		in, want string
	}{
		{"Harry Truman", "harry truman"},
		{"  Harry   Truman. ", "harry truman"},
		{"YES", "yes"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Normalize(tt.in), "input %q", tt.in)
	}
}
