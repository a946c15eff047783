package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want bool
	}{
		{in: "ada@example.com", want: true},
		{in: "Ada.Lovelace+test@sub.example.org", want: true},
		{in: "", want: false},
		{in: "ada", want: false},
		{in: "ada@", want: false},
		{in: "@example.com", want: false},
		{in: strings.Repeat("a", 250) + "@example.com", want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Email(tt.in), tt.in)
	}
}
