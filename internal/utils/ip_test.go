package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"ipv4", "192.168.1.10", "192.168.1.10"},
		{"surrounding space", "  10.0.0.1 ", "10.0.0.1"},
		{"ipv6 shortened", "2001:0db8:0000:0000:0000:0000:0000:0001", "2001:db8::1"},
		{"ipv4 mapped", "::ffff:10.0.0.1", "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeIP(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalizeIP_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "localhost", "10.0.0.256", "10.0.0.1/24"} {
		assert.Nil(t, NormalizeIP(raw), raw)
	}
}
