package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeChannel(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"@durov", "durov"},
		{"Durov", "durov"},
		{"t.me/durov", "durov"},
		{"https://t.me/durov", "durov"},
		{"https://t.me/durov/123", "durov"},
		{"https://t.me/s/durov", "durov"},
		{"http://www.t.me/durov?single", "durov"},
		{"telegram.me/Some_Channel", "some_channel"},
		{"-1001234567890", "-1001234567890"},
		{"  @c1  ", "c1"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := NormalizeChannel(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeChannel_Invalid(t *testing.T) {
	for _, raw := range []string{"", "@", "a", "has space", "t.me/", "name!", "-", "https://example.com/x"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NormalizeChannel(raw)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestPermalink(t *testing.T) {
	assert.Equal(t, "https://t.me/durov/42", Permalink("durov", 42))
	assert.Empty(t, Permalink("-1001234567890", 42))
	assert.Empty(t, Permalink("", 42))
}
