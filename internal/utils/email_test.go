package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEmail(t *testing.T) {
	require.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
	require.Equal(t, "", NormalizeEmail("   "))
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{name: "regular", email: "jane@example.com", want: "j**e@example.com"},
		{name: "two_chars", email: "jo@example.com", want: "jo@example.com"},
		{name: "no_at", email: "not-an-email", want: "not-an-email"},
		{name: "long", email: "guest.user@serenity.test", want: "g********r@serenity.test"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, MaskEmail(tt.email))
		})
	}
}
