package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildVerificationEmail(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	message, err := BuildVerificationEmail("jane@example.com", "Jane Doe", "042917", 10*time.Minute, now)
	require.NoError(t, err)

	require.Equal(t, "jane@example.com", message.To)
	require.Equal(t, "Verify Your Email - Serenity Suites", message.Subject)
	require.Contains(t, message.HTML, "Jane Doe")
	require.Contains(t, message.HTML, "042917")
	require.Contains(t, message.HTML, "10 minutes")
	require.Contains(t, message.HTML, "2025")
	require.Contains(t, message.Text, "Your verification code is: 042917")
}

func TestBuildVerificationEmailEscapesName(t *testing.T) {
	message, err := BuildVerificationEmail("x@example.com", "<script>alert(1)</script>", "123456", time.Minute, time.Now())
	require.NoError(t, err)
	require.NotContains(t, message.HTML, "<script>")
	require.Contains(t, message.HTML, "&lt;script&gt;")
	require.Contains(t, message.HTML, "1 minute")
}
