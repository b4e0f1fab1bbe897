package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(3, time.Minute)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, rl.allow("10.0.0.1"))
	}
	require.False(t, rl.allow("10.0.0.1"))

	// Other clients have their own window.
	require.True(t, rl.allow("10.0.0.2"))

	// The window resets after it elapses.
	now = now.Add(61 * time.Second)
	require.True(t, rl.allow("10.0.0.1"))
}
