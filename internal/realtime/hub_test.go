package realtime

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func upgradeRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/v1/projects/p1/events", nil)
	if origin != "" {
		r.Header.Set("Origin", origin)
	}
	return r
}

func TestCheckOriginWithConfiguredList(t *testing.T) {
	hub := NewHub("https://app.example.com")

	require.True(t, hub.checkOrigin(upgradeRequest(t, "https://app.example.com")))
	require.True(t, hub.checkOrigin(upgradeRequest(t, "HTTPS://APP.EXAMPLE.COM")))
	require.False(t, hub.checkOrigin(upgradeRequest(t, "https://evil.example.net")))

	// Same-host upgrades pass even when not listed.
	require.True(t, hub.checkOrigin(upgradeRequest(t, "http://api.example.com")))

	// Non-browser clients send no Origin header.
	require.True(t, hub.checkOrigin(upgradeRequest(t, "")))
}

func TestCheckOriginUnrestrictedByDefault(t *testing.T) {
	hub := NewHub()

	require.True(t, hub.checkOrigin(upgradeRequest(t, "https://anywhere.example.org")))
	require.True(t, hub.checkOrigin(upgradeRequest(t, "")))
}
