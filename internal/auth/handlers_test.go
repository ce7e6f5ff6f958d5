package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.1, 70.41.3.18")
	req.RemoteAddr = "192.0.2.1:1234"

	require.Equal(t, "203.0.113.1", clientIP(req))
}

func TestClientIPFallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com", nil)
	req.Header.Set("X-Real-IP", "198.51.100.2")
	req.RemoteAddr = "192.0.2.1:1234"

	require.Equal(t, "198.51.100.2", clientIP(req))
}

func TestClientIPStripsPortFromRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com", nil)
	req.RemoteAddr = "198.51.100.3:8080"

	require.Equal(t, "198.51.100.3", clientIP(req))
}
