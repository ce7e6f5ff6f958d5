package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSRFMiddlewareBlocksMissingToken(t *testing.T) {
	handler := CSRF{Header: "X-CSRF-Token"}.Middleware(okHandler())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/protected", nil))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	handler := CSRF{Header: "X-CSRF-Token"}.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("X-CSRF-Token", "secure-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFMiddlewareSkipsBearer(t *testing.T) {
	handler := CSRF{Header: "X-CSRF-Token"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/protected", nil)
	req.Header.Set("Authorization", "Bearer abc.def")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusAccepted, rr.Code)
}
