package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guarded(trustedProxies ...string) http.Handler {
	return Middleware(trustedProxies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TokenFromContext(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestReadIssuesCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/month", nil))

	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
	assert.False(t, cookies[0].Secure)
}

func TestMutationRequiresMatchingHeader(t *testing.T) {
	cookie := &http.Cookie{Name: CookieName, Value: "tok-123"}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusForbidden},
		{"mismatch", "tok-999", http.StatusForbidden},
		{"match", "tok-123", http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/drag/drop", nil)
			req.AddCookie(cookie)
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			rec := httptest.NewRecorder()
			guarded().ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestMutationWithoutCookieIsRejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/events/task-1", nil)
	req.Header.Set(HeaderName, "anything")
	rec := httptest.NewRecorder()
	guarded().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSecureCookieBehindTLSProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
	req.RemoteAddr = "10.0.0.5:443"
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	guarded("10.0.0.0/8").ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
}

func TestForwardedProtoIgnoredFromUntrustedPeer(t *testing.T) {
	cases := []struct {
		name    string
		proxies []string
	}{
		{"peer outside trusted list", []string{"10.0.0.0/8"}},
		{"no proxies configured", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
			req.RemoteAddr = "198.51.100.4:51000"
			req.Header.Set("X-Forwarded-Proto", "https")
			rec := httptest.NewRecorder()
			guarded(tc.proxies...).ServeHTTP(rec, req)

			cookies := rec.Result().Cookies()
			require.Len(t, cookies, 1)
			assert.False(t, cookies[0].Secure)
		})
	}
}
