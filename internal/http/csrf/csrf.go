package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"

	httperrors "github.com/jw6ventures/fleetcal/internal/http/errors"
	"github.com/jw6ventures/fleetcal/internal/http/proxy"
)

type contextKey struct{}

const (
	CookieName = "fleetcal_csrf"
	HeaderName = "X-CSRF-Token"
)

// Middleware issues a token cookie and requires it to be echoed in the
// X-CSRF-Token header on mutating requests. Reads are never blocked, so a
// client picks up the cookie from its first GET. X-Forwarded-Proto marks the
// cookie Secure only when it comes from one of trustedProxies.
func Middleware(trustedProxies []string) func(http.Handler) http.Handler {
	trust := proxy.Parse(trustedProxies)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ""
			if c, err := r.Cookie(CookieName); err == nil {
				token = c.Value
			}
			if token == "" {
				var err error
				token, err = generateToken()
				if err != nil {
					httperrors.InternalError(w, r, err, "failed to issue csrf token")
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    token,
					Path:     "/",
					HttpOnly: false, // the page script must read it to echo it back
					Secure:   isHTTPS(r, trust),
					SameSite: http.SameSiteStrictMode,
				})
			}

			if isStateChanging(r.Method) {
				provided := r.Header.Get(HeaderName)
				if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
					httperrors.WriteJSON(w, http.StatusForbidden, map[string]string{"error": "invalid csrf token"})
					return
				}
			}

			ctx := context.WithValue(r.Context(), contextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TokenFromContext returns the CSRF token associated with the request.
func TokenFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(contextKey{}).(string); ok {
		return v
	}
	return ""
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func isHTTPS(r *http.Request, trust proxy.Trust) bool {
	if r.TLS != nil {
		return true
	}
	return r.Header.Get("X-Forwarded-Proto") == "https" && trust.FromTrusted(r)
}

func isStateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}
