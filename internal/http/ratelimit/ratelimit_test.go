package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newLimiter(t *testing.T, r rate.Limit, burst int, proxies []string) *IPRateLimiter {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewIPRateLimiter(ctx, r, burst, time.Minute, proxies)
}

func TestMiddlewareLimitsPerClient(t *testing.T) {
	l := newLimiter(t, rate.Limit(1), 2, nil)
	h := l.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/slots", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("192.0.2.1:1234"); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := do("192.0.2.1:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after burst, got %d", code)
	}
	if code := do("192.0.2.2:1234"); code != http.StatusNoContent {
		t.Fatalf("other clients must not share a budget, got %d", code)
	}
}

func TestClientIPHonoursTrustedProxies(t *testing.T) {
	l := newLimiter(t, rate.Limit(1), 1, []string{"10.0.0.0/8", "192.0.2.9"})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.2.3")
	if ip := l.clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("trusted proxy: got %s", ip)
	}

	req.RemoteAddr = "192.0.2.9:80"
	if ip := l.clientIP(req); ip != "203.0.113.7" {
		t.Fatalf("single-IP proxy entry: got %s", ip)
	}

	req.RemoteAddr = "198.51.100.4:80"
	if ip := l.clientIP(req); ip != "198.51.100.4" {
		t.Fatalf("untrusted peer must not set its own IP, got %s", ip)
	}
}

func TestSweepDropsIdleEntries(t *testing.T) {
	l := newLimiter(t, rate.Limit(1), 1, nil)
	now := time.Date(2024, time.January, 20, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.getLimiter("a")
	now = now.Add(3 * time.Minute)
	l.getLimiter("b")
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.limiters["a"]; ok {
		t.Fatal("idle entry should be evicted")
	}
	if _, ok := l.limiters["b"]; !ok {
		t.Fatal("fresh entry should be kept")
	}
}
