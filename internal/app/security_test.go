package app

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiterAllow(t *testing.T) {
	l := NewIPRateLimiter(2, 0)
	if !l.Allow("k") || !l.Allow("k") {
		t.Fatalf("first two requests should pass")
	}
	if l.Allow("k") {
		t.Fatalf("third request should be blocked")
	}
	if !l.Allow("other") {
		t.Fatalf("other keys have their own window")
	}
}

func TestIPRateLimiterWindowResets(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	if !l.Allow("k") || l.Allow("k") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(61 * time.Second)
	if !l.Allow("k") {
		t.Fatalf("new window should allow again")
	}
}

func TestRateLimitMiddlewareIgnoresClientPort(t *testing.T) {
	mw := RateLimitMiddleware(NewIPRateLimiter(1, time.Minute))
	next := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/api/v1/exams/1/sync_live_results", nil)
	first.RemoteAddr = "10.0.0.5:50000"
	w := httptest.NewRecorder()
	next.ServeHTTP(w, first)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/exams/1/sync_live_results", nil)
	second.RemoteAddr = "10.0.0.5:50001"
	w = httptest.NewRecorder()
	next.ServeHTTP(w, second)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}
