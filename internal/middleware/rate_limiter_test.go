package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestKeyedLimiterEnforcesBurst(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 2, time.Hour)

	if !limiter.Allow("10.0.0.1") || !limiter.Allow("10.0.0.1") {
		t.Fatal("expected burst capacity to admit initial requests")
	}
	if limiter.Allow("10.0.0.1") {
		t.Fatal("expected request beyond burst to be rejected")
	}
	if !limiter.Allow("10.0.0.2") {
		t.Fatal("expected a different key to have its own budget")
	}
}

func TestKeyedLimiterSweepsIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Minute).(*keyedLimiter)

	current := time.Now()
	limiter.withNowFunc(func() time.Time { return current })

	limiter.Allow("10.0.0.1")
	current = current.Add(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		limiter.Allow("10.0.0.2")
	}

	limiter.mu.Lock()
	_, stale := limiter.clients["10.0.0.1"]
	limiter.mu.Unlock()
	if stale {
		t.Fatal("expected idle client to be swept")
	}
}

func TestLimitMiddlewareRejectsWithTooManyRequests(t *testing.T) {
	limiter := NewIPRateLimiter(1, time.Hour, 1, time.Hour)

	handler := Limit(limiter, "auth")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:4444"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request limited, got %d", rec.Code)
	}
}
