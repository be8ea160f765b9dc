package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestClientKeyFromForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	if got := ClientKey(req); got != "203.0.113.5" {
		t.Errorf("ClientKey() = %q, want 203.0.113.5", got)
	}
}

func TestClientKeyFromPeerAddress(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:9999"
	if got := ClientKey(req); got != "198.51.100.7" {
		t.Errorf("ClientKey() = %q, want 198.51.100.7", got)
	}
}

func TestClientKeySentinel(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	if got := ClientKey(req); got != UnknownClientKey {
		t.Errorf("ClientKey() = %q, want sentinel %q", got, UnknownClientKey)
	}

	// Garbage forwarding header falls through to the sentinel too.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-an-address"
	req.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := ClientKey(req); got != UnknownClientKey {
		t.Errorf("ClientKey() = %q, want sentinel %q", got, UnknownClientKey)
	}
}

func TestKeyedLimiterOneRequestPerMinute(t *testing.T) {
	kl := NewKeyedLimiter(1)

	if !kl.Allow("203.0.113.5") {
		t.Fatal("first request should be admitted")
	}
	if kl.Allow("203.0.113.5") {
		t.Error("second request within the minute should be denied")
	}
	// A different key has its own bucket.
	if !kl.Allow("198.51.100.7") {
		t.Error("unrelated key should not be affected")
	}
}

func TestKeyedLimiterFloorsAtOne(t *testing.T) {
	kl := NewKeyedLimiter(0)
	if !kl.Allow("k") {
		t.Error("rpm floored at 1 should still admit the first request")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	kl := NewKeyedLimiter(1)
	handler := kl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}

func TestKeyedLimiterConcurrentKeys(t *testing.T) {
	kl := NewKeyedLimiter(1)

	var wg sync.WaitGroup
	results := make([]bool, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = kl.Allow(string(rune('a' + i%26)))
		}(i)
	}
	wg.Wait()

	// 26 distinct keys, each with burst 1: exactly the first arrival per
	// key is admitted, so at least one admit and one deny must occur.
	admits := 0
	for _, ok := range results {
		if ok {
			admits++
		}
	}
	if admits != 26 {
		t.Errorf("admits = %d, want one per distinct key (26)", admits)
	}
}
