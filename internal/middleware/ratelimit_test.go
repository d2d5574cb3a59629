package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func okTestHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// fakeClock is a settable time source for limiter tests.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(rate float64, burst int) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(rate, burst)
	rl.now = clock.now
	return rl, clock
}

func hit(h http.Handler, path, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiterBurstThenReject(t *testing.T) {
	rl, _ := newTestLimiter(1, 3)
	h := rl.Handler(okTestHandler())

	for i := range 3 {
		rec := hit(h, "/api/v1/notes", "10.0.0.1:5000")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
		if got, want := rec.Header().Get("X-RateLimit-Remaining"), strconv.Itoa(2-i); got != want {
			t.Errorf("request %d: remaining = %s, want %s", i+1, got, want)
		}
	}

	rec := hit(h, "/api/v1/notes", "10.0.0.1:5000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Limit") != "3" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl, clock := newTestLimiter(2, 1)
	h := rl.Handler(okTestHandler())

	if hit(h, "/", "10.0.0.1:1").Code != http.StatusOK {
		t.Fatal("first request refused")
	}
	if hit(h, "/", "10.0.0.1:1").Code != http.StatusTooManyRequests {
		t.Fatal("second request should be limited")
	}
	clock.advance(500 * time.Millisecond)
	if hit(h, "/", "10.0.0.1:1").Code != http.StatusOK {
		t.Error("request after refill refused")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)
	h := rl.Handler(okTestHandler())

	hit(h, "/", "10.0.0.1:1")
	if hit(h, "/", "10.0.0.1:2").Code != http.StatusTooManyRequests {
		t.Error("same host on another port should share the bucket")
	}
	if hit(h, "/", "10.0.0.2:1").Code != http.StatusOK {
		t.Error("other client should not be limited")
	}
}

func TestRateLimiterSkipsHealth(t *testing.T) {
	rl, _ := newTestLimiter(1, 1)
	h := rl.Handler(okTestHandler())

	for range 5 {
		if rec := hit(h, "/health/ready", "10.0.0.1:1"); rec.Code != http.StatusOK {
			t.Fatalf("health probe limited: %d", rec.Code)
		}
	}
	if rl.Len() != 0 {
		t.Errorf("health probes should not allocate buckets, Len = %d", rl.Len())
	}
}

func TestRateLimiterSetLimits(t *testing.T) {
	rl, clock := newTestLimiter(0.001, 1)
	h := rl.Handler(okTestHandler())

	hit(h, "/", "10.0.0.9:4242")
	if hit(h, "/", "10.0.0.9:4242").Code != http.StatusTooManyRequests {
		t.Fatal("second request should be limited")
	}

	rl.SetLimits(1000, 100)
	clock.advance(10 * time.Millisecond)
	if code := hit(h, "/", "10.0.0.9:4242").Code; code != http.StatusOK {
		t.Errorf("after raising limits: %d", code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(10, 10)
	h := rl.Handler(okTestHandler())

	hit(h, "/", "10.0.0.1:1234")
	clock.advance(time.Minute)
	hit(h, "/", "10.0.0.2:1234")

	rl.cleanup(30 * time.Second)
	if rl.Len() != 1 {
		t.Errorf("Len after cleanup = %d, want 1", rl.Len())
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	for d, want := range map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		time.Minute:             60,
	} {
		if got := retryAfterSeconds(d); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", d, got, want)
		}
	}
}
