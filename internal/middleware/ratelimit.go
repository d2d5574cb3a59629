package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// maxClients caps the number of tracked client buckets. New clients are
// rejected while the table is full until cleanup frees entries.
const maxClients = 100_000

// RateLimiter throttles every client IP with a token bucket refilled at
// rate tokens per second up to burst. Health probes are never throttled.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	rate    float64
	burst   int
	now     func() time.Time
}

type tokenBucket struct {
	tokens   float64
	refilled time.Time
}

// refill adds the tokens earned since the last refill, capped at burst.
func (b *tokenBucket) refill(now time.Time, rate float64, burst int) {
	b.tokens = math.Min(float64(burst), b.tokens+now.Sub(b.refilled).Seconds()*rate)
	b.refilled = now
}

// NewRateLimiter creates a limiter allowing rate requests per second per
// client with bursts of up to burst requests.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return &RateLimiter{
		clients: make(map[string]*tokenBucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Handler is the middleware enforcing the limit.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		remaining, limit, wait, ok := rl.take(clientIP(r))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
			writeError(w, http.StatusTooManyRequests, "RateLimited", "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetLimits changes rate and burst for every client. Buckets keep their
// tokens and are capped at the new burst on their next refill.
func (rl *RateLimiter) SetLimits(rate float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.rate = rate
	rl.burst = burst
}

// take spends one token of key's bucket. wait is how long until the next
// token when the request is refused.
func (rl *RateLimiter) take(key string) (remaining, limit int, wait time.Duration, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, found := rl.clients[key]
	if !found {
		if len(rl.clients) >= maxClients {
			return 0, rl.burst, rl.tokenInterval(), false
		}
		b = &tokenBucket{tokens: float64(rl.burst), refilled: now}
		rl.clients[key] = b
	} else {
		b.refill(now, rl.rate, rl.burst)
	}

	if b.tokens < 1 {
		return 0, rl.burst, time.Duration((1 - b.tokens) / rl.rate * float64(time.Second)), false
	}
	b.tokens--
	return int(b.tokens), rl.burst, 0, true
}

func (rl *RateLimiter) tokenInterval() time.Duration {
	return time.Duration(float64(time.Second) / rl.rate)
}

// StartCleanup drops buckets idle for longer than maxIdle every interval.
// The returned function stops the goroutine.
func (rl *RateLimiter) StartCleanup(interval, maxIdle time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanup(maxIdle)
			}
		}
	}()
	return cancel
}

func (rl *RateLimiter) cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	for key, b := range rl.clients {
		if b.refilled.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// Len returns the number of tracked clients.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// retryAfterSeconds rounds d up to whole seconds, at least one.
func retryAfterSeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}

// clientIP returns the host part of RemoteAddr. Behind a proxy, chi's
// RealIP middleware has already replaced RemoteAddr with the forwarded
// address; the headers are not read here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
