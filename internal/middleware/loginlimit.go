package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// WindowResult is the outcome of one fixed-window attempt.
type WindowResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// WindowLimiter counts attempts per key in fixed windows. The Redis
// adapter shares counters across instances; MemoryWindow keeps them local.
type WindowLimiter interface {
	Allow(ctx context.Context, key string) (WindowResult, error)
}

// LoginLimit returns middleware that applies l to each client IP. A limiter
// that fails (for example an unreachable Redis) lets the request through.
func LoginLimit(l WindowLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), "login:"+clientIP(r))
			if err != nil {
				slog.WarnContext(r.Context(), "login limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.RetryAfter)))
				writeError(w, http.StatusTooManyRequests, "RateLimited", "too many login attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// MemoryWindow is an in-process WindowLimiter.
type MemoryWindow struct {
	mu       sync.Mutex
	limit    int
	window   time.Duration
	counters map[string]*windowCounter
	now      func() time.Time
}

// NewMemoryWindow allows limit attempts per key in each window.
func NewMemoryWindow(limit int, window time.Duration) *MemoryWindow {
	return &MemoryWindow{
		limit:    limit,
		window:   window,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Allow records one attempt for key.
func (m *MemoryWindow) Allow(_ context.Context, key string) (WindowResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	c, ok := m.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(m.window)}
		m.counters[key] = c
	}
	c.count++

	if c.count > m.limit {
		return WindowResult{RetryAfter: c.resetAt.Sub(now)}, nil
	}
	return WindowResult{Allowed: true, Remaining: m.limit - c.count}, nil
}

// StartCleanup removes expired windows every interval until the returned
// function is called.
func (m *MemoryWindow) StartCleanup(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.cleanup()
			}
		}
	}()
	return cancel
}

func (m *MemoryWindow) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, c := range m.counters {
		if !now.Before(c.resetAt) {
			delete(m.counters, k)
		}
	}
}
