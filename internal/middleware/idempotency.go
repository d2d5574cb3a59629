package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKey    = 255
	maxIdempotencyBody   = 1 << 20 // 1 MB
)

// idempotencyEntry stores a cached HTTP response. A pending entry marks a
// request that is still being processed.
type idempotencyEntry struct {
	Pending    bool                `json:"pending,omitempty"`
	StatusCode int                 `json:"status_code"`
	Headers    map[string][]string `json:"headers"`
	Body       []byte              `json:"body"`
}

// idempotencyKVKey derives the KV key from the caller and the client key.
// Keys from different tenants or accounts never collide, and the hash keeps
// arbitrary client input inside the NATS key grammar.
func idempotencyKVKey(r *http.Request, key string) string {
	h := sha256.New()
	if p := PrincipalFromContext(r.Context()); p != nil {
		h.Write([]byte(p.TenantID + "\x00" + p.AccountID + "\x00"))
	}
	h.Write([]byte(r.Method + "\x00" + r.URL.Path + "\x00" + key))
	return "idem." + hex.EncodeToString(h.Sum(nil))
}

// Idempotency returns middleware that deduplicates POST/PUT/DELETE requests
// using the Idempotency-Key header and a NATS JetStream KV bucket. It must
// run after Auth so keys are scoped to the principal. A retried request
// replays the stored response; a duplicate that arrives while the first is
// still running gets 409. Server errors and panics release the key so the
// client can retry.
func Idempotency(kv jetstream.KeyValue) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only apply to mutating methods
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(headerIdempotencyKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeError(w, http.StatusBadRequest, "ValidationFailed", "Idempotency-Key must be at most 255 characters")
				return
			}
			ctx := r.Context()
			kvKey := idempotencyKVKey(r, key)

			entry, err := kv.Get(ctx, kvKey)
			switch {
			case err == nil:
				var cached idempotencyEntry
				if err := json.Unmarshal(entry.Value(), &cached); err != nil {
					slog.WarnContext(ctx, "idempotency: corrupt cache entry", "key", key)
					_ = kv.Delete(ctx, kvKey)
					break
				}
				if cached.Pending {
					writeError(w, http.StatusConflict, "Conflict", "a request with this Idempotency-Key is still in progress")
					return
				}
				replay(w, &cached)
				return
			case !errors.Is(err, jetstream.ErrKeyNotFound):
				slog.WarnContext(ctx, "idempotency: lookup failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			// Reserve the key so a concurrent duplicate cannot run the handler too.
			pending, _ := json.Marshal(idempotencyEntry{Pending: true})
			if _, err := kv.Create(ctx, kvKey, pending); err != nil {
				if errors.Is(err, jetstream.ErrKeyExists) {
					writeError(w, http.StatusConflict, "Conflict", "a request with this Idempotency-Key is still in progress")
					return
				}
				slog.WarnContext(ctx, "idempotency: reserve failed", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			rec := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			// The client may have gone away; the reservation must still be resolved.
			release := func() {
				ctx := context.WithoutCancel(ctx)
				if err := kv.Delete(ctx, kvKey); err != nil {
					slog.WarnContext(ctx, "idempotency: release failed", "key", key, "error", err)
				}
			}
			completed := false
			defer func() {
				if !completed {
					release()
				}
			}()
			next.ServeHTTP(rec, r)
			completed = true

			ctx = context.WithoutCancel(ctx)
			if rec.statusCode >= http.StatusInternalServerError || rec.body.Len() > maxIdempotencyBody {
				release()
				return
			}
			data, err := json.Marshal(idempotencyEntry{
				StatusCode: rec.statusCode,
				Headers:    w.Header().Clone(),
				Body:       rec.body.Bytes(),
			})
			if err == nil {
				_, err = kv.Put(ctx, kvKey, data)
			}
			if err != nil {
				slog.WarnContext(ctx, "idempotency: failed to store response", "key", key, "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, cached *idempotencyEntry) {
	for k, vals := range cached.Headers {
		if k == headerRequestID {
			continue
		}
		w.Header()[k] = vals
	}
	w.Header().Set(headerReplayed, "true")
	w.WriteHeader(cached.StatusCode)
	_, _ = w.Write(cached.Body)
}

// responseRecorder wraps http.ResponseWriter to capture the response.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
