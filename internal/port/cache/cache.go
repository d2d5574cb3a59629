// Package cache defines the port interface for caching.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is the port interface for key-value caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Key joins parts with "." so keys are valid for every backend,
// including NATS KV which rejects ':' and '/' outside its token grammar.
func Key(parts ...string) string {
	return strings.Join(parts, ".")
}
