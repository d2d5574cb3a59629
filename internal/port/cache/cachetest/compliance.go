// Package cachetest provides a behavioural test suite shared by cache adapters.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/Strob0t/NoteVault/internal/port/cache"
)

// Run runs the standard compliance test suite against any Cache implementation.
func Run(t *testing.T, c cache.Cache) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		key := cache.Key("stats", "tenant-a")
		if err := c.Set(ctx, key, []byte(`{"active_notes":2}`), time.Minute); err != nil {
			t.Fatal(err)
		}
		val, found, err := c.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after Set")
		}
		if string(val) != `{"active_notes":2}` {
			t.Fatalf("unexpected value %s", val)
		}
	})

	t.Run("GetMiss", func(t *testing.T) {
		_, found, err := c.Get(ctx, cache.Key("stats", "nobody"))
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss for nonexistent key")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		key := cache.Key("stats", "tenant-b")
		_ = c.Set(ctx, key, []byte("v"), time.Minute)
		if err := c.Delete(ctx, key); err != nil {
			t.Fatal(err)
		}
		_, found, err := c.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if found {
			t.Fatal("expected miss after Delete")
		}
	})

	t.Run("DeleteNonexistent", func(t *testing.T) {
		if err := c.Delete(ctx, cache.Key("never", "existed")); err != nil {
			t.Fatal("Delete of nonexistent key should not error")
		}
	})

	t.Run("TenantKeysAreDistinct", func(t *testing.T) {
		_ = c.Set(ctx, cache.Key("stats", "t1"), []byte("one"), time.Minute)
		_ = c.Set(ctx, cache.Key("stats", "t2"), []byte("two"), time.Minute)
		val, _, _ := c.Get(ctx, cache.Key("stats", "t1"))
		if string(val) != "one" {
			t.Fatalf("tenant t1 read %q", val)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := cache.Key("idem", "abc")
		_ = c.Set(ctx, key, []byte("v1"), time.Minute)
		_ = c.Set(ctx, key, []byte("v2"), time.Minute)
		val, found, err := c.Get(ctx, key)
		if err != nil {
			t.Fatal(err)
		}
		if !found {
			t.Fatal("expected found after overwrite")
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %s", val)
		}
	})
}
