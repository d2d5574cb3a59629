package hashing

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestPoolLimitsConcurrency(t *testing.T) {
	const limit = 3
	const workers = 10
	pool := NewPool(limit, bcrypt.MinCost)

	var running atomic.Int32
	var maxSeen atomic.Int32

	ctx := context.Background()
	done := make(chan struct{}, workers)

	for range workers {
		go func() {
			defer func() { done <- struct{}{} }()
			err := pool.run(ctx, func() error {
				cur := running.Add(1)
				for {
					old := maxSeen.Load()
					if cur <= old || maxSeen.CompareAndSwap(old, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}

	for range workers {
		<-done
	}

	if m := maxSeen.Load(); m > limit {
		t.Errorf("max concurrent = %d, want <= %d", m, limit)
	}
}

func TestPoolCancelledWhileWaiting(t *testing.T) {
	pool := NewPool(1, bcrypt.MinCost)
	release := make(chan struct{})
	started := make(chan struct{})

	go func() {
		_ = pool.run(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Hash(ctx, "password"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %v, want deadline exceeded", err)
	}
	close(release)
}

func TestHashAndCompare(t *testing.T) {
	pool := NewPool(2, bcrypt.MinCost)
	ctx := context.Background()

	hash, err := pool.Hash(ctx, "s3cret-pass")
	if err != nil {
		t.Fatal(err)
	}
	if cost, _ := bcrypt.Cost([]byte(hash)); cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
	if err := pool.Compare(ctx, hash, "s3cret-pass"); err != nil {
		t.Errorf("matching password: %v", err)
	}
	if err := pool.Compare(ctx, hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Errorf("wrong password: got %v, want ErrMismatch", err)
	}
}

func TestNilPoolRunsDirectly(t *testing.T) {
	var pool *Pool
	if err := pool.Compare(context.Background(), "not-a-hash", "x"); err == nil || errors.Is(err, ErrMismatch) {
		t.Errorf("malformed hash should surface the bcrypt error, got %v", err)
	}
}
