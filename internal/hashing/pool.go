// Package hashing runs bcrypt operations under a shared concurrency limit.
package hashing

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// ErrMismatch is returned by Compare when the password does not match the hash.
var ErrMismatch = errors.New("password mismatch")

// Pool limits concurrent bcrypt work using a weighted semaphore. Every
// hash and compare in the process goes through one shared Pool so a burst
// of logins cannot occupy every CPU.
type Pool struct {
	sem  *semaphore.Weighted
	cost int
}

// NewPool creates a Pool that allows at most limit concurrent operations
// and hashes with the given bcrypt cost.
func NewPool(limit, cost int) *Pool {
	if limit < 1 {
		limit = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(limit)), cost: cost}
}

// run acquires a slot, runs fn, and releases the slot. It returns
// ctx.Err() if the context is cancelled while waiting.
// A nil pool runs fn directly.
func (p *Pool) run(ctx context.Context, fn func() error) error {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn()
}

// Hash returns the bcrypt hash of plaintext.
func (p *Pool) Hash(ctx context.Context, plaintext string) (string, error) {
	cost := bcrypt.DefaultCost
	if p != nil {
		cost = p.cost
	}
	var out []byte
	err := p.run(ctx, func() error {
		var err error
		out, err = bcrypt.GenerateFromPassword([]byte(plaintext), cost)
		return err
	})
	return string(out), err
}

// Compare checks plaintext against hash. It returns ErrMismatch when the
// password is wrong and the underlying error for anything else.
func (p *Pool) Compare(ctx context.Context, hash, plaintext string) error {
	return p.run(ctx, func() error {
		err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return err
	})
}
