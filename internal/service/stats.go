package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/port/cache"
	"github.com/Strob0t/NoteVault/internal/port/database"
	"github.com/Strob0t/NoteVault/internal/port/messagequeue"
)

// StatsService computes note summaries and keeps them in a short-lived
// read cache. Writes call Invalidate; a stale entry lives at most ttl.
type StatsService struct {
	store database.Store
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewStatsService creates a StatsService. c may be nil to disable caching.
func NewStatsService(store database.Store, c cache.Cache, ttl time.Duration) *StatsService {
	return &StatsService{store: store, cache: c, ttl: ttl}
}

func statsKey(tenantID string) string {
	return cache.Key("stats", tenantID)
}

// Summary returns counts, subscription, recent notes and top tags for scope.
func (s *StatsService) Summary(ctx context.Context, scope tenant.Scope) (*note.Summary, error) {
	key := statsKey(scope.TenantID())

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var sum note.Summary
			if err := json.Unmarshal(data, &sum); err == nil {
				return &sum, nil
			}
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// Shared by every waiter, so it must not die with the first caller.
		loadCtx := context.WithoutCancel(ctx)
		sum, err := s.load(loadCtx, scope)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if data, err := json.Marshal(sum); err == nil {
				if err := s.cache.Set(loadCtx, key, data, s.ttl); err != nil {
					slog.WarnContext(ctx, "stats cache set failed", "error", err)
				}
			}
		}
		return sum, nil
	})
	if err != nil {
		return nil, err
	}
	sum := *v.(*note.Summary)
	return &sum, nil
}

func (s *StatsService) load(ctx context.Context, scope tenant.Scope) (*note.Summary, error) {
	var (
		t      *tenant.Tenant
		counts note.Counts
		recent []note.Recent
		tags   []note.TagCount
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		t, err = s.store.GetTenant(gctx, scope.TenantID())
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.store.CountNotes(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.store.RecentNotes(gctx, scope, note.RecentLimit)
		return err
	})
	g.Go(func() (err error) {
		tags, err = s.store.TopTags(gctx, scope, note.TopTagsLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return &note.Summary{
		ActiveNotes:   counts.Active,
		ArchivedNotes: counts.Archived,
		Subscription:  t.Subscription,
		RecentNotes:   recent,
		TopTags:       tags,
	}, nil
}

// Invalidate drops the cached summary of a tenant.
func (s *StatsService) Invalidate(ctx context.Context, tenantID string) {
	if s == nil || s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsKey(tenantID)); err != nil {
		slog.WarnContext(ctx, "stats cache invalidate failed", "tenant_id", tenantID, "error", err)
	}
}

// Subscribe drops cached summaries when any instance publishes a note or
// plan event, so per-process L1 entries do not outlive a peer's write.
// The returned function cancels every subscription.
func (s *StatsService) Subscribe(ctx context.Context, q messagequeue.Queue) (func(), error) {
	handler := func(ctx context.Context, _ string, data []byte) error {
		var env event.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode envelope: %w", err)
		}
		s.Invalidate(ctx, env.TenantID)
		return nil
	}

	var cancels []func()
	cancelAll := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, subject := range []string{messagequeue.SubjectNotesAll, messagequeue.SubjectTenantsAll} {
		cancel, err := q.Subscribe(ctx, subject, handler)
		if err != nil {
			cancelAll()
			return nil, fmt.Errorf("subscribe %s: %w", subject, err)
		}
		cancels = append(cancels, cancel)
	}
	return cancelAll, nil
}
