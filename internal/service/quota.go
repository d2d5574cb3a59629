package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// QuotaService answers plan-limit questions and admits new active notes.
type QuotaService struct {
	store    database.Store
	observer Observer
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(store database.Store) *QuotaService {
	return &QuotaService{store: store, observer: nopObserver{}}
}

// SetObserver reports every admission decision to o.
func (s *QuotaService) SetObserver(o Observer) {
	s.observer = o
}

// snapshot reads the tenant and its note counts concurrently.
func (s *QuotaService) snapshot(ctx context.Context, scope tenant.Scope) (*tenant.Tenant, note.Counts, error) {
	if scope.IsZero() {
		return nil, note.Counts{}, domain.ErrMissingScope
	}
	var (
		t      *tenant.Tenant
		counts note.Counts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.store.GetTenant(gctx, scope.TenantID())
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = s.store.CountNotes(gctx, scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, note.Counts{}, fmt.Errorf("quota snapshot: %w", err)
	}
	return t, counts, nil
}

// CanCreate reports whether one more active note would be admitted right now.
// The answer is advisory; Admit makes the binding decision under the tenant lock.
func (s *QuotaService) CanCreate(ctx context.Context, scope tenant.Scope) (tenant.Decision, error) {
	t, counts, err := s.snapshot(ctx, scope)
	if err != nil {
		return tenant.Decision{}, err
	}
	return tenant.Decide(t.Subscription, counts.Active), nil
}

// Usage returns the tenant's consumption against its plan.
func (s *QuotaService) Usage(ctx context.Context, scope tenant.Scope) (tenant.Usage, error) {
	t, counts, err := s.snapshot(ctx, scope)
	if err != nil {
		return tenant.Usage{}, err
	}
	return tenant.NewUsage(t.Subscription, counts.Active, counts.Archived), nil
}

// Suggestion reports whether the tenant should be offered an upgrade.
func (s *QuotaService) Suggestion(ctx context.Context, scope tenant.Scope) (tenant.Suggestion, error) {
	u, err := s.Usage(ctx, scope)
	if err != nil {
		return tenant.Suggestion{}, err
	}
	return tenant.ShouldSuggestUpgrade(u), nil
}

// Admit decides, inside a LockTenant unit of work, whether one more active
// note fits the tenant's plan. It returns *domain.QuotaExceededError when not.
func (s *QuotaService) Admit(ctx context.Context, tx database.TenantTx) error {
	sub := tx.Tenant().Subscription
	if sub.Unlimited() {
		s.observer.NoteAdmission(ctx, sub.Plan, true)
		return nil
	}
	active, err := tx.CountActiveNotes(ctx)
	if err != nil {
		return err
	}
	d := tenant.Decide(sub, active)
	s.observer.NoteAdmission(ctx, sub.Plan, d.Allowed)
	if !d.Allowed {
		return &domain.QuotaExceededError{Current: d.Current, Limit: d.Limit}
	}
	return nil
}
