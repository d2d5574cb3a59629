package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// SubscriptionService changes tenant plans and reports plan information.
type SubscriptionService struct {
	store    database.Store
	quota    *QuotaService
	stats    *StatsService
	events   *EventPublisher
	observer Observer
	now      func() time.Time
}

// NewSubscriptionService creates a new SubscriptionService.
func NewSubscriptionService(store database.Store, quota *QuotaService, stats *StatsService, events *EventPublisher) *SubscriptionService {
	return &SubscriptionService{
		store:    store,
		quota:    quota,
		stats:    stats,
		events:   events,
		observer: nopObserver{},
		now:      time.Now,
	}
}

// SetObserver reports plan transitions to o.
func (s *SubscriptionService) SetObserver(o Observer) {
	s.observer = o
}

// SetPlan moves the tenant to target. The read, the downgrade guard and
// the write run under the tenant lock, so admissions that follow observe
// the new limit.
func (s *SubscriptionService) SetPlan(ctx context.Context, scope tenant.Scope, target tenant.Plan) (_ tenant.Subscription, err error) {
	ctx, span := startSpan(ctx, "SubscriptionService.SetPlan", scope.TenantID())
	defer func() { endSpan(span, err) }()

	if !target.Valid() {
		return tenant.Subscription{}, domain.Invalid("plan", "must be either free or pro")
	}

	var (
		from tenant.Plan
		sub  tenant.Subscription
	)
	err = s.store.LockTenant(ctx, scope, func(tx database.TenantTx) error {
		cur := tx.Tenant().Subscription
		from = cur.Plan
		if cur.Plan == target {
			return domain.ErrAlreadyOnPlan
		}

		if target == tenant.PlanFree {
			active, err := tx.CountActiveNotes(ctx)
			if err != nil {
				return err
			}
			if ok, _ := tenant.CheckDowngrade(active); !ok {
				return &domain.QuotaExceededError{Current: active, Limit: tenant.FreeNotesLimit}
			}
		}

		next, err := tenant.NewSubscription(target, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateSubscription(ctx, next); err != nil {
			return err
		}
		sub = next
		return nil
	})
	if err != nil {
		return tenant.Subscription{}, fmt.Errorf("set plan %s: %w", target, err)
	}

	slog.InfoContext(ctx, "tenant plan changed", "tenant_id", scope.TenantID(), "from", from, "to", target)
	s.observer.PlanChanged(ctx, from, target)
	s.stats.Invalidate(ctx, scope.TenantID())
	return sub, nil
}

// Upgrade moves the principal's tenant to pro.
func (s *SubscriptionService) Upgrade(ctx context.Context, p *user.Principal) (tenant.Subscription, error) {
	return s.change(ctx, p, tenant.PlanPro)
}

// Downgrade moves the principal's tenant to free.
func (s *SubscriptionService) Downgrade(ctx context.Context, p *user.Principal) (tenant.Subscription, error) {
	return s.change(ctx, p, tenant.PlanFree)
}

func (s *SubscriptionService) change(ctx context.Context, p *user.Principal, target tenant.Plan) (tenant.Subscription, error) {
	if !p.IsAdmin() {
		return tenant.Subscription{}, domain.ErrForbidden
	}
	from := p.Tenant.Subscription.Plan
	sub, err := s.SetPlan(ctx, p.Scope(), target)
	if err != nil {
		return tenant.Subscription{}, err
	}
	s.events.Publish(ctx, event.TypeTenantPlanChanged, p.TenantID, p.AccountID, event.PlanChangedPayload{
		From: string(from),
		To:   string(target),
	})
	return sub, nil
}

// PlansView is the plan catalogue with the caller's current position.
type PlansView struct {
	Plans       map[tenant.Plan]tenant.PlanInfo `json:"plans"`
	CurrentPlan tenant.Plan                     `json:"current_plan"`
	Usage       tenant.Usage                    `json:"usage"`
}

// Plans returns the catalogue and the tenant's usage.
func (s *SubscriptionService) Plans(ctx context.Context, scope tenant.Scope) (*PlansView, error) {
	u, err := s.quota.Usage(ctx, scope)
	if err != nil {
		return nil, err
	}
	return &PlansView{Plans: tenant.Catalogue(), CurrentPlan: u.Plan, Usage: u}, nil
}
