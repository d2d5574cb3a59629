package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/service"
)

// Usage handles GET /api/v1/subscription/usage
func (h *Handlers) Usage(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (tenant.Usage, error) {
		return h.Quota.Usage(ctx, p.Scope())
	})(w, r)
}

// Plans handles GET /api/v1/subscription/plans
func (h *Handlers) Plans(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (*service.PlansView, error) {
		return h.Subscriptions.Plans(ctx, p.Scope())
	})(w, r)
}

// CheckLimits handles GET /api/v1/subscription/check-limits
func (h *Handlers) CheckLimits(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (tenant.Decision, error) {
		return h.Quota.CanCreate(ctx, p.Scope())
	})(w, r)
}

// UpgradeSuggestion handles GET /api/v1/subscription/upgrade-suggestion
func (h *Handlers) UpgradeSuggestion(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (tenant.Suggestion, error) {
		return h.Quota.Suggestion(ctx, p.Scope())
	})(w, r)
}

// Upgrade handles POST /api/v1/subscription/upgrade and
// POST /api/v1/tenants/{slug}/upgrade
func (h *Handlers) Upgrade(w http.ResponseWriter, r *http.Request) {
	handleView(h, h.Subscriptions.Upgrade)(w, r)
}

// Downgrade handles POST /api/v1/subscription/downgrade and
// POST /api/v1/tenants/{slug}/downgrade
func (h *Handlers) Downgrade(w http.ResponseWriter, r *http.Request) {
	handleView(h, h.Subscriptions.Downgrade)(w, r)
}
