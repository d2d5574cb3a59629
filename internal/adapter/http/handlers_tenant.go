package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/service"
)

type tenantInfo struct {
	Tenant tenant.Summary `json:"tenant"`
	Usage  tenant.Usage   `json:"usage"`
}

// GetTenant handles GET /api/v1/tenants/{slug}. The route is guarded by
// middleware.RequireTenantSlug, so the slug always names the caller's tenant.
func (h *Handlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (*tenantInfo, error) {
		usage, err := h.Quota.Usage(ctx, p.Scope())
		if err != nil {
			return nil, err
		}
		return &tenantInfo{Tenant: p.Tenant.Summary(), Usage: usage}, nil
	})(w, r)
}

// TenantStats handles GET /api/v1/tenants/{slug}/stats
func (h *Handlers) TenantStats(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (*service.Stats, error) {
		return h.Tenants.Stats(ctx, p.Tenant)
	})(w, r)
}
