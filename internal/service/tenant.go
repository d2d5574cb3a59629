package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// TenantService manages tenant lifecycle and tenant-level reporting.
type TenantService struct {
	store database.Store
	quota *QuotaService
}

// NewTenantService creates a new TenantService.
func NewTenantService(store database.Store, quota *QuotaService) *TenantService {
	return &TenantService{store: store, quota: quota}
}

// Create validates and creates a new tenant on the free plan.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t, err := s.store.CreateTenant(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	slog.InfoContext(ctx, "tenant created", "tenant_id", t.ID, "slug", t.Slug)
	return t, nil
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	return s.store.GetTenant(ctx, id)
}

// GetBySlug returns a tenant by slug.
func (s *TenantService) GetBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	return s.store.GetTenantBySlug(ctx, slug)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// SetActive suspends or resumes a tenant. Suspended tenants fail login and
// every request made with an existing token.
func (s *TenantService) SetActive(ctx context.Context, id string, active bool) error {
	if err := s.store.SetTenantActive(ctx, id, active); err != nil {
		return fmt.Errorf("set tenant active: %w", err)
	}
	return nil
}

// Stats is the administrative view of a tenant.
type Stats struct {
	Tenant         tenant.Summary `json:"tenant"`
	ActiveAccounts int            `json:"active_accounts"`
	Usage          tenant.Usage   `json:"usage"`
	RecentNotes    []note.Recent  `json:"recent_notes"`
}

// Stats gathers account, usage and recent-note figures for t.
func (s *TenantService) Stats(ctx context.Context, t *tenant.Tenant) (*Stats, error) {
	scope := t.Scope()
	out := &Stats{Tenant: t.Summary()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.ActiveAccounts, err = s.store.CountActiveUsers(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		out.Usage, err = s.quota.Usage(gctx, scope)
		return err
	})
	g.Go(func() (err error) {
		out.RecentNotes, err = s.store.RecentNotes(gctx, scope, note.RecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("tenant stats: %w", err)
	}
	return out, nil
}
