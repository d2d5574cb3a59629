package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

const tenantColumns = `id, name, slug, plan, notes_limit, upgraded_at, active, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	var plan string
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &plan, &t.Subscription.NotesLimit,
		&t.Subscription.UpgradedAt, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	t.Subscription.Plan = tenant.Plan(plan)
	return t, err
}

// CreateTenant inserts a new active tenant on the free plan.
func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	sub, err := tenant.NewSubscription(tenant.PlanFree, time.Now())
	if err != nil {
		return nil, err
	}
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`INSERT INTO tenants (id, name, slug, plan, notes_limit, upgraded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+tenantColumns,
		uuid.NewString(), req.Name, req.Slug, string(sub.Plan), sub.NotesLimit, sub.UpgradedAt))
	if err != nil {
		return nil, conflictWrap(err, "create tenant %s", req.Slug)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id string) (*tenant.Tenant, error) {
	cid, ok := canonicalID(id)
	if !ok {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, cid))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %s", id)
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	t, err := scanTenant(s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, tenant.NormalizeSlug(slug)))
	if err != nil {
		return nil, notFoundWrap(err, "get tenant by slug %s", slug)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return orEmpty(tenants), rows.Err()
}

func (s *Store) SetTenantActive(ctx context.Context, id string, active bool) error {
	cid, ok := canonicalID(id)
	if !ok {
		return fmt.Errorf("set tenant active %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET active = $2, updated_at = now() WHERE id = $1`, cid, active)
	return execExpectOne(tag, err, "set tenant active %s", id)
}
