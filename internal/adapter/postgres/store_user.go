package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
)

const userColumns = `id, email, password_hash, role, tenant_id, active, created_at, updated_at`

func scanUser(row scannable) (user.User, error) {
	var u user.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.TenantID, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	u.Role = user.Role(role)
	return u, err
}

// CreateUser inserts u into the scoped tenant and fills ID, TenantID and timestamps.
func (s *Store) CreateUser(ctx context.Context, scope tenant.Scope, u *user.User) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.TenantID = tid
	u.Email = user.NormalizeEmail(u.Email)
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, tenant_id, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.PasswordHash, string(u.Role), u.TenantID, u.Active, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return conflictWrap(err, "create user %s", u.Email)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, scope tenant.Scope, id string) (*user.User, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	cid, ok := canonicalID(id)
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2`, cid, tid))
	if err != nil {
		return nil, notFoundWrap(err, "get user %s", id)
	}
	return &u, nil
}

// GetUserByEmail is the single unscoped account lookup, used before a tenant is known.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email)))
	if err != nil {
		return nil, notFoundWrap(err, "get user by email")
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, scope tenant.Scope) ([]user.User, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE tenant_id = $1 ORDER BY created_at DESC`, tid)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return orEmpty(users), rows.Err()
}

func (s *Store) CountActiveUsers(ctx context.Context, scope tenant.Scope) (int, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM users WHERE tenant_id = $1 AND active`, tid).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, scope tenant.Scope, id, hash string) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	cid, ok := canonicalID(id)
	if !ok {
		return fmt.Errorf("update password %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password_hash = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		cid, tid, hash)
	return execExpectOne(tag, err, "update password %s", id)
}

func (s *Store) SetUserActive(ctx context.Context, scope tenant.Scope, id string, active bool) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	cid, ok := canonicalID(id)
	if !ok {
		return fmt.Errorf("set user active %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET active = $3, updated_at = now() WHERE id = $1 AND tenant_id = $2`,
		cid, tid, active)
	return execExpectOne(tag, err, "set user active %s", id)
}
