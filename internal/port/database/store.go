// Package database defines the database store port (interface).
//
// Every method that touches tenant-owned data takes a tenant.Scope and
// returns domain.ErrMissingScope for the zero Scope. The only unscoped
// lookups are GetUserByEmail (login) and the tenant registry reads used
// by the access guard and administrative tooling.
package database

import (
	"context"

	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
)

// Store is the port interface for database operations.
type Store interface {
	TenantStore
	AccountStore
	CredentialStore
	NoteStore
	Locker

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// TenantStore manages tenants.
type TenantStore interface {
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	SetTenantActive(ctx context.Context, id string, active bool) error
}

// AccountStore manages accounts within a tenant.
type AccountStore interface {
	// CreateUser inserts u into the scoped tenant. u.PasswordHash must be set.
	// A duplicate email anywhere in the deployment yields domain.ErrConflict.
	CreateUser(ctx context.Context, scope tenant.Scope, u *user.User) error
	GetUser(ctx context.Context, scope tenant.Scope, id string) (*user.User, error)
	ListUsers(ctx context.Context, scope tenant.Scope) ([]user.User, error)
	CountActiveUsers(ctx context.Context, scope tenant.Scope) (int, error)
	UpdatePasswordHash(ctx context.Context, scope tenant.Scope, id, hash string) error
	SetUserActive(ctx context.Context, scope tenant.Scope, id string, active bool) error
}

// CredentialStore resolves an identity before any tenant is known.
type CredentialStore interface {
	// GetUserByEmail returns the account with the normalized email,
	// active or not, or domain.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

// NoteStore reads and deletes notes. Creation and edits go through Locker so
// they serialize per tenant and can be admitted against the quota.
type NoteStore interface {
	GetNote(ctx context.Context, scope tenant.Scope, id string) (*note.Note, error)
	ListNotes(ctx context.Context, scope tenant.Scope, f note.ListFilter) ([]note.Note, int, error)
	DeleteNote(ctx context.Context, scope tenant.Scope, id string) error
	CountNotes(ctx context.Context, scope tenant.Scope) (note.Counts, error)
	RecentNotes(ctx context.Context, scope tenant.Scope, limit int) ([]note.Recent, error)
	TopTags(ctx context.Context, scope tenant.Scope, limit int) ([]note.TagCount, error)
}

// Locker runs fn while holding the tenant's exclusive lock. Work done
// through tx commits when fn returns nil and is discarded otherwise.
// Concurrent calls for the same tenant are serialized; different tenants
// never contend.
type Locker interface {
	LockTenant(ctx context.Context, scope tenant.Scope, fn func(tx TenantTx) error) error
}

// TenantTx is the unit of work handed to LockTenant callbacks.
type TenantTx interface {
	// Tenant returns the tenant row as read under the lock.
	Tenant() *tenant.Tenant
	CountActiveNotes(ctx context.Context) (int, error)
	// InsertNote assigns ID and timestamps and stores n under the locked tenant.
	InsertNote(ctx context.Context, n *note.Note) error
	GetNote(ctx context.Context, id string) (*note.Note, error)
	// SaveNote writes every mutable field of n, including Archived.
	SaveNote(ctx context.Context, n *note.Note) error
	UpdateSubscription(ctx context.Context, sub tenant.Subscription) error
}
