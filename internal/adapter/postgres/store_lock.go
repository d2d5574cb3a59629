package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// LockTenant runs fn inside a transaction that holds the tenant row lock.
// The row is locked with SELECT ... FOR UPDATE, so concurrent units of
// work for one tenant run one after another.
func (s *Store) LockTenant(ctx context.Context, scope tenant.Scope, fn func(tx database.TenantTx) error) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	t, err := scanTenant(tx.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1 FOR UPDATE`, tid))
	if err != nil {
		return notFoundWrap(err, "lock tenant %s", tid)
	}

	if err := fn(&tenantTx{tx: tx, tenant: &t}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type tenantTx struct {
	tx     pgx.Tx
	tenant *tenant.Tenant
}

func (t *tenantTx) Tenant() *tenant.Tenant { return t.tenant }

func (t *tenantTx) CountActiveNotes(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx,
		`SELECT count(*) FROM notes WHERE tenant_id = $1 AND NOT archived`, t.tenant.ID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active notes: %w", err)
	}
	return n, nil
}

func (t *tenantTx) InsertNote(ctx context.Context, n *note.Note) error {
	if _, ok := canonicalID(n.AuthorID); !ok {
		return fmt.Errorf("insert note: author %q: %w", n.AuthorID, domain.ErrNotFound)
	}
	now := time.Now().UTC()
	n.ID = uuid.NewString()
	n.TenantID = t.tenant.ID
	n.Tags = pgTextArray(n.Tags)
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := t.tx.Exec(ctx, `
		INSERT INTO notes (id, tenant_id, author_id, title, content, tags, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.TenantID, n.AuthorID, n.Title, n.Content, n.Tags, n.Archived, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return nil
}

func (t *tenantTx) GetNote(ctx context.Context, id string) (*note.Note, error) {
	return getNote(ctx, t.tx, t.tenant.ID, id)
}

func (t *tenantTx) SaveNote(ctx context.Context, n *note.Note) error {
	cid, ok := canonicalID(n.ID)
	if !ok {
		return fmt.Errorf("save note %s: %w", n.ID, domain.ErrNotFound)
	}
	err := t.tx.QueryRow(ctx, `
		UPDATE notes SET title = $3, content = $4, tags = $5, archived = $6, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`,
		cid, t.tenant.ID, n.Title, n.Content, pgTextArray(n.Tags), n.Archived,
	).Scan(&n.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "save note %s", n.ID)
	}
	return nil
}

// UpdateSubscription writes sub to the locked tenant. The tenants_plan_limit
// CHECK constraint rejects any plan/limit pairing DeriveLimit would not produce.
func (t *tenantTx) UpdateSubscription(ctx context.Context, sub tenant.Subscription) error {
	err := t.tx.QueryRow(ctx, `
		UPDATE tenants SET plan = $2, notes_limit = $3, upgraded_at = $4, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		t.tenant.ID, string(sub.Plan), sub.NotesLimit, sub.UpgradedAt,
	).Scan(&t.tenant.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update subscription %s", t.tenant.ID)
	}
	t.tenant.Subscription = sub
	return nil
}
