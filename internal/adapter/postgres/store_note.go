package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const noteSelect = `SELECT n.id, n.tenant_id, n.author_id, COALESCE(u.email, ''), n.title, n.content,
	n.tags, n.archived, n.created_at, n.updated_at
	FROM notes n LEFT JOIN users u ON u.id = n.author_id`

func scanNote(row scannable) (note.Note, error) {
	var n note.Note
	err := row.Scan(&n.ID, &n.TenantID, &n.AuthorID, &n.AuthorEmail, &n.Title, &n.Content,
		&n.Tags, &n.Archived, &n.CreatedAt, &n.UpdatedAt)
	n.Tags = orEmpty(n.Tags)
	return n, err
}

func getNote(ctx context.Context, q querier, tenantID, id string) (*note.Note, error) {
	cid, ok := canonicalID(id)
	if !ok {
		return nil, fmt.Errorf("get note %s: %w", id, domain.ErrNotFound)
	}
	n, err := scanNote(q.QueryRow(ctx, noteSelect+` WHERE n.id = $1 AND n.tenant_id = $2`, cid, tenantID))
	if err != nil {
		return nil, notFoundWrap(err, "get note %s", id)
	}
	return &n, nil
}

func (s *Store) GetNote(ctx context.Context, scope tenant.Scope, id string) (*note.Note, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	return getNote(ctx, s.pool, tid, id)
}

// noteFilter builds the WHERE clause for a listing. The tenant predicate is
// always the first condition and every other condition is ANDed with it.
func noteFilter(tenantID string, f note.ListFilter) (string, []any) {
	args := []any{tenantID, f.Archived}
	conds := []string{"n.tenant_id = $1", "n.archived = $2"}

	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		p := len(args)
		conds = append(conds, fmt.Sprintf("(n.title ILIKE $%d OR n.content ILIKE $%d)", p, p))
	}
	if len(f.Tags) > 0 {
		args = append(args, f.Tags)
		conds = append(conds, fmt.Sprintf("n.tags && $%d::text[]", len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListNotes returns one page of matching notes, newest first, and the total match count.
func (s *Store) ListNotes(ctx context.Context, scope tenant.Scope, f note.ListFilter) ([]note.Note, int, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, 0, err
	}
	where, args := noteFilter(tid, f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notes n`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	args = append(args, f.PageSize, f.Offset())
	query := fmt.Sprintf("%s%s ORDER BY n.created_at DESC, n.id DESC LIMIT $%d OFFSET $%d",
		noteSelect, where, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var notes []note.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}
	return orEmpty(notes), total, nil
}

func (s *Store) DeleteNote(ctx context.Context, scope tenant.Scope, id string) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	cid, ok := canonicalID(id)
	if !ok {
		return fmt.Errorf("delete note %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM notes WHERE id = $1 AND tenant_id = $2`, cid, tid)
	return execExpectOne(tag, err, "delete note %s", id)
}

func (s *Store) CountNotes(ctx context.Context, scope tenant.Scope) (note.Counts, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return note.Counts{}, err
	}
	var c note.Counts
	err = s.pool.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE NOT archived), count(*) FILTER (WHERE archived)
		FROM notes WHERE tenant_id = $1`, tid).Scan(&c.Active, &c.Archived)
	if err != nil {
		return note.Counts{}, fmt.Errorf("count notes: %w", err)
	}
	return c, nil
}

func (s *Store) RecentNotes(ctx context.Context, scope tenant.Scope, limit int) ([]note.Recent, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, created_at FROM notes
		WHERE tenant_id = $1 AND NOT archived
		ORDER BY created_at DESC, id DESC LIMIT $2`, tid, limit)
	if err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	defer rows.Close()

	var out []note.Recent
	for rows.Next() {
		var r note.Recent
		if err := rows.Scan(&r.ID, &r.Title, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent note: %w", err)
		}
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) TopTags(ctx context.Context, scope tenant.Scope, limit int) ([]note.TagCount, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT tag, count(*) FROM notes, unnest(tags) AS tag
		WHERE tenant_id = $1 AND NOT archived
		GROUP BY tag ORDER BY count(*) DESC, tag LIMIT $2`, tid, limit)
	if err != nil {
		return nil, fmt.Errorf("top tags: %w", err)
	}
	defer rows.Close()

	var out []note.TagCount
	for rows.Next() {
		var tc note.TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scan tag count: %w", err)
		}
		out = append(out, tc)
	}
	return orEmpty(out), rows.Err()
}
