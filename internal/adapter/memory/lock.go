package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

func (s *Store) tenantLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	m, ok := s.locks[id]
	if !ok {
		m = &sync.Mutex{}
		s.locks[id] = m
	}
	return m
}

// LockTenant holds the tenant's mutex while fn runs. Writes are staged on
// the tx and applied only when fn returns nil.
func (s *Store) LockTenant(ctx context.Context, scope tenant.Scope, fn func(tx database.TenantTx) error) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}

	lock := s.tenantLock(tid)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	t, ok := s.tenants[tid]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("lock tenant %s: %w", tid, domain.ErrNotFound)
	}

	tx := &memTx{s: s, tenant: t, staged: make(map[string]note.Note), inserted: make(map[string]bool)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	s          *Store
	tenant     tenant.Tenant
	subChanged bool
	staged     map[string]note.Note
	inserted   map[string]bool
	order      []string // staged ids in first-write order
}

func (tx *memTx) Tenant() *tenant.Tenant { return &tx.tenant }

func (tx *memTx) CountActiveNotes(context.Context) (int, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	n := 0
	for id, r := range tx.s.notes {
		if r.note.TenantID != tx.tenant.ID {
			continue
		}
		if staged, ok := tx.staged[id]; ok {
			if !staged.Archived {
				n++
			}
			continue
		}
		if !r.note.Archived {
			n++
		}
	}
	for id, staged := range tx.staged {
		if _, exists := tx.s.notes[id]; !exists && tx.inserted[id] && !staged.Archived {
			n++
		}
	}
	return n, nil
}

func (tx *memTx) stage(n note.Note) {
	if _, ok := tx.staged[n.ID]; !ok {
		tx.order = append(tx.order, n.ID)
	}
	tx.staged[n.ID] = cloneNote(n)
}

func (tx *memTx) InsertNote(_ context.Context, n *note.Note) error {
	tx.s.mu.RLock()
	author, ok := tx.s.users[n.AuthorID]
	tx.s.mu.RUnlock()
	if !ok || author.TenantID != tx.tenant.ID {
		return fmt.Errorf("insert note: author %q: %w", n.AuthorID, domain.ErrNotFound)
	}
	now := tx.s.now()
	n.ID = uuid.NewString()
	n.TenantID = tx.tenant.ID
	n.AuthorEmail = author.Email
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.CreatedAt = now
	n.UpdatedAt = now
	tx.inserted[n.ID] = true
	tx.stage(*n)
	return nil
}

func (tx *memTx) GetNote(_ context.Context, id string) (*note.Note, error) {
	if n, ok := tx.staged[id]; ok {
		n = cloneNote(n)
		return &n, nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	r, ok := tx.s.scopedNote(tx.tenant.ID, id)
	if !ok {
		return nil, fmt.Errorf("get note %s: %w", id, domain.ErrNotFound)
	}
	n := tx.s.withAuthor(cloneNote(r.note))
	return &n, nil
}

func (tx *memTx) SaveNote(_ context.Context, n *note.Note) error {
	cur, err := tx.GetNote(context.Background(), n.ID)
	if err != nil {
		return fmt.Errorf("save note %s: %w", n.ID, domain.ErrNotFound)
	}
	cur.Title = n.Title
	cur.Content = n.Content
	cur.Tags = slices.Clone(n.Tags)
	cur.Archived = n.Archived
	cur.UpdatedAt = tx.s.now()
	n.UpdatedAt = cur.UpdatedAt
	tx.stage(*cur)
	return nil
}

func (tx *memTx) UpdateSubscription(_ context.Context, sub tenant.Subscription) error {
	limit, err := tenant.DeriveLimit(sub.Plan)
	if err != nil {
		return err
	}
	if limit != sub.NotesLimit || (sub.Plan == tenant.PlanPro) != (sub.UpgradedAt != nil) {
		return fmt.Errorf("update subscription: inconsistent plan %s with limit %d", sub.Plan, sub.NotesLimit)
	}
	tx.tenant.Subscription = sub
	tx.tenant.UpdatedAt = tx.s.now()
	tx.subChanged = true
	return nil
}

func (tx *memTx) commit() {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.subChanged {
		if t, ok := s.tenants[tx.tenant.ID]; ok {
			t.Subscription = tx.tenant.Subscription
			t.UpdatedAt = tx.tenant.UpdatedAt
			s.tenants[t.ID] = t
		}
	}
	for _, id := range tx.order {
		n := tx.staged[id]
		n.AuthorEmail = ""
		r, ok := s.notes[id]
		if !ok {
			if !tx.inserted[id] {
				continue // deleted while the lock was held
			}
			s.seq++
			r.seq = s.seq
		}
		r.note = n
		s.notes[id] = r
	}
}
