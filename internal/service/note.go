package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// NoteService implements note operations for an authenticated principal.
// Every store call is bound to the principal's tenant scope.
type NoteService struct {
	store  database.Store
	quota  *QuotaService
	stats  *StatsService
	events *EventPublisher
}

// NewNoteService creates a new NoteService.
func NewNoteService(store database.Store, quota *QuotaService, stats *StatsService, events *EventPublisher) *NoteService {
	return &NoteService{store: store, quota: quota, stats: stats, events: events}
}

// Create admits and inserts a note in one tenant-locked unit of work.
func (s *NoteService) Create(ctx context.Context, p *user.Principal, req note.CreateRequest) (_ *note.Note, err error) {
	ctx, span := startSpan(ctx, "NoteService.Create", p.TenantID)
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n := &note.Note{
		AuthorID: p.AccountID,
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
	}
	err = s.store.LockTenant(ctx, p.Scope(), func(tx database.TenantTx) error {
		if err := s.quota.Admit(ctx, tx); err != nil {
			return err
		}
		return tx.InsertNote(ctx, n)
	})
	if err != nil {
		return nil, fmt.Errorf("create note: %w", err)
	}
	n.AuthorEmail = p.Email

	s.written(ctx, p, event.TypeNoteCreated, n)
	return n, nil
}

// List returns one page of the tenant's notes.
func (s *NoteService) List(ctx context.Context, p *user.Principal, f note.ListFilter) (*note.ListResult, error) {
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	notes, total, err := s.store.ListNotes(ctx, p.Scope(), f)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return &note.ListResult{
		Notes:      notes,
		Pagination: note.NewPagination(f, total),
		Filters:    note.Filters{Search: f.Search, Tags: f.Tags, Archived: f.Archived},
	}, nil
}

// Get returns one note of the tenant.
func (s *NoteService) Get(ctx context.Context, p *user.Principal, id string) (*note.Note, error) {
	return s.store.GetNote(ctx, p.Scope(), id)
}

// Update applies a partial update under the tenant lock, so it serializes
// with archive toggles. Un-archiving consumes quota.
func (s *NoteService) Update(ctx context.Context, p *user.Principal, id string, req note.UpdateRequest) (*note.Note, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !req.HasContentChanges() && req.Archived == nil {
		return nil, domain.Invalid("body", "at least one field must be provided")
	}

	n, err := s.saveLocked(ctx, p, id, func(n *note.Note) {
		req.Apply(n)
		if req.Archived != nil {
			n.Archived = *req.Archived
		}
	})
	if err != nil {
		return nil, fmt.Errorf("update note: %w", err)
	}

	s.written(ctx, p, event.TypeNoteUpdated, n)
	return n, nil
}

// ToggleArchive flips the archived flag. Un-archiving is admitted against
// the quota like a creation.
func (s *NoteService) ToggleArchive(ctx context.Context, p *user.Principal, id string) (*note.Note, error) {
	n, err := s.saveLocked(ctx, p, id, func(n *note.Note) {
		n.Archived = !n.Archived
	})
	if err != nil {
		return nil, fmt.Errorf("toggle archive: %w", err)
	}
	s.written(ctx, p, event.TypeNoteArchived, n)
	return n, nil
}

// saveLocked reads the note under the tenant lock, applies mutate and
// admits the result if it turns an archived note active.
func (s *NoteService) saveLocked(ctx context.Context, p *user.Principal, id string, mutate func(*note.Note)) (_ *note.Note, err error) {
	ctx, span := startSpan(ctx, "NoteService.saveLocked", p.TenantID)
	defer func() { endSpan(span, err) }()

	var out *note.Note
	err = s.store.LockTenant(ctx, p.Scope(), func(tx database.TenantTx) error {
		n, err := tx.GetNote(ctx, id)
		if err != nil {
			return err
		}
		wasArchived := n.Archived
		mutate(n)
		if wasArchived && !n.Archived {
			if err := s.quota.Admit(ctx, tx); err != nil {
				return err
			}
		}
		if err := tx.SaveNote(ctx, n); err != nil {
			return err
		}
		out = n
		return nil
	})
	return out, err
}

// Delete removes a note permanently.
func (s *NoteService) Delete(ctx context.Context, p *user.Principal, id string) error {
	if err := s.store.DeleteNote(ctx, p.Scope(), id); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	s.written(ctx, p, event.TypeNoteDeleted, &note.Note{ID: id})
	return nil
}

// Summary returns the tenant's note statistics.
func (s *NoteService) Summary(ctx context.Context, p *user.Principal) (*note.Summary, error) {
	return s.stats.Summary(ctx, p.Scope())
}

func (s *NoteService) written(ctx context.Context, p *user.Principal, typ event.Type, n *note.Note) {
	s.stats.Invalidate(ctx, p.TenantID)
	s.events.Publish(ctx, typ, p.TenantID, p.AccountID, event.NotePayload{NoteID: n.ID, Archived: n.Archived})
}
