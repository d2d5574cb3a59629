// Package memory provides an in-process database.Store. It backs the
// "memory" storage driver and the service tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

var _ database.Store = (*Store)(nil)

type noteRecord struct {
	note note.Note
	seq  uint64
}

// Store keeps all data in maps guarded by one RWMutex. LockTenant
// additionally serializes units of work per tenant with a dedicated mutex.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]tenant.Tenant
	users   map[string]user.User
	emails  map[string]string // email -> user id
	notes   map[string]noteRecord
	seq     uint64

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	now func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		tenants: make(map[string]tenant.Tenant),
		users:   make(map[string]user.User),
		emails:  make(map[string]string),
		notes:   make(map[string]noteRecord),
		locks:   make(map[string]*sync.Mutex),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func scopeID(scope tenant.Scope) (string, error) {
	if scope.IsZero() {
		return "", domain.ErrMissingScope
	}
	return scope.TenantID(), nil
}

func cloneNote(n note.Note) note.Note {
	n.Tags = slices.Clone(n.Tags)
	if n.Tags == nil {
		n.Tags = []string{}
	}
	return n
}

func (s *Store) withAuthor(n note.Note) note.Note {
	if u, ok := s.users[n.AuthorID]; ok {
		n.AuthorEmail = u.Email
	}
	return n
}

// --- Tenants ---

func (s *Store) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	now := s.now()
	sub, err := tenant.NewSubscription(tenant.PlanFree, now)
	if err != nil {
		return nil, err
	}
	slug := tenant.NormalizeSlug(req.Slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			return nil, fmt.Errorf("create tenant %s: %w", slug, domain.ErrConflict)
		}
	}
	t := tenant.Tenant{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Slug:         slug,
		Subscription: sub,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.tenants[t.ID] = t
	return &t, nil
}

func (s *Store) GetTenant(_ context.Context, id string) (*tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("get tenant %s: %w", id, domain.ErrNotFound)
	}
	return &t, nil
}

func (s *Store) GetTenantBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	slug = tenant.NormalizeSlug(slug)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("get tenant by slug %s: %w", slug, domain.ErrNotFound)
}

func (s *Store) ListTenants(context.Context) ([]tenant.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]tenant.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b tenant.Tenant) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) SetTenantActive(_ context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenants[id]
	if !ok {
		return fmt.Errorf("set tenant active %s: %w", id, domain.ErrNotFound)
	}
	t.Active = active
	t.UpdatedAt = s.now()
	s.tenants[id] = t
	return nil
}

// --- Accounts ---

func (s *Store) CreateUser(_ context.Context, scope tenant.Scope, u *user.User) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tid]; !ok {
		return fmt.Errorf("create user: tenant %s: %w", tid, domain.ErrNotFound)
	}
	email := user.NormalizeEmail(u.Email)
	if _, dup := s.emails[email]; dup {
		return fmt.Errorf("create user %s: %w", email, domain.ErrConflict)
	}
	now := s.now()
	u.ID = uuid.NewString()
	u.TenantID = tid
	u.Email = email
	u.Active = true
	u.CreatedAt = now
	u.UpdatedAt = now
	s.users[u.ID] = *u
	s.emails[email] = u.ID
	return nil
}

func (s *Store) scopedUser(tid, id string) (user.User, bool) {
	u, ok := s.users[id]
	if !ok || u.TenantID != tid {
		return user.User{}, false
	}
	return u, true
}

func (s *Store) GetUser(_ context.Context, scope tenant.Scope, id string) (*user.User, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.scopedUser(tid, id)
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[user.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) ListUsers(_ context.Context, scope tenant.Scope) ([]user.User, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []user.User{}
	for _, u := range s.users {
		if u.TenantID == tid {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b user.User) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *Store) CountActiveUsers(_ context.Context, scope tenant.Scope) (int, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, u := range s.users {
		if u.TenantID == tid && u.Active {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, scope tenant.Scope, id, hash string) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.scopedUser(tid, id)
	if !ok {
		return fmt.Errorf("update password %s: %w", id, domain.ErrNotFound)
	}
	u.PasswordHash = hash
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

func (s *Store) SetUserActive(_ context.Context, scope tenant.Scope, id string, active bool) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.scopedUser(tid, id)
	if !ok {
		return fmt.Errorf("set user active %s: %w", id, domain.ErrNotFound)
	}
	u.Active = active
	u.UpdatedAt = s.now()
	s.users[id] = u
	return nil
}

// --- Notes ---

func (s *Store) scopedNote(tid, id string) (noteRecord, bool) {
	r, ok := s.notes[id]
	if !ok || r.note.TenantID != tid {
		return noteRecord{}, false
	}
	return r, true
}

func (s *Store) GetNote(_ context.Context, scope tenant.Scope, id string) (*note.Note, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.scopedNote(tid, id)
	if !ok {
		return nil, fmt.Errorf("get note %s: %w", id, domain.ErrNotFound)
	}
	n := s.withAuthor(cloneNote(r.note))
	return &n, nil
}

func matches(n note.Note, f note.ListFilter) bool {
	if n.Archived != f.Archived {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(n.Title), q) && !strings.Contains(strings.ToLower(n.Content), q) {
			return false
		}
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(n.Tags, func(t string) bool { return slices.Contains(f.Tags, t) }) {
		return false
	}
	return true
}

// newestFirst orders by creation time, then insertion order, descending.
func newestFirst(a, b noteRecord) int {
	if c := b.note.CreatedAt.Compare(a.note.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.seq, a.seq)
}

func (s *Store) tenantNotes(tid string, keep func(note.Note) bool) []noteRecord {
	var out []noteRecord
	for _, r := range s.notes {
		if r.note.TenantID == tid && keep(r.note) {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, newestFirst)
	return out
}

func (s *Store) ListNotes(_ context.Context, scope tenant.Scope, f note.ListFilter) ([]note.Note, int, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := s.tenantNotes(tid, func(n note.Note) bool { return matches(n, f) })
	total := len(matched)
	start := min(f.Offset(), total)
	end := min(start+f.PageSize, total)

	out := make([]note.Note, 0, end-start)
	for _, r := range matched[start:end] {
		out = append(out, s.withAuthor(cloneNote(r.note)))
	}
	return out, total, nil
}

func (s *Store) DeleteNote(_ context.Context, scope tenant.Scope, id string) error {
	tid, err := scopeID(scope)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopedNote(tid, id); !ok {
		return fmt.Errorf("delete note %s: %w", id, domain.ErrNotFound)
	}
	delete(s.notes, id)
	return nil
}

func (s *Store) CountNotes(_ context.Context, scope tenant.Scope) (note.Counts, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return note.Counts{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c note.Counts
	for _, r := range s.notes {
		if r.note.TenantID != tid {
			continue
		}
		if r.note.Archived {
			c.Archived++
		} else {
			c.Active++
		}
	}
	return c, nil
}

func (s *Store) RecentNotes(_ context.Context, scope tenant.Scope, limit int) ([]note.Recent, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	active := s.tenantNotes(tid, func(n note.Note) bool { return !n.Archived })
	out := make([]note.Recent, 0, min(limit, len(active)))
	for _, r := range active[:min(limit, len(active))] {
		out = append(out, note.Recent{ID: r.note.ID, Title: r.note.Title, CreatedAt: r.note.CreatedAt})
	}
	return out, nil
}

func (s *Store) TopTags(_ context.Context, scope tenant.Scope, limit int) ([]note.TagCount, error) {
	tid, err := scopeID(scope)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	counts := make(map[string]int)
	for _, r := range s.notes {
		if r.note.TenantID != tid || r.note.Archived {
			continue
		}
		for _, t := range r.note.Tags {
			counts[t]++
		}
	}
	s.mu.RUnlock()

	out := make([]note.TagCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, note.TagCount{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b note.TagCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out[:min(limit, len(out))], nil
}
