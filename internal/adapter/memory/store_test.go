package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

type fixture struct {
	store  *Store
	tenant *tenant.Tenant
	author *user.User
}

func newFixture(t *testing.T, slug string) fixture {
	t.Helper()
	return fixtureIn(t, NewStore(), slug)
}

func fixtureIn(t *testing.T, s *Store, slug string) fixture {
	t.Helper()
	ctx := context.Background()
	tn, err := s.CreateTenant(ctx, tenant.CreateRequest{Name: slug, Slug: slug})
	if err != nil {
		t.Fatal(err)
	}
	u := &user.User{Email: "admin@" + slug + ".test", PasswordHash: "h", Role: user.RoleAdmin}
	if err := s.CreateUser(ctx, tn.Scope(), u); err != nil {
		t.Fatal(err)
	}
	return fixture{store: s, tenant: tn, author: u}
}

func (f fixture) insert(t *testing.T, title string, tags ...string) *note.Note {
	t.Helper()
	n := &note.Note{AuthorID: f.author.ID, Title: title, Content: "body " + title, Tags: tags}
	if err := f.store.LockTenant(context.Background(), f.tenant.Scope(), func(tx database.TenantTx) error {
		return tx.InsertNote(context.Background(), n)
	}); err != nil {
		t.Fatal(err)
	}
	return n
}

func TestZeroScopeRejected(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	if _, err := s.GetNote(ctx, tenant.Scope{}, "x"); !errors.Is(err, domain.ErrMissingScope) {
		t.Errorf("GetNote: got %v", err)
	}
	if _, _, err := s.ListNotes(ctx, tenant.Scope{}, note.ListFilter{}); !errors.Is(err, domain.ErrMissingScope) {
		t.Errorf("ListNotes: got %v", err)
	}
	if err := s.LockTenant(ctx, tenant.Scope{}, func(database.TenantTx) error { return nil }); !errors.Is(err, domain.ErrMissingScope) {
		t.Errorf("LockTenant: got %v", err)
	}
}

func TestDuplicates(t *testing.T) {
	a := newFixture(t, "acme")
	ctx := context.Background()
	if _, err := a.store.CreateTenant(ctx, tenant.CreateRequest{Name: "Acme 2", Slug: "ACME"}); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate slug: got %v", err)
	}
	b := fixtureIn(t, a.store, "globex")
	dup := &user.User{Email: "Admin@Acme.test", PasswordHash: "h", Role: user.RoleMember}
	if err := a.store.CreateUser(ctx, b.tenant.Scope(), dup); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("duplicate email: got %v", err)
	}
}

func TestNoteIsolation(t *testing.T) {
	a := newFixture(t, "acme")
	b := fixtureIn(t, a.store, "globex")
	n := a.insert(t, "acme secret")
	ctx := context.Background()

	if _, err := a.store.GetNote(ctx, b.tenant.Scope(), n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant get: got %v", err)
	}
	if err := a.store.DeleteNote(ctx, b.tenant.Scope(), n.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant delete: got %v", err)
	}
	if _, err := a.store.GetUser(ctx, b.tenant.Scope(), a.author.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant user: got %v", err)
	}
	err := a.store.LockTenant(ctx, b.tenant.Scope(), func(tx database.TenantTx) error {
		_, err := tx.GetNote(ctx, n.ID)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("cross-tenant tx get: got %v", err)
	}
	err = a.store.LockTenant(ctx, b.tenant.Scope(), func(tx database.TenantTx) error {
		return tx.InsertNote(ctx, &note.Note{AuthorID: a.author.ID, Title: "t", Content: "c"})
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign author: got %v", err)
	}
}

func TestListNotes(t *testing.T) {
	f := newFixture(t, "acme")
	f.insert(t, "Grocery list", "home")
	f.insert(t, "Quarterly report", "work", "finance")
	last := f.insert(t, "Standup", "work")

	tests := []struct {
		name   string
		filter note.ListFilter
		want   int
	}{
		{"all", note.ListFilter{}, 3},
		{"search title", note.ListFilter{Search: "grocery"}, 1},
		{"search content", note.ListFilter{Search: "BODY STANDUP"}, 1},
		{"tags any", note.ListFilter{Tags: []string{"home", "finance"}}, 2},
		{"archived", note.ListFilter{Archived: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flt := tt.filter
			flt.Normalize()
			_, total, err := f.store.ListNotes(context.Background(), f.tenant.Scope(), flt)
			if err != nil {
				t.Fatal(err)
			}
			if total != tt.want {
				t.Errorf("got %d, want %d", total, tt.want)
			}
		})
	}

	notes, total, err := f.store.ListNotes(context.Background(), f.tenant.Scope(), note.ListFilter{Page: 1, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(notes) != 2 {
		t.Fatalf("got %d of %d", len(notes), total)
	}
	if notes[0].ID != last.ID {
		t.Errorf("newest note should come first")
	}
	if notes[0].AuthorEmail != f.author.Email {
		t.Errorf("author email = %q", notes[0].AuthorEmail)
	}

	notes, _, err = f.store.ListNotes(context.Background(), f.tenant.Scope(), note.ListFilter{Page: 5, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 0 {
		t.Errorf("page past the end should be empty, got %d", len(notes))
	}
}

func TestLockTenantDiscardsOnError(t *testing.T) {
	f := newFixture(t, "acme")
	ctx := context.Background()
	boom := errors.New("boom")
	err := f.store.LockTenant(ctx, f.tenant.Scope(), func(tx database.TenantTx) error {
		if err := tx.InsertNote(ctx, &note.Note{AuthorID: f.author.ID, Title: "t", Content: "c"}); err != nil {
			return err
		}
		sub, _ := tenant.NewSubscription(tenant.PlanPro, time.Now())
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
	c, _ := f.store.CountNotes(ctx, f.tenant.Scope())
	if c.Active != 0 {
		t.Errorf("insert leaked: %d", c.Active)
	}
	got, _ := f.store.GetTenant(ctx, f.tenant.ID)
	if got.Subscription.Plan != tenant.PlanFree {
		t.Errorf("plan change leaked: %s", got.Subscription.Plan)
	}
}

func TestUpdateSubscriptionRejectsInconsistentPair(t *testing.T) {
	f := newFixture(t, "acme")
	err := f.store.LockTenant(context.Background(), f.tenant.Scope(), func(tx database.TenantTx) error {
		return tx.UpdateSubscription(context.Background(), tenant.Subscription{Plan: tenant.PlanPro, NotesLimit: 3})
	})
	if err == nil {
		t.Fatal("expected error for pro with limit 3")
	}
}

func TestCountActiveSeesStagedWrites(t *testing.T) {
	f := newFixture(t, "acme")
	n := f.insert(t, "one")
	ctx := context.Background()
	err := f.store.LockTenant(ctx, f.tenant.Scope(), func(tx database.TenantTx) error {
		if err := tx.InsertNote(ctx, &note.Note{AuthorID: f.author.ID, Title: "two", Content: "c"}); err != nil {
			return err
		}
		got, err := tx.GetNote(ctx, n.ID)
		if err != nil {
			return err
		}
		got.Archived = true
		if err := tx.SaveNote(ctx, got); err != nil {
			return err
		}
		active, err := tx.CountActiveNotes(ctx)
		if err != nil {
			return err
		}
		if active != 1 {
			t.Errorf("active inside tx = %d, want 1", active)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := f.store.CountNotes(ctx, f.tenant.Scope())
	if c.Active != 1 || c.Archived != 1 {
		t.Errorf("counts after commit = %+v", c)
	}
}

func TestLockTenantSerializesAdmission(t *testing.T) {
	f := newFixture(t, "acme")
	f.insert(t, "one")
	f.insert(t, "two")
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.store.LockTenant(ctx, f.tenant.Scope(), func(tx database.TenantTx) error {
				active, err := tx.CountActiveNotes(ctx)
				if err != nil {
					return err
				}
				if d := tenant.Decide(tx.Tenant().Subscription, active); !d.Allowed {
					return &domain.QuotaExceededError{Current: d.Current, Limit: d.Limit}
				}
				return tx.InsertNote(ctx, &note.Note{AuthorID: f.author.ID, Title: "n", Content: "c"})
			})
		}()
	}
	wg.Wait()
	close(results)

	admitted := 0
	for err := range results {
		var qe *domain.QuotaExceededError
		switch {
		case err == nil:
			admitted++
		case errors.As(err, &qe):
			if qe.Current != 3 || qe.Limit != 3 {
				t.Errorf("unexpected quota error %v", qe)
			}
		default:
			t.Errorf("unexpected error %v", err)
		}
	}
	if admitted != 1 {
		t.Errorf("admitted %d, want exactly 1", admitted)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t, "acme")
	f.insert(t, "a", "x", "y")
	f.insert(t, "b", "x")
	ctx := context.Background()

	recent, err := f.store.RecentNotes(ctx, f.tenant.Scope(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Title != "b" {
		t.Errorf("recent = %+v", recent)
	}
	tags, err := f.store.TopTags(ctx, f.tenant.Scope(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 2 || tags[0] != (note.TagCount{Name: "x", Count: 2}) {
		t.Errorf("tags = %+v", tags)
	}
}
