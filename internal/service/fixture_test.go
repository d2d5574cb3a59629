package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Strob0t/NoteVault/internal/adapter/memory"
	"github.com/Strob0t/NoteVault/internal/config"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/hashing"
	"github.com/Strob0t/NoteVault/internal/port/cache"
	"github.com/Strob0t/NoteVault/internal/port/messagequeue"
)

const (
	testSecret   = "service-test-secret-of-at-least-32-bytes"
	testPassword = "password"
)

var (
	_ messagequeue.Queue = (*recordingQueue)(nil)
	_ cache.Cache        = (*mapCache)(nil)
)

type published struct {
	subject string
	data    []byte
}

// recordingQueue keeps every published message and delivers it to
// matching in-process subscribers.
type recordingQueue struct {
	mu       sync.Mutex
	messages []published
	handlers map[string][]messagequeue.Handler
	err      error
}

func newRecordingQueue() *recordingQueue {
	return &recordingQueue{handlers: make(map[string][]messagequeue.Handler)}
}

func subjectMatches(pattern, subject string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ">"); ok {
		return strings.HasPrefix(subject, prefix)
	}
	return pattern == subject
}

func (q *recordingQueue) Publish(ctx context.Context, subject string, data []byte) error {
	q.mu.Lock()
	if q.err != nil {
		q.mu.Unlock()
		return q.err
	}
	q.messages = append(q.messages, published{subject: subject, data: data})
	var targets []messagequeue.Handler
	for pattern, hs := range q.handlers {
		if subjectMatches(pattern, subject) {
			targets = append(targets, hs...)
		}
	}
	q.mu.Unlock()

	for _, h := range targets {
		_ = h(ctx, subject, data)
	}
	return nil
}

func (q *recordingQueue) Subscribe(_ context.Context, subject string, handler messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[subject] = append(q.handlers[subject], handler)
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.handlers, subject)
	}, nil
}

func (q *recordingQueue) Drain() error      { return nil }
func (q *recordingQueue) Close() error      { return nil }
func (q *recordingQueue) IsConnected() bool { return true }

func (q *recordingQueue) subjects() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.messages))
	for i, m := range q.messages {
		out[i] = m.subject
	}
	return out
}

func (q *recordingQueue) count(subject string) int {
	n := 0
	for _, s := range q.subjects() {
		if s == subject {
			n++
		}
	}
	return n
}

// mapCache is a synchronous cache.Cache that ignores TTLs.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.deletes++
	return nil
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// testEnv wires every service against the in-memory store.
type testEnv struct {
	store    *memory.Store
	queue    *recordingQueue
	cache    *mapCache
	sessions *SessionIssuer
	events   *EventPublisher
	auth     *AuthService
	quota    *QuotaService
	stats    *StatsService
	subs     *SubscriptionService
	tenants  *TenantService
	notes    *NoteService
}

func testAuthConfig() *config.Auth {
	cfg := config.Defaults().Auth
	cfg.JWTSecret = testSecret
	cfg.BcryptCost = bcrypt.MinCost
	return &cfg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		store: memory.NewStore(),
		queue: newRecordingQueue(),
		cache: newMapCache(),
	}
	e.sessions = NewSessionIssuer(testAuthConfig())
	e.events = NewEventPublisher(e.queue)
	e.auth = NewAuthService(e.store, e.sessions, e.events, hashing.NewPool(4, bcrypt.MinCost))
	e.quota = NewQuotaService(e.store)
	e.stats = NewStatsService(e.store, e.cache, time.Minute)
	e.subs = NewSubscriptionService(e.store, e.quota, e.stats, e.events)
	e.tenants = NewTenantService(e.store, e.quota)
	e.notes = NewNoteService(e.store, e.quota, e.stats, e.events)
	return e
}

func (e *testEnv) tenant(t *testing.T, slug string) *tenant.Tenant {
	t.Helper()
	tn, err := e.tenants.Create(context.Background(), tenant.CreateRequest{Name: strings.ToUpper(slug), Slug: slug})
	if err != nil {
		t.Fatalf("create tenant %s: %v", slug, err)
	}
	return tn
}

func (e *testEnv) account(t *testing.T, tn *tenant.Tenant, email string, role user.Role) *user.User {
	t.Helper()
	u, err := e.auth.CreateAccount(context.Background(), tn.Scope(), user.CreateRequest{
		Email:    email,
		Password: testPassword,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", email, err)
	}
	return u
}

// principal logs email in and resolves the issued token like the access guard does.
func (e *testEnv) principal(t *testing.T, email string) *user.Principal {
	t.Helper()
	ctx := context.Background()
	resp, err := e.auth.Login(ctx, user.LoginRequest{Email: email, Password: testPassword})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	p, err := e.auth.Authenticate(ctx, resp.Token)
	if err != nil {
		t.Fatalf("authenticate %s: %v", email, err)
	}
	return p
}

// refresh re-reads the principal so its tenant snapshot reflects plan changes.
func (e *testEnv) refresh(t *testing.T, p *user.Principal) *user.Principal {
	t.Helper()
	tn, err := e.store.GetTenant(context.Background(), p.TenantID)
	if err != nil {
		t.Fatal(err)
	}
	cp := *p
	cp.Tenant = tn
	return &cp
}

func (e *testEnv) createNote(t *testing.T, p *user.Principal, title string, tags ...string) *note.Note {
	t.Helper()
	n, err := e.notes.Create(context.Background(), p, note.CreateRequest{
		Title:   title,
		Content: title + " body",
		Tags:    tags,
	})
	if err != nil {
		t.Fatalf("create note %q: %v", title, err)
	}
	return n
}
