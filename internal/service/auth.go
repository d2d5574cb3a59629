package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/hashing"
	"github.com/Strob0t/NoteVault/internal/port/database"
)

// AuthService owns credentials, login, session refresh and account management.
type AuthService struct {
	store    database.Store
	sessions *SessionIssuer
	events   *EventPublisher
	hasher   *hashing.Pool
	observer Observer
	// dummyHash is compared against when the email is unknown, so a miss
	// costs the same bcrypt round as a hit.
	dummyHash func() string
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, sessions *SessionIssuer, events *EventPublisher, hasher *hashing.Pool) *AuthService {
	return &AuthService{
		store:    store,
		sessions: sessions,
		events:   events,
		hasher:   hasher,
		observer: nopObserver{},
		dummyHash: sync.OnceValue(func() string {
			h, _ := hasher.Hash(context.Background(), "notevault-dummy-password")
			return h
		}),
	}
}

// compare checks password against hash. Only a mismatch is reported as
// invalid credentials; infrastructure failures are returned as is.
func (s *AuthService) compare(ctx context.Context, hash, password string) (bool, error) {
	err := s.hasher.Compare(ctx, hash, password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, hashing.ErrMismatch):
		return false, nil
	default:
		return false, fmt.Errorf("compare password: %w", err)
	}
}

// Verify checks email and password. Unknown emails, wrong passwords and
// deactivated accounts all return domain.ErrInvalidCredentials.
func (s *AuthService) Verify(ctx context.Context, email, password string) (*user.User, error) {
	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get user: %w", err)
		}
		_, _ = s.compare(ctx, s.dummyHash(), password)
		slog.DebugContext(ctx, "login rejected", "reason", "unknown email")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.compare(ctx, u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.DebugContext(ctx, "login rejected", "reason", "password mismatch", "account_id", u.ID)
		return nil, domain.ErrInvalidCredentials
	}
	if !u.Active {
		slog.DebugContext(ctx, "login rejected", "reason", "account inactive", "account_id", u.ID)
		return nil, domain.ErrInvalidCredentials
	}
	return u, nil
}

// SetObserver reports every login outcome to o.
func (s *AuthService) SetObserver(o Observer) {
	s.observer = o
}

// Login authenticates the caller and issues a session token.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (resp *user.LoginResponse, err error) {
	defer func() { s.observer.LoginAttempt(ctx, loginOutcome(err)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	t, err := s.store.GetTenant(ctx, u.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !t.Active {
		slog.DebugContext(ctx, "login rejected", "reason", "tenant inactive", "tenant_id", t.ID)
		return nil, domain.ErrAccountSuspended
	}

	return s.respond(u, t)
}

func loginOutcome(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return LoginSucceeded
	case errors.Is(err, domain.ErrInvalidCredentials):
		return LoginRejected
	case errors.Is(err, domain.ErrAccountSuspended):
		return LoginSuspended
	case errors.As(err, &verr):
		return LoginInvalid
	default:
		return LoginFailed
	}
}

func (s *AuthService) respond(u *user.User, t *tenant.Tenant) (*user.LoginResponse, error) {
	token, err := s.sessions.Issue(u)
	if err != nil {
		return nil, err
	}
	return &user.LoginResponse{
		Token:     token,
		ExpiresIn: int(s.sessions.TTL().Seconds()),
		User:      user.View(u, t),
	}, nil
}

// Authenticate resolves a bearer token to a Principal. The account and
// its tenant are re-read on every call; any failure is ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*user.Principal, error) {
	claims, err := s.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}

	scope := tenant.NewScope(claims.TenantID)
	u, err := s.store.GetUser(ctx, scope, claims.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: account gone", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !u.Active {
		return nil, fmt.Errorf("%w: account inactive", domain.ErrUnauthenticated)
	}

	t, err := s.store.GetTenant(ctx, claims.TenantID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: tenant gone", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !t.Active {
		return nil, fmt.Errorf("%w: tenant inactive", domain.ErrUnauthenticated)
	}

	return &user.Principal{
		AccountID: u.ID,
		TenantID:  t.ID,
		Role:      u.Role,
		Email:     u.Email,
		Tenant:    t,
	}, nil
}

// Refresh issues a fresh token for an already authenticated principal.
func (s *AuthService) Refresh(ctx context.Context, p *user.Principal) (*user.LoginResponse, error) {
	u, err := s.store.GetUser(ctx, p.Scope(), p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.respond(u, p.Tenant)
}

// Me returns the principal's account with its tenant summary.
func (s *AuthService) Me(ctx context.Context, p *user.Principal) (*user.AccountView, error) {
	u, err := s.store.GetUser(ctx, p.Scope(), p.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	v := user.View(u, p.Tenant)
	return &v, nil
}

// CreateAccount hashes the password and stores a new account in scope.
func (s *AuthService) CreateAccount(ctx context.Context, scope tenant.Scope, req user.CreateRequest) (*user.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &user.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.store.CreateUser(ctx, scope, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Register invites a new account into the admin principal's tenant.
func (s *AuthService) Register(ctx context.Context, p *user.Principal, req user.CreateRequest) (*user.User, error) {
	if !p.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	u, err := s.CreateAccount(ctx, p.Scope(), req)
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "account registered", "account_id", u.ID, "role", u.Role)
	s.events.Publish(ctx, event.TypeAccountCreated, p.TenantID, p.AccountID, event.AccountCreatedPayload{
		AccountID: u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
	})
	return u, nil
}

// ListUsers returns the accounts of the principal's tenant.
func (s *AuthService) ListUsers(ctx context.Context, p *user.Principal) ([]user.User, error) {
	return s.store.ListUsers(ctx, p.Scope())
}

// ChangePassword replaces the principal's password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, p *user.Principal, req user.ChangePasswordRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	u, err := s.store.GetUser(ctx, p.Scope(), p.AccountID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	ok, err := s.compare(ctx, u.PasswordHash, req.OldPassword)
	if err != nil {
		return err
	}
	if !ok {
		return domain.Invalid("old_password", "is incorrect")
	}

	return s.SetPassword(ctx, p.Scope(), u.ID, req.NewPassword)
}

// SetPassword re-hashes plaintext and stores it for the account. Callers
// are responsible for authorizing the change.
func (s *AuthService) SetPassword(ctx context.Context, scope tenant.Scope, accountID, plaintext string) error {
	hash, err := s.hasher.Hash(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, scope, accountID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// SetActive activates or deactivates an account. Accounts are never deleted.
func (s *AuthService) SetActive(ctx context.Context, scope tenant.Scope, accountID string, active bool) error {
	if err := s.store.SetUserActive(ctx, scope, accountID, active); err != nil {
		return fmt.Errorf("set user active: %w", err)
	}
	return nil
}
