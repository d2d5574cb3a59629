// Package user defines the account domain model for authentication and authorization.
package user

import (
	"net/mail"
	"strings"
	"time"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

// Role represents the authorization level of an account within its tenant.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ValidRoles is the set of all valid account roles.
var ValidRoles = map[Role]bool{
	RoleAdmin:  true,
	RoleMember: true,
}

const (
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt input limit
)

// User is an account belonging to exactly one tenant. Accounts are never
// deleted, only deactivated, and the role never changes after creation.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	Role         Role      `json:"role"`
	TenantID     string    `json:"tenant_id"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateRequest is the input for inviting a new account into the caller's tenant.
type CreateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
	Role     Role   `json:"role"`
}

// Normalize canonicalizes the email address.
func (r *CreateRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	var v domain.ValidationError
	validateEmail(&v, r.Email)
	validatePassword(&v, "password", r.Password)
	if !ValidRoles[r.Role] {
		v.Add("role", "must be either admin or member")
	}
	return v.OrNil()
}

// LoginRequest is the input for account authentication.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the LoginRequest has all required fields.
func (r *LoginRequest) Validate() error {
	var v domain.ValidationError
	validateEmail(&v, NormalizeEmail(r.Email))
	if r.Password == "" {
		v.Add("password", "is required")
	}
	return v.OrNil()
}

// ChangePasswordRequest is the input for replacing the caller's password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"` //nolint:gosec // request field, not a hardcoded secret
	NewPassword string `json:"new_password"` //nolint:gosec // request field, not a hardcoded secret
}

// Validate checks that the ChangePasswordRequest has all required fields.
func (r *ChangePasswordRequest) Validate() error {
	var v domain.ValidationError
	if r.OldPassword == "" {
		v.Add("old_password", "is required")
	}
	validatePassword(&v, "new_password", r.NewPassword)
	return v.OrNil()
}

func validateEmail(v *domain.ValidationError, email string) {
	if email == "" {
		v.Add("email", "is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		v.Add("email", "must be a valid email address")
	}
}

// ValidatePassword applies the password length rules to a bare password.
func ValidatePassword(pw string) error {
	var v domain.ValidationError
	validatePassword(&v, "password", pw)
	return v.OrNil()
}

func validatePassword(v *domain.ValidationError, field, pw string) {
	switch {
	case pw == "":
		v.Add(field, "is required")
	case len(pw) < minPasswordLen:
		v.Add(field, "must be at least 6 characters")
	case len(pw) > maxPasswordLen:
		v.Add(field, "must be at most 72 bytes")
	}
}

// TokenClaims are the verified contents of a session token.
type TokenClaims struct {
	AccountID string
	TenantID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the trusted identity the access guard attaches to a request.
type Principal struct {
	AccountID string
	TenantID  string
	Role      Role
	Email     string
	Tenant    *tenant.Tenant
}

// Scope returns the storage scope of the principal's tenant.
func (p *Principal) Scope() tenant.Scope {
	return tenant.NewScope(p.TenantID)
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// LoginResponse is returned after successful authentication.
type LoginResponse struct {
	Token     string      `json:"token"` //nolint:gosec // response field, not a hardcoded secret
	ExpiresIn int         `json:"expires_in"`
	User      AccountView `json:"user"`
}

// AccountView is an account with its tenant summary.
type AccountView struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Role      Role           `json:"role"`
	Active    bool           `json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	Tenant    tenant.Summary `json:"tenant"`
}

// View builds the public representation of u within t.
func View(u *User, t *tenant.Tenant) AccountView {
	return AccountView{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		Tenant:    t.Summary(),
	}
}
