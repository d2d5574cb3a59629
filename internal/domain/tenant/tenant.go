// Package tenant defines the tenant domain model, subscription plans and
// the pure quota rules that every plan transition and admission uses.
package tenant

import (
	"regexp"
	"strings"
	"time"

	"github.com/Strob0t/NoteVault/internal/domain"
)

// Tenant represents an isolated customer organization.
type Tenant struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Slug         string       `json:"slug"`
	Subscription Subscription `json:"subscription"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Scope returns the storage scope bound to this tenant.
func (t *Tenant) Scope() Scope {
	return NewScope(t.ID)
}

// Summary is the public view embedded in account responses.
type Summary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Plan Plan   `json:"plan"`
}

// Summary returns the tenant's public summary.
func (t *Tenant) Summary() Summary {
	return Summary{ID: t.ID, Name: t.Name, Slug: t.Slug, Plan: t.Subscription.Plan}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// CreateRequest holds the fields required to create a new tenant.
// New tenants start on the free plan.
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Normalize trims the name and lower-cases the slug.
func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Slug = NormalizeSlug(r.Slug)
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	var v domain.ValidationError
	if r.Name == "" {
		v.Add("name", "is required")
	} else if len(r.Name) > 100 {
		v.Add("name", "must be at most 100 characters")
	}
	switch {
	case r.Slug == "":
		v.Add("slug", "is required")
	case len(r.Slug) > 50:
		v.Add("slug", "must be at most 50 characters")
	case !slugPattern.MatchString(r.Slug):
		v.Add("slug", "must contain only lowercase letters, digits and single hyphens")
	}
	return v.OrNil()
}

// NormalizeSlug trims and lower-cases a slug for lookup and storage.
func NormalizeSlug(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
