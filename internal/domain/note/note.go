// Package note defines the note domain model, input normalization and list filters.
package note

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Strob0t/NoteVault/internal/domain"
)

const (
	MaxTitleLen   = 200
	MaxContentLen = 10000
	MaxTagLen     = 50
	MaxTags       = 50
	MaxSearchLen  = 100

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Note is a tenant-owned text item. TenantID never changes after creation.
type Note struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	AuthorID    string    `json:"author_id"`
	AuthorEmail string    `json:"author_email,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateRequest is the input for creating a note.
type CreateRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

// Normalize trims fields and cleans the tag list.
func (r *CreateRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Content = strings.TrimSpace(r.Content)
	r.Tags = NormalizeTags(r.Tags)
}

// Validate checks lengths after Normalize.
func (r *CreateRequest) Validate() error {
	var v domain.ValidationError
	validateTitle(&v, r.Title)
	validateContent(&v, r.Content)
	validateTags(&v, r.Tags)
	return v.OrNil()
}

// UpdateRequest is a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Title    *string   `json:"title,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Tags     *[]string `json:"tags,omitempty"`
	Archived *bool     `json:"archived,omitempty"`
}

// Normalize trims the set fields and cleans the tag list.
func (r *UpdateRequest) Normalize() {
	if r.Title != nil {
		s := strings.TrimSpace(*r.Title)
		r.Title = &s
	}
	if r.Content != nil {
		s := strings.TrimSpace(*r.Content)
		r.Content = &s
	}
	if r.Tags != nil {
		tags := NormalizeTags(*r.Tags)
		r.Tags = &tags
	}
}

// Validate checks the set fields after Normalize.
func (r *UpdateRequest) Validate() error {
	var v domain.ValidationError
	if r.Title != nil {
		validateTitle(&v, *r.Title)
	}
	if r.Content != nil {
		validateContent(&v, *r.Content)
	}
	if r.Tags != nil {
		validateTags(&v, *r.Tags)
	}
	return v.OrNil()
}

// HasContentChanges reports whether any of title, content or tags is set.
func (r *UpdateRequest) HasContentChanges() bool {
	return r.Title != nil || r.Content != nil || r.Tags != nil
}

// Apply copies the set content fields onto n.
func (r *UpdateRequest) Apply(n *Note) {
	if r.Title != nil {
		n.Title = *r.Title
	}
	if r.Content != nil {
		n.Content = *r.Content
	}
	if r.Tags != nil {
		n.Tags = *r.Tags
	}
}

// NormalizeTags trims each tag, drops empty ones and collapses duplicates
// while keeping first-seen order. The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func validateTitle(v *domain.ValidationError, s string) {
	switch n := utf8.RuneCountInString(s); {
	case n == 0:
		v.Add("title", "is required")
	case n > MaxTitleLen:
		v.Add("title", "must be at most 200 characters")
	}
}

func validateContent(v *domain.ValidationError, s string) {
	switch n := utf8.RuneCountInString(s); {
	case n == 0:
		v.Add("content", "is required")
	case n > MaxContentLen:
		v.Add("content", "must be at most 10000 characters")
	}
}

func validateTags(v *domain.ValidationError, tags []string) {
	if len(tags) > MaxTags {
		v.Add("tags", "must contain at most 50 tags")
	}
	for _, t := range tags {
		if utf8.RuneCountInString(t) > MaxTagLen {
			v.Add("tags", "each tag must be at most 50 characters")
			return
		}
	}
}
