package note

import (
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/NoteVault/internal/domain"
)

// ListFilter narrows a note listing. The tenant predicate is supplied
// separately by the caller's scope and is always ANDed with these fields.
type ListFilter struct {
	Search   string   // case-insensitive substring of title or content
	Tags     []string // note matches if it carries any of these
	Archived bool
	Page     int // 1-indexed
	PageSize int
}

// Normalize applies defaults and cleans the search term and tags.
func (f *ListFilter) Normalize() {
	f.Search = strings.TrimSpace(f.Search)
	f.Tags = NormalizeTags(f.Tags)
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PageSize == 0 {
		f.PageSize = DefaultPageSize
	}
}

// Validate checks bounds after Normalize.
func (f *ListFilter) Validate() error {
	var v domain.ValidationError
	if f.Page < 1 {
		v.Add("page", "must be a positive integer")
	}
	if f.PageSize < 1 || f.PageSize > MaxPageSize {
		v.Add("limit", "must be between 1 and 100")
	}
	if utf8.RuneCountInString(f.Search) > MaxSearchLen {
		v.Add("search", "must be at most 100 characters")
	}
	return v.OrNil()
}

// Offset returns the number of rows to skip.
func (f *ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

// ParseTags splits a comma-separated tag list.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return NormalizeTags(strings.Split(raw, ","))
}

// Pagination describes the page returned by a listing.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	TotalCount  int  `json:"total_count"`
	HasNextPage bool `json:"has_next_page"`
	HasPrevPage bool `json:"has_prev_page"`
	Limit       int  `json:"limit"`
}

// NewPagination computes page metadata for total matching rows.
func NewPagination(f ListFilter, total int) Pagination {
	pages := 0
	if f.PageSize > 0 {
		pages = (total + f.PageSize - 1) / f.PageSize
	}
	return Pagination{
		CurrentPage: f.Page,
		TotalPages:  pages,
		TotalCount:  total,
		HasNextPage: f.Page < pages,
		HasPrevPage: f.Page > 1,
		Limit:       f.PageSize,
	}
}

// ListResult is one page of notes with its metadata.
type ListResult struct {
	Notes      []Note     `json:"notes"`
	Pagination Pagination `json:"pagination"`
	Filters    Filters    `json:"filters"`
}

// Filters echoes the applied filter back to the caller.
type Filters struct {
	Search   string   `json:"search"`
	Tags     []string `json:"tags"`
	Archived bool     `json:"archived"`
}
