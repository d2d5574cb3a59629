package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/note"
	"github.com/Strob0t/NoteVault/internal/domain/user"
)

// CreateNote handles POST /api/v1/notes
func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	handleCreate(h, h.Notes.Create)(w, r)
}

// ListNotes handles GET /api/v1/notes
func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) (*note.ListResult, error) {
		f, err := parseListFilter(r.URL.Query())
		if err != nil {
			return nil, err
		}
		return h.Notes.List(ctx, p, f)
	})(w, r)
}

// GetNote handles GET /api/v1/notes/{id}
func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	handleGet(h, h.Notes.Get)(w, r)
}

// UpdateNote handles PUT /api/v1/notes/{id}
func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	handleUpdate(h, h.Notes.Update)(w, r)
}

// DeleteNote handles DELETE /api/v1/notes/{id}
func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	handleDelete(h, h.Notes.Delete)(w, r)
}

// ToggleArchive handles POST /api/v1/notes/{id}/archive
func (h *Handlers) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	handleGet(h, h.Notes.ToggleArchive)(w, r)
}

// NoteSummary handles GET /api/v1/notes/stats/summary
func (h *Handlers) NoteSummary(w http.ResponseWriter, r *http.Request) {
	handleView(h, h.Notes.Summary)(w, r)
}

// parseListFilter reads page, limit, search, tags and archived from q.
// Bounds are checked by the service after defaults are applied.
func parseListFilter(q url.Values) (note.ListFilter, error) {
	var (
		f note.ListFilter
		v domain.ValidationError
	)
	f.Search = q.Get("search")
	f.Tags = note.ParseTags(q.Get("tags"))

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("page", "must be a positive integer")
		}
		f.Page = n
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			v.Add("limit", "must be between 1 and 100")
		}
		f.PageSize = n
	}
	if raw := q.Get("archived"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			v.Add("archived", "must be true or false")
		}
		f.Archived = b
	}
	return f, v.OrNil()
}
