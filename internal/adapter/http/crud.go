package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/NoteVault/internal/domain/user"
)

// ---------------------------------------------------------------------------
// Generic handler factories for principal-scoped resources
// ---------------------------------------------------------------------------

// handleView creates a handler that renders a value derived from the caller.
func handleView[T any](h *Handlers, viewFn func(ctx context.Context, p *user.Principal) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		v, err := viewFn(r.Context(), p)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// handleGet creates a handler that retrieves a single resource by URL param "id".
func handleGet[T any](h *Handlers, getFn func(ctx context.Context, p *user.Principal, id string) (*T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		item, err := getFn(r.Context(), p, urlParam(r, "id"))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleCreate creates a handler that decodes a JSON body and creates a resource.
func handleCreate[Req any, Res any](h *Handlers, createFn func(ctx context.Context, p *user.Principal, req Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		req, ok := readJSON[Req](w, r, h.BodyLimit)
		if !ok {
			return
		}
		res, err := createFn(r.Context(), p, req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// handleUpdate creates a handler that decodes a JSON body and updates a resource by URL param "id".
func handleUpdate[Req any, Res any](h *Handlers, updateFn func(ctx context.Context, p *user.Principal, id string, req Req) (*Res, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		req, ok := readJSON[Req](w, r, h.BodyLimit)
		if !ok {
			return
		}
		res, err := updateFn(r.Context(), p, urlParam(r, "id"), req)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// handleDelete creates a handler that deletes a resource by URL param "id".
func handleDelete(h *Handlers, deleteFn func(ctx context.Context, p *user.Principal, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := principal(w, r)
		if !ok {
			return
		}
		if err := deleteFn(r.Context(), p, urlParam(r, "id")); err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
