package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/Strob0t/NoteVault/internal/domain/user"
)

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}

	resp, err := h.Auth.Login(r.Context(), req)
	if err != nil {
		slog.DebugContext(r.Context(), "login failed", "email", user.NormalizeEmail(req.Email), "error", err)
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register handles POST /api/v1/auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	handleCreate(h, func(ctx context.Context, p *user.Principal, req user.CreateRequest) (*user.AccountView, error) {
		u, err := h.Auth.Register(ctx, p, req)
		if err != nil {
			return nil, err
		}
		v := user.View(u, p.Tenant)
		return &v, nil
	})(w, r)
}

// Me handles GET /api/v1/auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	handleView(h, h.Auth.Me)(w, r)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	handleView(h, h.Auth.Refresh)(w, r)
}

// ListUsers handles GET /api/v1/auth/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	handleView(h, func(ctx context.Context, p *user.Principal) ([]user.AccountView, error) {
		users, err := h.Auth.ListUsers(ctx, p)
		if err != nil {
			return nil, err
		}
		views := make([]user.AccountView, len(users))
		for i := range users {
			views[i] = user.View(&users[i], p.Tenant)
		}
		return views, nil
	})(w, r)
}

// ChangePassword handles PUT /api/v1/auth/change-password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[user.ChangePasswordRequest](w, r, h.BodyLimit)
	if !ok {
		return
	}
	if err := h.Auth.ChangePassword(r.Context(), p, req); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password changed"})
}
