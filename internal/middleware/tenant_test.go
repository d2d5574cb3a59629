package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/middleware"
)

func tenantRouter(p *user.Principal) http.Handler {
	r := chi.NewRouter()
	if p != nil {
		r.Use(func(next http.Handler) http.Handler { return withPrincipal(p, next) })
	}
	r.With(middleware.RequireTenantSlug("slug")).Get("/tenants/{slug}", okHandler().ServeHTTP)
	return r
}

func TestRequireTenantSlug(t *testing.T) {
	tests := []struct {
		name       string
		principal  *user.Principal
		path       string
		wantStatus int
	}{
		{"own tenant", testPrincipal(user.RoleMember), "/tenants/acme", http.StatusOK},
		{"own tenant upper case", testPrincipal(user.RoleMember), "/tenants/ACME", http.StatusOK},
		{"other tenant", testPrincipal(user.RoleAdmin), "/tenants/globex", http.StatusForbidden},
		{"unknown tenant", testPrincipal(user.RoleAdmin), "/tenants/does-not-exist", http.StatusForbidden},
		{"no principal", nil, "/tenants/acme", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			tenantRouter(tt.principal).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
