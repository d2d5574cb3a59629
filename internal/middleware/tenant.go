package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

// RequireTenantSlug returns middleware that only lets a principal address
// its own tenant through the {param} route segment. Any other slug,
// existing or not, is Forbidden.
func RequireTenantSlug(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := PrincipalFromContext(r.Context())
			if p == nil || p.Tenant == nil {
				writeError(w, http.StatusUnauthorized, "Unauthenticated", domain.ErrUnauthenticated.Error())
				return
			}

			if tenant.NormalizeSlug(chi.URLParam(r, param)) != p.Tenant.Slug {
				writeError(w, http.StatusForbidden, "Forbidden", "access to other tenants is not allowed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
