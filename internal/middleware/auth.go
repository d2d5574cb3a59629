package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/logger"
)

type principalCtxKey struct{}

// Authenticator resolves a bearer token into a live Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*user.Principal, error)
}

// Auth returns middleware that requires a valid "Authorization: Bearer"
// token. On success the Principal is stored in the request context; every
// failure is answered with 401 and the same generic message.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthenticated", domain.ErrUnauthenticated.Error())
				return
			}

			p, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrUnauthenticated) {
					slog.ErrorContext(r.Context(), "authenticate request", "error", err)
				} else {
					slog.DebugContext(r.Context(), "request rejected", "reason", err)
				}
				writeError(w, http.StatusUnauthorized, "Unauthenticated", domain.ErrUnauthenticated.Error())
				return
			}

			ctx := ContextWithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// PrincipalFromContext returns the authenticated principal, or nil.
func PrincipalFromContext(ctx context.Context) *user.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*user.Principal)
	return p
}

// ContextWithPrincipal stores p in ctx and tags the context's log records
// with the principal's tenant and account.
func ContextWithPrincipal(ctx context.Context, p *user.Principal) context.Context {
	ctx = context.WithValue(ctx, principalCtxKey{}, p)
	return logger.WithPrincipal(ctx, p.TenantID, p.AccountID)
}
