package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/middleware"
)

// RouteDeps are the collaborators the route tree needs besides Handlers.
type RouteDeps struct {
	Authn        middleware.Authenticator
	LoginLimiter middleware.WindowLimiter
	// IdempotencyKV enables Idempotency-Key replay when non-nil.
	IdempotencyKV jetstream.KeyValue
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers, deps RouteDeps) {
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)

	adminOnly := middleware.RequireRole(user.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.LoginLimiter != nil {
			r.With(middleware.LoginLimit(deps.LoginLimiter)).Post("/auth/login", h.Login)
		} else {
			r.Post("/auth/login", h.Login)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(deps.Authn))
			r.Use(recordPrincipal)
			if deps.IdempotencyKV != nil {
				r.Use(middleware.Idempotency(deps.IdempotencyKV))
			}

			// Auth
			r.Get("/auth/me", h.Me)
			r.Put("/auth/change-password", h.ChangePassword)
			r.Post("/auth/refresh", h.Refresh)
			r.With(adminOnly).Post("/auth/register", h.Register)
			r.With(adminOnly).Get("/auth/users", h.ListUsers)

			// Notes
			r.Post("/notes", h.CreateNote)
			r.Get("/notes", h.ListNotes)
			r.Get("/notes/stats/summary", h.NoteSummary)
			r.Get("/notes/{id}", h.GetNote)
			r.Put("/notes/{id}", h.UpdateNote)
			r.Delete("/notes/{id}", h.DeleteNote)
			r.Post("/notes/{id}/archive", h.ToggleArchive)

			// Subscription
			r.Get("/subscription/usage", h.Usage)
			r.Get("/subscription/plans", h.Plans)
			r.Get("/subscription/check-limits", h.CheckLimits)
			r.Get("/subscription/upgrade-suggestion", h.UpgradeSuggestion)
			r.With(adminOnly).Post("/subscription/upgrade", h.Upgrade)
			r.With(adminOnly).Post("/subscription/downgrade", h.Downgrade)

			// Tenant addressed by slug
			r.Route("/tenants/{slug}", func(r chi.Router) {
				r.Use(middleware.RequireTenantSlug("slug"))
				r.Get("/", h.GetTenant)
				r.With(adminOnly).Post("/upgrade", h.Upgrade)
				r.With(adminOnly).Post("/downgrade", h.Downgrade)
				r.With(adminOnly).Get("/stats", h.TenantStats)
			})
		})
	})
}
