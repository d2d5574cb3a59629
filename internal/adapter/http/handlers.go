package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Strob0t/NoteVault/internal/service"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency for GET /health/ready.
type ReadinessCheck struct {
	Name string
	// Required checks fail readiness; optional ones only report.
	Required bool
	Check    func(ctx context.Context) error
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Auth          *service.AuthService
	Notes         *service.NoteService
	Subscriptions *service.SubscriptionService
	Tenants       *service.TenantService
	Quota         *service.QuotaService
	Checks        []ReadinessCheck
	BodyLimit     int64
	Debug         bool // expose internal error messages
	Version       string
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeDomainError(w, r, err, h.Debug)
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}

// Ready handles GET /health/ready
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	type checkResult struct {
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]checkResult, len(h.Checks))
	for _, c := range h.Checks {
		if err := c.Check(ctx); err != nil {
			results[c.Name] = checkResult{Status: "down", Error: err.Error()}
			if c.Required {
				status = http.StatusServiceUnavailable
			}
			continue
		}
		results[c.Name] = checkResult{Status: "up"}
	}

	overall := "ready"
	if status != http.StatusOK {
		overall = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}
