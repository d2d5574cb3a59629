package tenant

// Scope binds a storage call to exactly one tenant. The zero Scope is
// rejected by every tenant-scoped store method.
type Scope struct {
	id string
}

// NewScope returns a Scope for tenantID. Callers obtain the id from an
// authenticated principal or an administrative lookup, never from request input.
func NewScope(tenantID string) Scope {
	return Scope{id: tenantID}
}

// TenantID returns the bound tenant id.
func (s Scope) TenantID() string { return s.id }

// IsZero reports whether the scope is unbound.
func (s Scope) IsZero() bool { return s.id == "" }
