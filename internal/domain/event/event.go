// Package event defines the domain events NoteVault publishes after a
// state change has committed.
package event

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of domain event. The value doubles as the
// message subject.
type Type string

const (
	TypeNoteCreated       Type = "notes.created"
	TypeNoteUpdated       Type = "notes.updated"
	TypeNoteDeleted       Type = "notes.deleted"
	TypeNoteArchived      Type = "notes.archived"
	TypeTenantPlanChanged Type = "tenants.plan_changed"
	TypeAccountCreated    Type = "accounts.created"
)

// Envelope wraps every published event.
type Envelope struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	TenantID  string          `json:"tenant_id"`
	AccountID string          `json:"account_id,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NotePayload is carried by note events.
type NotePayload struct {
	NoteID   string `json:"note_id"`
	Archived bool   `json:"archived"`
}

// PlanChangedPayload is carried by tenants.plan_changed.
type PlanChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AccountCreatedPayload is carried by accounts.created.
type AccountCreatedPayload struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}
