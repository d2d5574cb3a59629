package messagequeue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Strob0t/NoteVault/internal/domain/event"
)

// Validate checks that data is a well-formed event envelope whose type
// matches subject and whose payload decodes into the subject's schema.
// Unknown subjects only need a valid envelope.
func Validate(subject string, data []byte) error {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("invalid envelope on subject %s: %w", subject, err)
	}
	if string(env.Type) != subject {
		return fmt.Errorf("envelope type %q does not match subject %s", env.Type, subject)
	}
	if env.TenantID == "" {
		return errors.New("envelope tenant_id is required")
	}

	var target any
	switch event.Type(subject) {
	case event.TypeNoteCreated, event.TypeNoteUpdated, event.TypeNoteDeleted, event.TypeNoteArchived:
		target = &event.NotePayload{}
	case event.TypeTenantPlanChanged:
		target = &event.PlanChangedPayload{}
	case event.TypeAccountCreated:
		target = &event.AccountCreatedPayload{}
	default:
		return nil
	}

	if err := json.Unmarshal(env.Payload, target); err != nil {
		return fmt.Errorf("schema validation failed for %s: %w", subject, err)
	}
	return nil
}
