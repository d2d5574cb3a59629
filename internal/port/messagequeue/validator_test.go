package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateNoteCreated(t *testing.T) {
	data := []byte(`{"id":"e1","type":"notes.created","tenant_id":"t1","payload":{"note_id":"n1","archived":false}}`)
	if err := Validate("notes.created", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidatePlanChanged(t *testing.T) {
	data := []byte(`{"id":"e1","type":"tenants.plan_changed","tenant_id":"t1","payload":{"from":"free","to":"pro"}}`)
	if err := Validate("tenants.plan_changed", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	data := []byte(`{"id":"e1","type":"notes.exported","tenant_id":"t1","payload":{"anything":1}}`)
	if err := Validate("notes.exported", data); err != nil {
		t.Fatalf("unknown subject should only need an envelope: %v", err)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
		wantErr string
	}{
		{"invalid json", "notes.created", `{not json`, "invalid envelope"},
		{"type mismatch", "notes.deleted", `{"type":"notes.created","tenant_id":"t1","payload":{}}`, "does not match"},
		{"missing tenant", "notes.created", `{"type":"notes.created","payload":{}}`, "tenant_id is required"},
		{"wrong payload type", "notes.created", `{"type":"notes.created","tenant_id":"t1","payload":{"note_id":42}}`, "schema validation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.subject, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err, tt.wantErr)
			}
		})
	}
}
