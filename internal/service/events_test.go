package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/logger"
	"github.com/Strob0t/NoteVault/internal/resilience"
)

func TestPublishEnvelope(t *testing.T) {
	q := newRecordingQueue()
	p := NewEventPublisher(q)
	ctx := logger.WithRequestID(context.Background(), "req-42")

	p.Publish(ctx, event.TypeNoteCreated, "tenant-1", "acct-1", event.NotePayload{NoteID: "n-1"})

	if len(q.messages) != 1 || q.messages[0].subject != "notes.created" {
		t.Fatalf("messages = %+v", q.messages)
	}
	var env event.Envelope
	if err := json.Unmarshal(q.messages[0].data, &env); err != nil {
		t.Fatal(err)
	}
	if env.ID == "" || env.TenantID != "tenant-1" || env.AccountID != "acct-1" || env.RequestID != "req-42" {
		t.Errorf("envelope = %+v", env)
	}
	var payload event.NotePayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.NoteID != "n-1" {
		t.Errorf("payload = %+v, %v", payload, err)
	}
}

func TestPublishSurvivesCancelledRequest(t *testing.T) {
	q := newRecordingQueue()
	p := NewEventPublisher(q)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Publish(ctx, event.TypeNoteDeleted, "tenant-1", "acct-1", event.NotePayload{NoteID: "n-1"})
	if len(q.messages) != 1 {
		t.Errorf("event dropped after request cancellation")
	}
}

func TestPublishOpensBreaker(t *testing.T) {
	q := newRecordingQueue()
	q.err = errors.New("nats down")
	p := NewEventPublisher(q)

	for range 5 {
		p.Publish(context.Background(), event.TypeNoteCreated, "tenant-1", "", struct{}{})
	}
	if got := p.BreakerState(); got != resilience.StateOpen {
		t.Errorf("breaker = %v, want open", got)
	}
}

func TestNilPublisher(t *testing.T) {
	var p *EventPublisher
	p.Publish(context.Background(), event.TypeNoteCreated, "t", "a", nil)
	if p.BreakerState() != resilience.StateClosed {
		t.Error("nil publisher should report closed")
	}

	NewEventPublisher(nil).Publish(context.Background(), event.TypeNoteCreated, "t", "a", nil)
}
