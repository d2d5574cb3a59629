package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/NoteVault/internal/domain/event"
	"github.com/Strob0t/NoteVault/internal/logger"
	"github.com/Strob0t/NoteVault/internal/port/messagequeue"
	"github.com/Strob0t/NoteVault/internal/resilience"
)

// EventPublisher emits domain events after the state change has committed.
// Publishing is best effort: failures are logged and never returned.
// A nil queue turns every call into a no-op.
type EventPublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
}

// NewEventPublisher wraps queue, which may be nil. After five consecutive
// publish failures events are dropped for 30 seconds.
func NewEventPublisher(queue messagequeue.Queue) *EventPublisher {
	return &EventPublisher{
		queue:   queue,
		breaker: resilience.NewBreaker("event-publisher", 5, 30*time.Second),
	}
}

// BreakerState reports the publish circuit position for readiness checks.
func (p *EventPublisher) BreakerState() resilience.State {
	if p == nil || p.breaker == nil {
		return resilience.StateClosed
	}
	return p.breaker.State()
}

// Publish wraps payload in an Envelope and sends it on the subject named by typ.
func (p *EventPublisher) Publish(ctx context.Context, typ event.Type, tenantID, accountID string, payload any) {
	if p == nil || p.queue == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "event payload marshal failed", "type", typ, "error", err)
		return
	}
	env := event.Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		TenantID:  tenantID,
		AccountID: accountID,
		RequestID: logger.RequestID(ctx),
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	if err != nil {
		slog.WarnContext(ctx, "event marshal failed", "type", typ, "error", err)
		return
	}
	// The request context may already be cancelled once the response is written.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err = p.breaker.Execute(pubCtx, func(ctx context.Context) error {
		return p.queue.Publish(ctx, string(typ), data)
	})
	if err != nil {
		slog.WarnContext(ctx, "event publish failed", "type", typ, "tenant_id", tenantID, "error", err)
	}
}
