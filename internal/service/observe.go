package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Strob0t/NoteVault/internal/domain/tenant"
)

// Login outcomes reported to Observer.LoginAttempt.
const (
	LoginSucceeded = "success"
	LoginRejected  = "invalid_credentials"
	LoginSuspended = "suspended"
	LoginInvalid   = "invalid_request"
	LoginFailed    = "error"
)

// Observer receives domain measurements.
type Observer interface {
	LoginAttempt(ctx context.Context, outcome string)
	NoteAdmission(ctx context.Context, plan tenant.Plan, allowed bool)
	PlanChanged(ctx context.Context, from, to tenant.Plan)
}

type nopObserver struct{}

func (nopObserver) LoginAttempt(context.Context, string)                  {}
func (nopObserver) NoteAdmission(context.Context, tenant.Plan, bool)      {}
func (nopObserver) PlanChanged(context.Context, tenant.Plan, tenant.Plan) {}

var tracer = otel.Tracer("github.com/Strob0t/NoteVault/internal/service")

// startSpan starts a span tagged with the tenant it operates on.
func startSpan(ctx context.Context, name, tenantID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("tenant.id", tenantID)))
}

// endSpan records err on span and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
