package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/service"
)

const meterName = "notevault"

var _ service.Observer = (*Metrics)(nil)

// Metrics holds all NoteVault metric instruments and records the domain
// measurements reported by the service layer.
type Metrics struct {
	LoginAttempts  metric.Int64Counter
	NoteAdmissions metric.Int64Counter
	QuotaRejects   metric.Int64Counter
	PlanChanges    metric.Int64Counter
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.LoginAttempts, err = meter.Int64Counter("notevault.login.attempts",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}

	m.NoteAdmissions, err = meter.Int64Counter("notevault.notes.admissions",
		metric.WithDescription("Quota admission decisions for note creation"))
	if err != nil {
		return nil, err
	}

	m.QuotaRejects, err = meter.Int64Counter("notevault.quota.rejections",
		metric.WithDescription("Note creations rejected by the plan quota"))
	if err != nil {
		return nil, err
	}

	m.PlanChanges, err = meter.Int64Counter("notevault.plan.changes",
		metric.WithDescription("Subscription plan transitions"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// LoginAttempt counts a login attempt.
func (m *Metrics) LoginAttempt(ctx context.Context, outcome string) {
	m.LoginAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// NoteAdmission counts a quota decision.
func (m *Metrics) NoteAdmission(ctx context.Context, plan tenant.Plan, allowed bool) {
	attrs := metric.WithAttributes(attribute.String("plan", string(plan)), attribute.Bool("allowed", allowed))
	m.NoteAdmissions.Add(ctx, 1, attrs)
	if !allowed {
		m.QuotaRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("plan", string(plan))))
	}
}

// PlanChanged counts a plan transition.
func (m *Metrics) PlanChanged(ctx context.Context, from, to tenant.Plan) {
	m.PlanChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}
