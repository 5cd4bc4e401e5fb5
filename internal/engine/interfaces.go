package engine

import (
	"context"

	"github.com/jkessler/finleak/internal/model"
)

// Classifier turns detected recurring series into leak records. A classifier
// never fails: an empty result is the degraded outcome.
type Classifier interface {
	Classify(ctx context.Context, series []model.RecurringSeries, auditID string) []model.Leak
}

// ReportGenerator produces the downstream report for a completed audit. It
// is invoked in-process after classification; a generation failure is logged
// and never fails the audit run.
type ReportGenerator interface {
	Generate(ctx context.Context, auditID string) error
}

// BreakerProbe exposes the circuit state of the AI dependency so the engine
// can divert to the fallback classifier when the AI path is known
// unavailable.
type BreakerProbe interface {
	State() model.CircuitState
}

// Guard runs work under a circuit breaker. Both the transient and the
// durable breaker satisfy it.
type Guard interface {
	Execute(ctx context.Context, work func(ctx context.Context) error) error
}
