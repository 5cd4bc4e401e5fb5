package fallback

import (
	"context"
	"time"

	"github.com/jkessler/finleak/internal/model"
)

// RuleClassifier adapts the pure rule set to the engine's Classifier
// contract.
type RuleClassifier struct {
	now func() time.Time
}

// NewRuleClassifier creates a rule classifier using the wall clock.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{now: time.Now}
}

// Classify applies the fallback rules. The context is unused; rule
// evaluation is pure and synchronous.
func (c *RuleClassifier) Classify(_ context.Context, series []model.RecurringSeries, auditID string) []model.Leak {
	return Classify(series, auditID, c.now())
}
