// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LeakType categorizes a detected instance of recurring financial waste.
type LeakType string

// Leak type constants.
const (
	LeakTypeZombie          LeakType = "zombie"
	LeakTypeDuplicate       LeakType = "duplicate"
	LeakTypeFreeAlternative LeakType = "free_alternative"
	LeakTypeUnused          LeakType = "unused"
)

// LeakSource indicates which classifier produced a leak.
type LeakSource string

// Leak source constants.
const (
	LeakSourceAI       LeakSource = "ai"
	LeakSourceFallback LeakSource = "fallback"
)

// Leak represents one detected instance of recurring waste tied to an audit.
// Leaks are created only by the classifier stage and never mutated afterward
// within a single audit run.
type Leak struct {
	AuditID         string
	Type            LeakType
	MerchantName    string
	Description     string
	Recommendation  string
	Source          LeakSource
	Evidence        map[string]any
	MonthlyCost     decimal.Decimal
	AnnualCost      decimal.Decimal
	ConfidenceScore decimal.Decimal
	ID              int64
}

// Validate checks structural invariants before persistence.
func (l *Leak) Validate() error {
	switch l.Type {
	case LeakTypeZombie, LeakTypeDuplicate, LeakTypeFreeAlternative, LeakTypeUnused:
	default:
		return fmt.Errorf("unknown leak type %q", l.Type)
	}
	if l.AuditID == "" {
		return fmt.Errorf("leak requires an audit ID")
	}
	if l.MerchantName == "" {
		return fmt.Errorf("leak requires a merchant name")
	}
	return nil
}

// Clamp normalizes out-of-range numeric fields produced by an untrusted
// classifier: confidence is forced into [0,1] and negative costs to zero.
func (l *Leak) Clamp() {
	one := decimal.NewFromInt(1)
	if l.ConfidenceScore.LessThan(decimal.Zero) {
		l.ConfidenceScore = decimal.Zero
	}
	if l.ConfidenceScore.GreaterThan(one) {
		l.ConfidenceScore = one
	}
	if l.MonthlyCost.LessThan(decimal.Zero) {
		l.MonthlyCost = decimal.Zero
	}
	if l.AnnualCost.LessThan(decimal.Zero) {
		l.AnnualCost = decimal.Zero
	}
}
