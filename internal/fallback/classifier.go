// Package fallback implements the deterministic, rule-based leak classifier
// used when the AI dependency is unavailable. Classification is pure and
// synchronous; the caller supplies the clock.
package fallback

import (
	"fmt"
	"strings"
	"time"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// freeAlternatives are well-known merchants whose paid tiers have free
// software substitutes. Matched by substring against the normalized merchant.
var freeAlternatives = []string{
	"vscode",
	"gimp",
	"libreoffice",
	"audacity",
	"blender",
	"obs",
	"inkscape",
	"darktable",
	"bitwarden",
	"thunderbird",
}

// zombieThresholdDays is how long a subscription may sit uncharged-against
// activity before it is presumed abandoned.
const zombieThresholdDays = 90

var highCostThreshold = decimal.NewFromInt(100)

// Classify applies the rule set to each series independently. The three
// rules are not mutually exclusive: one series may yield zero, one, or
// several leak records.
func Classify(series []model.RecurringSeries, auditID string, now time.Time) []model.Leak {
	var leaks []model.Leak
	for _, s := range series {
		leaks = append(leaks, classifySeries(s, auditID, now)...)
	}
	return leaks
}

func classifySeries(s model.RecurringSeries, auditID string, now time.Time) []model.Leak {
	var leaks []model.Leak

	monthly := monthlyCost(s)
	annual := monthly.Mul(decimal.NewFromInt(12))

	if alt, ok := matchFreeAlternative(s.NormalizedMerchant); ok {
		leaks = append(leaks, model.Leak{
			AuditID:         auditID,
			Type:            model.LeakTypeFreeAlternative,
			MerchantName:    s.NormalizedMerchant,
			MonthlyCost:     monthly,
			AnnualCost:      annual,
			Description:     fmt.Sprintf("A free alternative exists for %s.", s.NormalizedMerchant),
			Recommendation:  fmt.Sprintf("Consider switching to the free version of %s.", alt),
			ConfidenceScore: decimal.NewFromFloat(0.95),
			Source:          model.LeakSourceFallback,
			Evidence:        evidence(s, "free_alternative"),
		})
	}

	if idleDays := wholeDaysBetween(s.LastChargeDate, now); idleDays > zombieThresholdDays {
		leaks = append(leaks, model.Leak{
			AuditID:         auditID,
			Type:            model.LeakTypeZombie,
			MerchantName:    s.NormalizedMerchant,
			MonthlyCost:     monthly,
			AnnualCost:      annual,
			Description:     fmt.Sprintf("No charge from %s in %d days; the subscription may be abandoned.", s.NormalizedMerchant, idleDays),
			Recommendation:  "Cancel this subscription if you no longer use it.",
			ConfidenceScore: decimal.NewFromFloat(0.75),
			Source:          model.LeakSourceFallback,
			Evidence:        evidence(s, "zombie"),
		})
	}

	if monthly.GreaterThan(highCostThreshold) {
		leaks = append(leaks, model.Leak{
			AuditID:         auditID,
			Type:            model.LeakTypeUnused,
			MerchantName:    s.NormalizedMerchant,
			MonthlyCost:     monthly,
			AnnualCost:      annual,
			Description:     fmt.Sprintf("High recurring cost of %s/month from %s.", monthly.StringFixed(2), s.NormalizedMerchant),
			Recommendation:  "Review whether this service justifies its cost.",
			ConfidenceScore: decimal.NewFromFloat(0.60),
			Source:          model.LeakSourceFallback,
			Evidence:        evidence(s, "high_cost"),
		})
	}

	return leaks
}

// monthlyCost derives the monthly estimate from the series cadence: monthly
// series cost their average amount per month, anything else is treated as an
// annualized charge spread across twelve months.
func monthlyCost(s model.RecurringSeries) decimal.Decimal {
	if s.Frequency == model.FrequencyMonthly {
		return s.AverageAmount
	}
	return s.AverageAmount.Div(decimal.NewFromInt(12))
}

func matchFreeAlternative(merchant string) (string, bool) {
	for _, name := range freeAlternatives {
		if strings.Contains(merchant, name) {
			return name, true
		}
	}
	return "", false
}

func wholeDaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func evidence(s model.RecurringSeries, rule string) map[string]any {
	return map[string]any{
		"source":       "fallback_rules",
		"rule":         rule,
		"frequency":    string(s.Frequency),
		"charge_count": s.ChargeCount,
		"last_charge":  s.LastChargeDate.Format("2006-01-02"),
	}
}
