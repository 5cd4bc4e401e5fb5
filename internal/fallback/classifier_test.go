package fallback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(merchant string, freq model.Frequency, avgAmount float64, lastCharge time.Time) model.RecurringSeries {
	return model.RecurringSeries{
		NormalizedMerchant: merchant,
		Frequency:          freq,
		AverageAmount:      decimal.NewFromFloat(avgAmount),
		LastChargeDate:     lastCharge,
		ChargeCount:        4,
	}
}

func TestClassify_FreeAlternative(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -10)

	leaks := Classify([]model.RecurringSeries{
		series("vscode pro", model.FrequencyMonthly, 10, recent),
	}, "audit-1", now)

	require.Len(t, leaks, 1)
	leak := leaks[0]
	assert.Equal(t, model.LeakTypeFreeAlternative, leak.Type)
	assert.Equal(t, "audit-1", leak.AuditID)
	assert.Equal(t, "vscode pro", leak.MerchantName)
	assert.Equal(t, model.LeakSourceFallback, leak.Source)
	assert.True(t, leak.ConfidenceScore.Equal(decimal.NewFromFloat(0.95)),
		"free-alternative confidence is fixed, got %s", leak.ConfidenceScore)
	assert.True(t, leak.MonthlyCost.Equal(decimal.NewFromInt(10)))
	assert.True(t, leak.AnnualCost.Equal(decimal.NewFromInt(120)))
}

func TestClassify_FreeAlternativeConfidenceIgnoresIdleness(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := Classify([]model.RecurringSeries{
		series("gimp plus", model.FrequencyMonthly, 5, now.AddDate(0, 0, -1)),
	}, "audit-1", now)
	stale := Classify([]model.RecurringSeries{
		series("gimp plus", model.FrequencyMonthly, 5, now.AddDate(0, 0, -400)),
	}, "audit-1", now)

	var freshConf, staleConf decimal.Decimal
	for _, leak := range fresh {
		if leak.Type == model.LeakTypeFreeAlternative {
			freshConf = leak.ConfidenceScore
		}
	}
	for _, leak := range stale {
		if leak.Type == model.LeakTypeFreeAlternative {
			staleConf = leak.ConfidenceScore
		}
	}
	assert.True(t, freshConf.Equal(staleConf))
}

func TestClassify_Zombie(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		idleDays int
		want     bool
	}{
		{"well within activity window", 30, false},
		{"at the threshold", 90, false},
		{"one day past the threshold", 91, true},
		{"long abandoned", 200, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaks := Classify([]model.RecurringSeries{
				series("mysterygym", model.FrequencyMonthly, 25, now.AddDate(0, 0, -tt.idleDays)),
			}, "audit-1", now)

			var zombie *model.Leak
			for i := range leaks {
				if leaks[i].Type == model.LeakTypeZombie {
					zombie = &leaks[i]
				}
			}

			if !tt.want {
				assert.Nil(t, zombie)
				return
			}
			require.NotNil(t, zombie)
			assert.True(t, zombie.ConfidenceScore.Equal(decimal.NewFromFloat(0.75)))
			assert.Contains(t, zombie.Description, fmt.Sprintf("%d days", tt.idleDays))
		})
	}
}

func TestClassify_ZombieDescriptionCountsIdleDays(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	leaks := Classify([]model.RecurringSeries{
		series("mysterygym", model.FrequencyMonthly, 25, now.AddDate(0, 0, -120)),
	}, "audit-1", now)

	require.Len(t, leaks, 1)
	assert.Contains(t, leaks[0].Description, "120 days")
}

func TestClassify_HighCost(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := now.AddDate(0, 0, -5)

	tests := []struct {
		name    string
		freq    model.Frequency
		amount  float64
		want    bool
		monthly string
	}{
		{"monthly at threshold is not flagged", model.FrequencyMonthly, 100, false, ""},
		{"monthly above threshold", model.FrequencyMonthly, 150, true, "150.00"},
		{"annual amount is spread across months", model.FrequencyAnnual, 600, false, ""},
		{"expensive annual charge", model.FrequencyAnnual, 2400, true, "200.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leaks := Classify([]model.RecurringSeries{
				series("bigsaas", tt.freq, tt.amount, recent),
			}, "audit-1", now)

			var highCost *model.Leak
			for i := range leaks {
				if leaks[i].Type == model.LeakTypeUnused {
					highCost = &leaks[i]
				}
			}

			if !tt.want {
				assert.Nil(t, highCost)
				return
			}
			require.NotNil(t, highCost)
			assert.True(t, highCost.ConfidenceScore.Equal(decimal.NewFromFloat(0.60)))
			assert.Contains(t, highCost.Description, tt.monthly)
		})
	}
}

func TestClassify_AnnualCostIsAlwaysTwelveTimesMonthly(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	leaks := Classify([]model.RecurringSeries{
		series("blender studio", model.FrequencyAnnual, 240, now.AddDate(0, 0, -5)),
	}, "audit-1", now)

	require.NotEmpty(t, leaks)
	for _, leak := range leaks {
		assert.True(t, leak.MonthlyCost.Equal(decimal.NewFromInt(20)), "got %s", leak.MonthlyCost)
		assert.True(t, leak.AnnualCost.Equal(decimal.NewFromInt(240)), "got %s", leak.AnnualCost)
	}
}

func TestClassify_RulesAreIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Matches all three rules: free alternative, long idle, expensive.
	leaks := Classify([]model.RecurringSeries{
		series("bitwarden enterprise", model.FrequencyMonthly, 150, now.AddDate(0, 0, -120)),
	}, "audit-1", now)

	require.Len(t, leaks, 3)
	types := map[model.LeakType]bool{}
	for _, leak := range leaks {
		types[leak.Type] = true
	}
	assert.True(t, types[model.LeakTypeFreeAlternative])
	assert.True(t, types[model.LeakTypeZombie])
	assert.True(t, types[model.LeakTypeUnused])
}

func TestClassify_NoRulesFire(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	leaks := Classify([]model.RecurringSeries{
		series("netflix", model.FrequencyMonthly, 15.49, now.AddDate(0, 0, -15)),
	}, "audit-1", now)

	assert.Empty(t, leaks)
}

func TestRuleClassifier_AdaptsToEngineContract(t *testing.T) {
	c := NewRuleClassifier()
	c.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }

	leaks := c.Classify(context.Background(), []model.RecurringSeries{
		series("obs premium", model.FrequencyMonthly, 12, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)),
	}, "audit-9")

	require.Len(t, leaks, 1)
	assert.Equal(t, "audit-9", leaks[0].AuditID)
	assert.Equal(t, model.LeakTypeFreeAlternative, leaks[0].Type)
}
