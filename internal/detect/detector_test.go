package detect

import (
	"testing"
	"time"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCharges(merchant string, amount float64, start time.Time, gapDays, count int) []model.Transaction {
	txns := make([]model.Transaction, 0, count)
	for i := 0; i < count; i++ {
		txns = append(txns, model.Transaction{
			ID:           merchant + string(rune('a'+i)),
			MerchantName: merchant,
			Amount:       decimal.NewFromFloat(amount),
			Date:         start.AddDate(0, 0, i*gapDays),
			AccountID:    "acct-1",
		})
	}
	return txns
}

func TestRecurring(t *testing.T) {
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		transactions []model.Transaction
		wantMerchant string
		wantFreq     model.Frequency
		wantCount    int
		wantSeries   int
	}{
		{
			name:         "monthly subscription",
			transactions: makeCharges("Spotify", 9.99, start, 30, 4),
			wantSeries:   1,
			wantMerchant: "spotify",
			wantFreq:     model.FrequencyMonthly,
			wantCount:    4,
		},
		{
			name:         "weekly charge",
			transactions: makeCharges("CoffeeClub", 4.50, start, 7, 5),
			wantSeries:   1,
			wantMerchant: "coffeeclub",
			wantFreq:     model.FrequencyWeekly,
			wantCount:    5,
		},
		{
			name:         "bi-weekly charge",
			transactions: makeCharges("CleaningCo", 80, start, 14, 4),
			wantSeries:   1,
			wantMerchant: "cleaningco",
			wantFreq:     model.FrequencyBiWeekly,
			wantCount:    4,
		},
		{
			name:         "quarterly charge",
			transactions: makeCharges("PestControl", 120, start, 90, 3),
			wantSeries:   1,
			wantMerchant: "pestcontrol",
			wantFreq:     model.FrequencyQuarterly,
			wantCount:    3,
		},
		{
			name:         "annual renewal",
			transactions: makeCharges("AmazonPrime", 139, start, 365, 3),
			wantSeries:   1,
			wantMerchant: "amazonprime",
			wantFreq:     model.FrequencyAnnual,
			wantCount:    3,
		},
		{
			name:         "same-day charges are not recurring",
			transactions: makeCharges("Refundish", 25, start, 0, 4),
			wantSeries:   0,
		},
		{
			name:         "45-day interval falls in no band",
			transactions: makeCharges("Oddball", 30, start, 45, 4),
			wantSeries:   0,
		},
		{
			name:         "93-day interval is not rounded to quarterly",
			transactions: makeCharges("AlmostQuarterly", 60, start, 93, 3),
			wantSeries:   0,
		},
		{
			name:         "two charges are not enough evidence",
			transactions: makeCharges("Newcomer", 12, start, 30, 2),
			wantSeries:   0,
		},
		{
			name:         "empty input",
			transactions: nil,
			wantSeries:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := Recurring(tt.transactions)
			require.Len(t, series, tt.wantSeries)
			if tt.wantSeries == 0 {
				return
			}
			s := series[0]
			assert.Equal(t, tt.wantMerchant, s.NormalizedMerchant)
			assert.Equal(t, tt.wantFreq, s.Frequency)
			assert.Equal(t, tt.wantCount, s.ChargeCount)
			assert.Len(t, s.MemberTransactions, tt.wantCount)
		})
	}
}

func TestRecurring_GroupsByNormalizedMerchant(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	txns := []model.Transaction{
		{ID: "1", MerchantName: "Netflix", Amount: decimal.NewFromFloat(15.49), Date: start},
		{ID: "2", MerchantName: "NETFLIX", Amount: decimal.NewFromFloat(15.49), Date: start.AddDate(0, 0, 30)},
		{ID: "3", MerchantName: "  netflix ", Amount: decimal.NewFromFloat(15.49), Date: start.AddDate(0, 0, 60)},
	}

	series := Recurring(txns)
	require.Len(t, series, 1)
	assert.Equal(t, "netflix", series[0].NormalizedMerchant)
	assert.Equal(t, 3, series[0].ChargeCount)
}

func TestRecurring_AverageAmount(t *testing.T) {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	txns := []model.Transaction{
		{ID: "1", MerchantName: "Gym", Amount: decimal.NewFromInt(40), Date: start},
		{ID: "2", MerchantName: "Gym", Amount: decimal.NewFromInt(50), Date: start.AddDate(0, 0, 30)},
		{ID: "3", MerchantName: "Gym", Amount: decimal.NewFromInt(60), Date: start.AddDate(0, 0, 60)},
	}

	series := Recurring(txns)
	require.Len(t, series, 1)
	assert.True(t, series[0].AverageAmount.Equal(decimal.NewFromInt(50)),
		"got %s", series[0].AverageAmount)
}

func TestRecurring_MembersSortedAndLastChargeDate(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Deliberately out of order.
	txns := []model.Transaction{
		{ID: "3", MerchantName: "Hulu", Amount: decimal.NewFromInt(8), Date: start.AddDate(0, 0, 60)},
		{ID: "1", MerchantName: "Hulu", Amount: decimal.NewFromInt(8), Date: start},
		{ID: "2", MerchantName: "Hulu", Amount: decimal.NewFromInt(8), Date: start.AddDate(0, 0, 30)},
	}

	series := Recurring(txns)
	require.Len(t, series, 1)

	members := series[0].MemberTransactions
	require.Len(t, members, 3)
	assert.Equal(t, "1", members[0].ID)
	assert.Equal(t, "2", members[1].ID)
	assert.Equal(t, "3", members[2].ID)
	assert.Equal(t, start.AddDate(0, 0, 60), series[0].LastChargeDate)
}

func TestRecurring_Deterministic(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var txns []model.Transaction
	txns = append(txns, makeCharges("Zeta", 5, start, 30, 3)...)
	txns = append(txns, makeCharges("Alpha", 10, start, 30, 3)...)
	txns = append(txns, makeCharges("Mid", 7, start, 7, 4)...)

	first := Recurring(txns)
	require.Len(t, first, 3)

	for i := 0; i < 5; i++ {
		again := Recurring(txns)
		require.Len(t, again, 3)
		for j := range first {
			assert.Equal(t, first[j].NormalizedMerchant, again[j].NormalizedMerchant)
		}
	}

	// Output order follows merchant key order.
	assert.Equal(t, "alpha", first[0].NormalizedMerchant)
	assert.Equal(t, "mid", first[1].NormalizedMerchant)
	assert.Equal(t, "zeta", first[2].NormalizedMerchant)
}

func TestRecurring_MixedIntervalsAverageInsideBand(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Gaps of 28 and 32 days average to 30: monthly.
	txns := []model.Transaction{
		{ID: "1", MerchantName: "Wobbly", Amount: decimal.NewFromInt(9), Date: start},
		{ID: "2", MerchantName: "Wobbly", Amount: decimal.NewFromInt(9), Date: start.AddDate(0, 0, 28)},
		{ID: "3", MerchantName: "Wobbly", Amount: decimal.NewFromInt(9), Date: start.AddDate(0, 0, 60)},
	}

	series := Recurring(txns)
	require.Len(t, series, 1)
	assert.Equal(t, model.FrequencyMonthly, series[0].Frequency)
}
