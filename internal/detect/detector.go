// Package detect implements recurring-charge detection over a flat
// transaction list. Detection is pure and deterministic: no I/O, no clock.
package detect

import (
	"math"
	"sort"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// minChargeCount is the minimum evidence of recurrence. Groups with fewer
// same-merchant charges never produce a series.
const minChargeCount = 3

// intervalBand maps an inclusive range of mean inter-charge days to a
// cadence. Bands are checked in order; first match wins.
type intervalBand struct {
	frequency model.Frequency
	min       float64
	max       float64
}

var intervalBands = []intervalBand{
	{model.FrequencyWeekly, 6, 9},
	{model.FrequencyBiWeekly, 13, 16},
	{model.FrequencyMonthly, 28, 32},
	{model.FrequencyQuarterly, 88, 92},
	{model.FrequencyAnnual, 363, 367},
}

// Recurring groups transactions by normalized merchant identity and returns
// a series for every group of three or more charges whose mean inter-charge
// interval falls inside one of the cadence bands. A group whose mean interval
// falls in no band is not recurring and produces no series; it is never
// rounded to the nearest band.
func Recurring(transactions []model.Transaction) []model.RecurringSeries {
	groups := make(map[string][]model.Transaction)
	for _, txn := range transactions {
		key := txn.NormalizedMerchant()
		groups[key] = append(groups[key], txn)
	}

	// Sort group keys so repeated runs over the same input yield the same
	// output ordering.
	merchants := make([]string, 0, len(groups))
	for merchant := range groups {
		merchants = append(merchants, merchant)
	}
	sort.Strings(merchants)

	var series []model.RecurringSeries
	for _, merchant := range merchants {
		members := groups[merchant]
		if len(members) < minChargeCount {
			continue
		}

		sort.Slice(members, func(i, j int) bool {
			return members[i].Date.Before(members[j].Date)
		})

		frequency, ok := classifyInterval(meanIntervalDays(members))
		if !ok {
			continue
		}

		series = append(series, model.RecurringSeries{
			NormalizedMerchant: merchant,
			MemberTransactions: members,
			Frequency:          frequency,
			AverageAmount:      averageAmount(members),
			LastChargeDate:     members[len(members)-1].Date,
			ChargeCount:        len(members),
		})
	}

	return series
}

// meanIntervalDays returns the arithmetic mean of the whole-day gaps between
// successive charges in a date-sorted group.
func meanIntervalDays(members []model.Transaction) float64 {
	total := 0.0
	for i := 1; i < len(members); i++ {
		gap := members[i].Date.Sub(members[i-1].Date).Hours() / 24
		total += math.Round(gap)
	}
	return total / float64(len(members)-1)
}

func classifyInterval(avgInterval float64) (model.Frequency, bool) {
	for _, band := range intervalBands {
		if avgInterval >= band.min && avgInterval <= band.max {
			return band.frequency, true
		}
	}
	return "", false
}

func averageAmount(members []model.Transaction) decimal.Decimal {
	amounts := make([]decimal.Decimal, len(members))
	for i, txn := range members {
		amounts[i] = txn.Amount
	}
	return decimal.Avg(amounts[0], amounts[1:]...)
}
