package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Frequency describes the cadence of a recurring charge series.
type Frequency string

// Recognized charge cadences.
const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiWeekly  Frequency = "bi-weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyAnnual    Frequency = "annual"
)

// RecurringSeries is a group of at least three transactions from the same
// normalized merchant whose average inter-charge interval matches a known
// cadence band. Series are derived fresh per detection run, never persisted.
type RecurringSeries struct {
	LastChargeDate     time.Time
	NormalizedMerchant string
	Frequency          Frequency
	MemberTransactions []Transaction // sorted ascending by date
	AverageAmount      decimal.Decimal
	ChargeCount        int
}
