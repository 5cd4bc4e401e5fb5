package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_NormalizedMerchant(t *testing.T) {
	tests := []struct {
		name     string
		merchant string
		want     string
	}{
		{"lowercases", "NETFLIX", "netflix"},
		{"trims whitespace", "  Spotify  ", "spotify"},
		{"interior spacing is preserved", "Amazon Prime Video", "amazon prime video"},
		{"already normalized", "hulu", "hulu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := Transaction{MerchantName: tt.merchant}
			assert.Equal(t, tt.want, txn.NormalizedMerchant())
		})
	}
}

func TestTransaction_GenerateHash(t *testing.T) {
	base := Transaction{
		Date:         time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.NewFromFloat(9.99),
		MerchantName: "Spotify",
		AccountID:    "acct-1",
	}

	hash := base.GenerateHash()
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, base.GenerateHash(), "hashing is deterministic")

	differentDay := base
	differentDay.Date = base.Date.AddDate(0, 0, 1)
	assert.NotEqual(t, hash, differentDay.GenerateHash())

	differentAmount := base
	differentAmount.Amount = decimal.NewFromFloat(10.99)
	assert.NotEqual(t, hash, differentAmount.GenerateHash())

	differentAccount := base
	differentAccount.AccountID = "acct-2"
	assert.NotEqual(t, hash, differentAccount.GenerateHash())

	// The ID does not participate; the same charge imported twice from
	// different sources hashes identically.
	differentID := base
	differentID.ID = "other-source-id"
	assert.Equal(t, hash, differentID.GenerateHash())
}

func TestLeak_Validate(t *testing.T) {
	valid := Leak{
		AuditID:      "audit-1",
		Type:         LeakTypeZombie,
		MerchantName: "gym",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Leak)
	}{
		{"unknown type", func(l *Leak) { l.Type = "surprise" }},
		{"missing audit ID", func(l *Leak) { l.AuditID = "" }},
		{"missing merchant", func(l *Leak) { l.MerchantName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leak := valid
			tt.mutate(&leak)
			assert.Error(t, leak.Validate())
		})
	}
}

func TestLeak_Clamp(t *testing.T) {
	leak := Leak{
		ConfidenceScore: decimal.NewFromFloat(1.5),
		MonthlyCost:     decimal.NewFromInt(-10),
		AnnualCost:      decimal.NewFromInt(-120),
	}
	leak.Clamp()

	assert.True(t, leak.ConfidenceScore.Equal(decimal.NewFromInt(1)))
	assert.True(t, leak.MonthlyCost.Equal(decimal.Zero))
	assert.True(t, leak.AnnualCost.Equal(decimal.Zero))

	negative := Leak{ConfidenceScore: decimal.NewFromFloat(-0.2)}
	negative.Clamp()
	assert.True(t, negative.ConfidenceScore.Equal(decimal.Zero))

	inRange := Leak{
		ConfidenceScore: decimal.NewFromFloat(0.8),
		MonthlyCost:     decimal.NewFromInt(10),
		AnnualCost:      decimal.NewFromInt(120),
	}
	inRange.Clamp()
	assert.True(t, inRange.ConfidenceScore.Equal(decimal.NewFromFloat(0.8)))
	assert.True(t, inRange.MonthlyCost.Equal(decimal.NewFromInt(10)))
}

func TestAudit_Terminal(t *testing.T) {
	tests := []struct {
		status AuditStatus
		want   bool
	}{
		{AuditStatusPending, false},
		{AuditStatusRunning, false},
		{AuditStatusCompleted, true},
		{AuditStatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			audit := Audit{Status: tt.status}
			assert.Equal(t, tt.want, audit.Terminal())
		})
	}
}
