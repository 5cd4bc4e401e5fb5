package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents a single financial transaction from any source.
// Amounts are always-positive magnitudes; direction is resolved upstream.
// Transactions belong to one audit and are never mutated once fetched.
type Transaction struct {
	Date         time.Time
	ID           string
	AuditID      string
	Name         string // Raw transaction description
	MerchantName string // Cleaned merchant name
	AccountID    string
	Hash         string
	Amount       decimal.Decimal
	Categories   []string // Category hints from source (e.g., Plaid categories)
}

// NormalizedMerchant returns the merchant identity key used for grouping:
// lowercased with surrounding whitespace trimmed. No fuzzy matching.
func (t *Transaction) NormalizedMerchant() string {
	return strings.ToLower(strings.TrimSpace(t.MerchantName))
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Amount.StringFixed(2),
		t.MerchantName,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
