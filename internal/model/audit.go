package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuditStatus tracks the lifecycle of one pipeline run.
type AuditStatus string

// Audit status constants.
const (
	AuditStatusPending   AuditStatus = "PENDING"
	AuditStatusRunning   AuditStatus = "RUNNING"
	AuditStatusCompleted AuditStatus = "COMPLETED"
	AuditStatusFailed    AuditStatus = "FAILED"
)

// Audit represents one end-to-end run of the leak detection pipeline for one
// customer's transaction history.
type Audit struct {
	CreatedAt         time.Time
	CompletedAt       *time.Time
	ID                string
	Status            AuditStatus
	ErrorMessage      string
	TransactionCount  int
	LeakCount         int
	TotalMonthlyWaste decimal.Decimal
	TotalAnnualWaste  decimal.Decimal
}

// Terminal reports whether the audit has reached a final state.
func (a *Audit) Terminal() bool {
	return a.Status == AuditStatusCompleted || a.Status == AuditStatusFailed
}
