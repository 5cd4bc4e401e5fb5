// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/jkessler/finleak/internal/model"
)

// Storage defines the contract for the persistence layer. The pipeline
// requires only inserts, point lookups, and filtered lists; no joins.
type Storage interface {
	// Audit operations
	CreateAudit(ctx context.Context, audit *model.Audit) error
	GetAudit(ctx context.Context, id string) (*model.Audit, error)
	UpdateAudit(ctx context.Context, audit *model.Audit) error
	ListAudits(ctx context.Context, limit int) ([]model.Audit, error)

	// Transaction operations
	SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error)
	GetTransactionsByAudit(ctx context.Context, auditID string) ([]model.Transaction, error)
	GetTransactionsPage(ctx context.Context, auditID string, page, pageSize int) ([]model.Transaction, int, error)

	// Leak operations
	SaveLeaks(ctx context.Context, leaks []model.Leak) error
	GetLeaksByAudit(ctx context.Context, auditID string) ([]model.Leak, error)

	// Circuit breaker state (satisfies breaker.StateStore)
	GetBreakerRecord(ctx context.Context, serviceName string) (*model.BreakerRecord, error)
	PutBreakerRecord(ctx context.Context, record *model.BreakerRecord) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// TransactionFetcher is the bank-data capability.
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, accessToken string, startDate, endDate time.Time) ([]model.Transaction, error)
}
