// Package query provides cached, parallelized read patterns over stored
// audit, transaction, and leak data.
package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jkessler/finleak/internal/cache"
	"github.com/jkessler/finleak/internal/model"
	"github.com/jkessler/finleak/internal/service"
	"github.com/shopspring/decimal"
)

// AuditSummary is the cached aggregate view of one audit.
type AuditSummary struct {
	ByType            map[model.LeakType]int
	AuditID           string
	Status            model.AuditStatus
	TotalMonthlyWaste decimal.Decimal
	TotalAnnualWaste  decimal.Decimal
	TransactionCount  int
	LeakCount         int
}

// TransactionPage is one page of an audit's transactions with totals.
type TransactionPage struct {
	Transactions []model.Transaction
	Page         int
	PageSize     int
	TotalCount   int
	TotalPages   int
}

// AuditDetail bundles the independent reads for one audit view.
type AuditDetail struct {
	Audit        *model.Audit
	Leaks        []model.Leak
	Transactions *TransactionPage
}

// Optimizer fronts the storage layer with a short-TTL summary cache and
// concurrent fan-out reads.
type Optimizer struct {
	storage    service.Storage
	summaries  *cache.Cache[string, AuditSummary]
	summaryTTL time.Duration
}

// NewOptimizer creates an optimizer over storage. A non-positive TTL
// defaults to 30 seconds.
func NewOptimizer(storage service.Storage, summaryTTL time.Duration) *Optimizer {
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}
	return &Optimizer{
		storage:    storage,
		summaries:  cache.New[string, AuditSummary](),
		summaryTTL: summaryTTL,
	}
}

// Summary returns the aggregate view of an audit, cached for a short TTL to
// avoid recomputation.
func (o *Optimizer) Summary(ctx context.Context, auditID string) (AuditSummary, error) {
	return o.summaries.GetOrSet(ctx, auditID, o.summaryTTL, func(ctx context.Context) (AuditSummary, error) {
		audit, err := o.storage.GetAudit(ctx, auditID)
		if err != nil {
			return AuditSummary{}, err
		}

		leaks, err := o.storage.GetLeaksByAudit(ctx, auditID)
		if err != nil {
			return AuditSummary{}, err
		}

		byType := make(map[model.LeakType]int)
		for _, leak := range leaks {
			byType[leak.Type]++
		}

		return AuditSummary{
			AuditID:           audit.ID,
			Status:            audit.Status,
			TransactionCount:  audit.TransactionCount,
			LeakCount:         len(leaks),
			TotalMonthlyWaste: audit.TotalMonthlyWaste,
			TotalAnnualWaste:  audit.TotalAnnualWaste,
			ByType:            byType,
		}, nil
	})
}

// InvalidateSummary drops the cached summary for an audit, for use after the
// audit's aggregates change.
func (o *Optimizer) InvalidateSummary(auditID string) {
	o.summaries.Delete(auditID)
}

// AuditDetail issues the audit header, leak list, and first transaction page
// reads concurrently rather than sequentially.
func (o *Optimizer) AuditDetail(ctx context.Context, auditID string, pageSize int) (*AuditDetail, error) {
	var (
		wg      sync.WaitGroup
		audit   *model.Audit
		leaks   []model.Leak
		txnPage *TransactionPage
		errs    [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		audit, errs[0] = o.storage.GetAudit(ctx, auditID)
	}()
	go func() {
		defer wg.Done()
		leaks, errs[1] = o.storage.GetLeaksByAudit(ctx, auditID)
	}()
	go func() {
		defer wg.Done()
		txnPage, errs[2] = o.TransactionsPage(ctx, auditID, 1, pageSize)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to load audit detail: %w", err)
		}
	}

	return &AuditDetail{
		Audit:        audit,
		Leaks:        leaks,
		Transactions: txnPage,
	}, nil
}

// TransactionsPage returns one page of transactions with total count and
// total page count. Page boundaries are contiguous and non-overlapping;
// totalPages = ceil(totalCount/pageSize).
func (o *Optimizer) TransactionsPage(ctx context.Context, auditID string, page, pageSize int) (*TransactionPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	transactions, total, err := o.storage.GetTransactionsPage(ctx, auditID, page, pageSize)
	if err != nil {
		return nil, err
	}

	return &TransactionPage{
		Transactions: transactions,
		Page:         page,
		PageSize:     pageSize,
		TotalCount:   total,
		TotalPages:   (total + pageSize - 1) / pageSize,
	}, nil
}
