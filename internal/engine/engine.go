// Package engine orchestrates the leak detection pipeline: fetch, detect,
// classify, persist, aggregate, report. Stages within one audit run are
// strictly sequential; independent audits may run in parallel.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jkessler/finleak/internal/batch"
	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/detect"
	"github.com/jkessler/finleak/internal/model"
	"github.com/jkessler/finleak/internal/service"
	"github.com/shopspring/decimal"
)

// Config holds tuning for the audit engine.
type Config struct {
	InsertBatchSize int
	InsertMaxWait   time.Duration
}

// DefaultConfig returns the default engine configuration. The large insert
// batch and short wait bound the number of storage round-trips for a big
// transaction pull.
func DefaultConfig() Config {
	return Config{
		InsertBatchSize: 1000,
		InsertMaxWait:   100 * time.Millisecond,
	}
}

// AuditEngine runs audits. All dependencies are injected; the engine owns no
// package-level state.
type AuditEngine struct {
	storage     service.Storage
	fetcher     service.TransactionFetcher
	classifier  Classifier
	fallback    Classifier
	aiProbe     BreakerProbe
	reports     ReportGenerator
	bankBreaker Guard
	logger      *slog.Logger
	cfg         Config
}

// New creates an audit engine. fallback and reports may be nil; aiProbe
// should expose the breaker guarding the primary classifier so the engine
// can divert to the fallback when the AI circuit is open.
func New(
	storage service.Storage,
	fetcher service.TransactionFetcher,
	classifier Classifier,
	fallback Classifier,
	aiProbe BreakerProbe,
	reports ReportGenerator,
	bankBreaker Guard,
	cfg Config,
) *AuditEngine {
	if cfg.InsertBatchSize <= 0 {
		cfg = DefaultConfig()
	}
	return &AuditEngine{
		storage:     storage,
		fetcher:     fetcher,
		classifier:  classifier,
		fallback:    fallback,
		aiProbe:     aiProbe,
		reports:     reports,
		bankBreaker: bankBreaker,
		logger:      slog.Default().With("component", "audit_engine"),
		cfg:         cfg,
	}
}

// Run executes one complete audit over the account's transaction history.
// On failure the audit is marked FAILED with the error message stored;
// partial progress (already-stored transactions) is retained, not rolled
// back.
func (e *AuditEngine) Run(ctx context.Context, accessToken string, startDate, endDate time.Time) (*model.Audit, error) {
	audit := &model.Audit{
		ID:        uuid.NewString(),
		Status:    model.AuditStatusRunning,
		CreatedAt: time.Now(),
	}
	if err := e.storage.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("failed to create audit: %w", err)
	}

	e.logger.Info("audit started", "audit_id", audit.ID)

	transactions, err := e.fetchTransactions(ctx, accessToken, startDate, endDate)
	if err != nil {
		return audit, e.fail(ctx, audit, err)
	}

	if len(transactions) == 0 {
		err := common.Tagged(common.KindNoData, "bank-feed", common.ErrNoTransactions)
		return audit, e.fail(ctx, audit, err)
	}

	for i := range transactions {
		transactions[i].AuditID = audit.ID
	}

	inserted, err := e.insertTransactions(ctx, transactions)
	if err != nil {
		return audit, e.fail(ctx, audit, err)
	}
	audit.TransactionCount = inserted

	series := detect.Recurring(transactions)
	e.logger.Info("recurring series detected",
		"audit_id", audit.ID,
		"series_count", len(series))

	leaks := e.classify(ctx, series, audit.ID)

	if err := e.storage.SaveLeaks(ctx, leaks); err != nil {
		return audit, e.fail(ctx, audit, err)
	}

	e.aggregate(audit, leaks)

	now := time.Now()
	audit.Status = model.AuditStatusCompleted
	audit.CompletedAt = &now
	if err := e.storage.UpdateAudit(ctx, audit); err != nil {
		return audit, fmt.Errorf("failed to finalize audit: %w", err)
	}

	e.triggerReport(ctx, audit.ID)

	e.logger.Info("audit completed",
		"audit_id", audit.ID,
		"transactions", audit.TransactionCount,
		"leaks", audit.LeakCount,
		"monthly_waste", audit.TotalMonthlyWaste)

	return audit, nil
}

// fetchTransactions pulls the transaction history through the bank-feed
// circuit breaker.
func (e *AuditEngine) fetchTransactions(ctx context.Context, accessToken string, startDate, endDate time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := e.bankBreaker.Execute(ctx, func(ctx context.Context) error {
		fetched, fetchErr := e.fetcher.FetchTransactions(ctx, accessToken, startDate, endDate)
		if fetchErr != nil {
			return fetchErr
		}
		transactions = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return transactions, nil
}

// insertTransactions funnels every transaction through the bulk-insert batch
// processor and returns the number of rows actually stored (duplicates are
// skipped by hash).
func (e *AuditEngine) insertTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	var (
		insertedMu sync.Mutex
		inserted   int
	)

	processor := batch.New(e.cfg.InsertBatchSize, e.cfg.InsertMaxWait,
		func(ctx context.Context, items []model.Transaction) ([]struct{}, error) {
			count, err := e.storage.SaveTransactions(ctx, items)
			if err != nil {
				return nil, err
			}
			insertedMu.Lock()
			inserted += count
			insertedMu.Unlock()
			return make([]struct{}, len(items)), nil
		})

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	for _, txn := range transactions {
		wg.Add(1)
		go func(txn model.Transaction) {
			defer wg.Done()
			if _, err := processor.Add(ctx, txn); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
		}(txn)
	}
	wg.Wait()

	if firstErr != nil {
		return 0, fmt.Errorf("failed to store transactions: %w", firstErr)
	}
	return inserted, nil
}

// classify routes series through the AI classifier, diverting to the
// fallback rules when the AI circuit is known open or no AI classifier is
// configured. An empty result from a healthy AI path is a valid outcome.
func (e *AuditEngine) classify(ctx context.Context, series []model.RecurringSeries, auditID string) []model.Leak {
	if len(series) == 0 {
		return nil
	}

	if e.classifier == nil {
		return e.classifyFallback(ctx, series, auditID, "no AI classifier configured")
	}

	leaks := e.classifier.Classify(ctx, series, auditID)

	if len(leaks) == 0 && e.aiProbe != nil && e.aiProbe.State() == model.CircuitOpen {
		return e.classifyFallback(ctx, series, auditID, "AI circuit open")
	}

	return leaks
}

func (e *AuditEngine) classifyFallback(ctx context.Context, series []model.RecurringSeries, auditID, reason string) []model.Leak {
	if e.fallback == nil {
		return nil
	}
	e.logger.Warn("diverting to rule-based fallback classifier",
		"audit_id", auditID,
		"reason", reason)
	return e.fallback.Classify(ctx, series, auditID)
}

// aggregate folds leak totals into the audit record.
func (e *AuditEngine) aggregate(audit *model.Audit, leaks []model.Leak) {
	monthly := decimal.Zero
	annual := decimal.Zero
	for _, leak := range leaks {
		monthly = monthly.Add(leak.MonthlyCost)
		annual = annual.Add(leak.AnnualCost)
	}
	audit.LeakCount = len(leaks)
	audit.TotalMonthlyWaste = monthly
	audit.TotalAnnualWaste = annual
}

// triggerReport invokes the downstream report generator in-process with one
// retry. Failure to generate is logged, not retried further, and never fatal
// to the audit run.
func (e *AuditEngine) triggerReport(ctx context.Context, auditID string) {
	if e.reports == nil {
		return
	}

	err := common.WithRetry(ctx, func() error {
		return e.reports.Generate(ctx, auditID)
	}, common.RetryOptions{MaxAttempts: 2, InitialDelay: time.Second})
	if err != nil {
		e.logger.Error("report generation failed",
			"audit_id", auditID,
			"error", err)
	}
}

// fail marks the audit FAILED, stores the error message, and logs the
// recovery action for the failure kind. The original error is returned so
// callers can surface it.
func (e *AuditEngine) fail(ctx context.Context, audit *model.Audit, cause error) error {
	kind := common.KindOf(cause)
	now := time.Now()

	audit.Status = model.AuditStatusFailed
	audit.ErrorMessage = cause.Error()
	audit.CompletedAt = &now

	if err := e.storage.UpdateAudit(ctx, audit); err != nil {
		e.logger.Error("failed to record audit failure",
			"audit_id", audit.ID,
			"error", err)
	}

	e.logger.Error("audit failed",
		"audit_id", audit.ID,
		"kind", kind,
		"recovery", common.RecoveryFor(kind),
		"error", cause)

	return cause
}
