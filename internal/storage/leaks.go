package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// SaveLeaks inserts leak records for an audit.
func (s *SQLiteStorage) SaveLeaks(ctx context.Context, leaks []model.Leak) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(leaks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO leaks
			(audit_id, leak_type, merchant_name, monthly_cost, annual_cost,
			 description, recommendation, confidence, source, evidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range leaks {
		leak := &leaks[i]
		if err := leak.Validate(); err != nil {
			return fmt.Errorf("invalid leak for %s: %w", leak.MerchantName, err)
		}

		evidence, marshalErr := json.Marshal(leak.Evidence)
		if marshalErr != nil {
			return fmt.Errorf("failed to marshal evidence: %w", marshalErr)
		}

		result, execErr := stmt.ExecContext(ctx,
			leak.AuditID,
			string(leak.Type),
			leak.MerchantName,
			leak.MonthlyCost.String(),
			leak.AnnualCost.String(),
			leak.Description,
			leak.Recommendation,
			leak.ConfidenceScore.String(),
			string(leak.Source),
			string(evidence),
		)
		if execErr != nil {
			return fmt.Errorf("failed to insert leak for %s: %w", leak.MerchantName, execErr)
		}

		if id, idErr := result.LastInsertId(); idErr == nil {
			leak.ID = id
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leaks: %w", err)
	}
	return nil
}

// GetLeaksByAudit returns all leaks recorded for one audit.
func (s *SQLiteStorage) GetLeaksByAudit(ctx context.Context, auditID string) ([]model.Leak, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, leak_type, merchant_name, monthly_cost, annual_cost,
			description, recommendation, confidence, source, evidence
		FROM leaks WHERE audit_id = ? ORDER BY id ASC`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leaks []model.Leak
	for rows.Next() {
		var leak model.Leak
		var leakType, monthlyCost, annualCost, confidence, source, evidence string

		err := rows.Scan(
			&leak.ID,
			&leak.AuditID,
			&leakType,
			&leak.MerchantName,
			&monthlyCost,
			&annualCost,
			&leak.Description,
			&leak.Recommendation,
			&confidence,
			&source,
			&evidence,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leak: %w", err)
		}

		leak.Type = model.LeakType(leakType)
		leak.Source = model.LeakSource(source)

		if leak.MonthlyCost, err = decimal.NewFromString(monthlyCost); err != nil {
			return nil, fmt.Errorf("bad monthly cost %q: %w", monthlyCost, err)
		}
		if leak.AnnualCost, err = decimal.NewFromString(annualCost); err != nil {
			return nil, fmt.Errorf("bad annual cost %q: %w", annualCost, err)
		}
		if leak.ConfidenceScore, err = decimal.NewFromString(confidence); err != nil {
			return nil, fmt.Errorf("bad confidence %q: %w", confidence, err)
		}
		if evidence != "" {
			if err := json.Unmarshal([]byte(evidence), &leak.Evidence); err != nil {
				return nil, fmt.Errorf("bad evidence value: %w", err)
			}
		}

		leaks = append(leaks, leak)
	}
	return leaks, rows.Err()
}
