package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// SaveTransactions bulk-inserts transactions, skipping duplicates by
// (audit_id, hash). It returns the number of rows actually inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if len(transactions) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO transactions
			(id, audit_id, hash, date, name, merchant_name, amount, categories, account_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, txn := range transactions {
		categories, marshalErr := json.Marshal(txn.Categories)
		if marshalErr != nil {
			return 0, fmt.Errorf("failed to marshal categories for %s: %w", txn.ID, marshalErr)
		}

		result, execErr := stmt.ExecContext(ctx,
			txn.ID,
			txn.AuditID,
			txn.Hash,
			txn.Date,
			txn.Name,
			txn.MerchantName,
			txn.Amount.String(),
			string(categories),
			txn.AccountID,
		)
		if execErr != nil {
			return 0, fmt.Errorf("failed to insert transaction %s: %w", txn.ID, execErr)
		}

		affected, _ := result.RowsAffected()
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// GetTransactionsByAudit returns all transactions for one audit, date
// ascending.
func (s *SQLiteStorage) GetTransactionsByAudit(ctx context.Context, auditID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, hash, date, name, merchant_name, amount, categories, account_id
		FROM transactions WHERE audit_id = ? ORDER BY date ASC`, auditID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionsPage returns one page of an audit's transactions plus the
// total transaction count. Pages are 1-based, contiguous, non-overlapping.
func (s *SQLiteStorage) GetTransactionsPage(ctx context.Context, auditID string, page, pageSize int) ([]model.Transaction, int, error) {
	if err := validateContext(ctx); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 50
	}

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE audit_id = ?`, auditID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, audit_id, hash, date, name, merchant_name, amount, categories, account_id
		FROM transactions WHERE audit_id = ?
		ORDER BY date ASC LIMIT ? OFFSET ?`,
		auditID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	transactions, err := scanTransactions(rows)
	if err != nil {
		return nil, 0, err
	}
	return transactions, total, nil
}

type sqlRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransactions(rows sqlRows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var amount, categories string

		err := rows.Scan(
			&txn.ID,
			&txn.AuditID,
			&txn.Hash,
			&txn.Date,
			&txn.Name,
			&txn.MerchantName,
			&amount,
			&categories,
			&txn.AccountID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if txn.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("bad amount value %q: %w", amount, err)
		}
		if categories != "" {
			if err := json.Unmarshal([]byte(categories), &txn.Categories); err != nil {
				return nil, fmt.Errorf("bad categories value: %w", err)
			}
		}

		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}
