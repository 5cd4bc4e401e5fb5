package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/model"
	"github.com/shopspring/decimal"
)

// CreateAudit inserts a new audit record.
func (s *SQLiteStorage) CreateAudit(ctx context.Context, audit *model.Audit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if audit == nil || audit.ID == "" {
		return fmt.Errorf("audit with ID is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audits (id, status, error_message, transaction_count, leak_count,
			total_monthly_waste, total_annual_waste, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		audit.ID,
		string(audit.Status),
		audit.ErrorMessage,
		audit.TransactionCount,
		audit.LeakCount,
		audit.TotalMonthlyWaste.String(),
		audit.TotalAnnualWaste.String(),
		audit.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit: %w", err)
	}
	return nil
}

// GetAudit returns the audit with the given ID, or common.ErrNotFound.
func (s *SQLiteStorage) GetAudit(ctx context.Context, id string) (*model.Audit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, error_message, transaction_count, leak_count,
			total_monthly_waste, total_annual_waste, created_at, completed_at
		FROM audits WHERE id = ?`, id)

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return audit, nil
}

// UpdateAudit overwrites an existing audit record.
func (s *SQLiteStorage) UpdateAudit(ctx context.Context, audit *model.Audit) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var completedAt sql.NullTime
	if audit.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *audit.CompletedAt, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE audits
		SET status = ?, error_message = ?, transaction_count = ?, leak_count = ?,
			total_monthly_waste = ?, total_annual_waste = ?, completed_at = ?
		WHERE id = ?`,
		string(audit.Status),
		audit.ErrorMessage,
		audit.TransactionCount,
		audit.LeakCount,
		audit.TotalMonthlyWaste.String(),
		audit.TotalAnnualWaste.String(),
		completedAt,
		audit.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update audit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("audit %s: %w", audit.ID, common.ErrNotFound)
	}
	return nil
}

// ListAudits returns the most recent audits, newest first.
func (s *SQLiteStorage) ListAudits(ctx context.Context, limit int) ([]model.Audit, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, error_message, transaction_count, leak_count,
			total_monthly_waste, total_annual_waste, created_at, completed_at
		FROM audits ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audits: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var audits []model.Audit
	for rows.Next() {
		audit, scanErr := scanAudit(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan audit: %w", scanErr)
		}
		audits = append(audits, *audit)
	}
	return audits, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAudit(row rowScanner) (*model.Audit, error) {
	var audit model.Audit
	var status, monthlyWaste, annualWaste string
	var errorMessage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&audit.ID,
		&status,
		&errorMessage,
		&audit.TransactionCount,
		&audit.LeakCount,
		&monthlyWaste,
		&annualWaste,
		&audit.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	audit.Status = model.AuditStatus(status)
	audit.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		audit.CompletedAt = &completedAt.Time
	}

	if audit.TotalMonthlyWaste, err = decimal.NewFromString(monthlyWaste); err != nil {
		return nil, fmt.Errorf("bad monthly waste value %q: %w", monthlyWaste, err)
	}
	if audit.TotalAnnualWaste, err = decimal.NewFromString(annualWaste); err != nil {
		return nil, fmt.Errorf("bad annual waste value %q: %w", annualWaste, err)
	}

	return &audit, nil
}
