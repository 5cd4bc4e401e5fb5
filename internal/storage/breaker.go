package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/model"
)

// GetBreakerRecord returns the persisted breaker state for a service, or
// common.ErrNotFound if the service has never been seen.
func (s *SQLiteStorage) GetBreakerRecord(ctx context.Context, serviceName string) (*model.BreakerRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var record model.BreakerRecord
	var state string
	var lastFailureAt, nextAttemptAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT service_name, state, failure_count, success_count, last_failure_at, next_attempt_at
		FROM breaker_state WHERE service_name = ?`, serviceName).Scan(
		&record.ServiceName,
		&state,
		&record.FailureCount,
		&record.SuccessCount,
		&lastFailureAt,
		&nextAttemptAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("breaker state for %s: %w", serviceName, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get breaker state: %w", err)
	}

	record.State = model.CircuitState(state)
	if lastFailureAt.Valid {
		record.LastFailureAt = &lastFailureAt.Time
	}
	if nextAttemptAt.Valid {
		record.NextAttemptAt = nextAttemptAt.Time
	}

	return &record, nil
}

// PutBreakerRecord upserts the breaker state for a service. Updates are
// last-write-wins; breaker state is advisory.
func (s *SQLiteStorage) PutBreakerRecord(ctx context.Context, record *model.BreakerRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil || record.ServiceName == "" {
		return fmt.Errorf("breaker record with service name is required")
	}

	var lastFailureAt sql.NullTime
	if record.LastFailureAt != nil {
		lastFailureAt = sql.NullTime{Time: *record.LastFailureAt, Valid: true}
	}
	var nextAttemptAt sql.NullTime
	if !record.NextAttemptAt.IsZero() {
		nextAttemptAt = sql.NullTime{Time: record.NextAttemptAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO breaker_state
			(service_name, state, failure_count, success_count, last_failure_at, next_attempt_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(service_name) DO UPDATE SET
			state = excluded.state,
			failure_count = excluded.failure_count,
			success_count = excluded.success_count,
			last_failure_at = excluded.last_failure_at,
			next_attempt_at = excluded.next_attempt_at,
			updated_at = CURRENT_TIMESTAMP`,
		record.ServiceName,
		string(record.State),
		record.FailureCount,
		record.SuccessCount,
		lastFailureAt,
		nextAttemptAt,
	)
	if err != nil {
		return fmt.Errorf("failed to put breaker state: %w", err)
	}
	return nil
}
