package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS audits (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					error_message TEXT,
					transaction_count INTEGER DEFAULT 0,
					leak_count INTEGER DEFAULT 0,
					total_monthly_waste TEXT DEFAULT '0',
					total_annual_waste TEXT DEFAULT '0',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_audits_status ON audits(status)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					audit_id TEXT NOT NULL,
					hash TEXT NOT NULL,
					date DATETIME NOT NULL,
					name TEXT NOT NULL,
					merchant_name TEXT,
					amount TEXT NOT NULL,
					categories TEXT,
					account_id TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(audit_id, hash),
					FOREIGN KEY (audit_id) REFERENCES audits(id)
				)`,
				`CREATE INDEX idx_transactions_audit ON transactions(audit_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(date)`,
				`CREATE INDEX idx_transactions_merchant ON transactions(merchant_name)`,

				`CREATE TABLE IF NOT EXISTS leaks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					audit_id TEXT NOT NULL,
					leak_type TEXT NOT NULL,
					merchant_name TEXT NOT NULL,
					monthly_cost TEXT NOT NULL,
					annual_cost TEXT NOT NULL,
					description TEXT,
					recommendation TEXT,
					confidence TEXT NOT NULL,
					source TEXT NOT NULL,
					evidence TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (audit_id) REFERENCES audits(id)
				)`,
				`CREATE INDEX idx_leaks_audit ON leaks(audit_id)`,
				`CREATE INDEX idx_leaks_type ON leaks(leak_type)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add circuit breaker state",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS breaker_state (
					service_name TEXT PRIMARY KEY,
					state TEXT NOT NULL,
					failure_count INTEGER DEFAULT 0,
					success_count INTEGER DEFAULT 0,
					last_failure_at DATETIME,
					next_attempt_at DATETIME,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`)
			return err
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
