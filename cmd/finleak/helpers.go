package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jkessler/finleak/internal/breaker"
	"github.com/jkessler/finleak/internal/engine"
	"github.com/jkessler/finleak/internal/fallback"
	"github.com/jkessler/finleak/internal/llm"
	"github.com/jkessler/finleak/internal/report"
	"github.com/jkessler/finleak/internal/service"
	"github.com/jkessler/finleak/internal/storage"
	"github.com/spf13/viper"
)

func openStorage() (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "finleak", "finleak.db")
	}
	return storage.NewSQLiteStorage(dbPath)
}

// buildClassifier creates the AI classifier and its breaker from config.
// Returns nils when no provider is configured; the engine then uses the
// fallback rules.
func buildClassifier() (engine.Classifier, *breaker.Breaker) {
	provider := viper.GetString("ai.provider")
	if provider == "" {
		slog.Info("no AI provider configured, rule-based fallback will be used")
		return nil, nil
	}

	client, err := llm.NewClient(llm.Config{
		Provider:    provider,
		APIKey:      viper.GetString("ai.api_key"),
		Model:       viper.GetString("ai.model"),
		Temperature: viper.GetFloat64("ai.temperature"),
		MaxTokens:   viper.GetInt("ai.max_tokens"),
	})
	if err != nil {
		slog.Warn("failed to create AI client, rule-based fallback will be used", "error", err)
		return nil, nil
	}

	cfg := breaker.AIConfig("ai-classifier")
	if threshold := viper.GetInt("breaker.ai.failure_threshold"); threshold > 0 {
		cfg.FailureThreshold = threshold
	}
	if reset := viper.GetDuration("breaker.ai.reset_timeout"); reset > 0 {
		cfg.ResetTimeout = reset
	}
	br := breaker.New(cfg)

	return llm.NewLeakClassifier(client, br, slog.Default()), br
}

func buildEngine(store *storage.SQLiteStorage, fetcher service.TransactionFetcher) *engine.AuditEngine {
	classifier, aiBreaker := buildClassifier()

	bankCfg := breaker.BankFeedConfig("bank-feed")
	if threshold := viper.GetInt("breaker.bank.failure_threshold"); threshold > 0 {
		bankCfg.FailureThreshold = threshold
	}
	if reset := viper.GetDuration("breaker.bank.reset_timeout"); reset > 0 {
		bankCfg.ResetTimeout = reset
	}
	if timeout := viper.GetDuration("breaker.bank.timeout"); timeout > 0 {
		bankCfg.Timeout = timeout
	}

	reportDir := viper.GetString("report.dir")
	if reportDir == "" {
		reportDir = "reports"
	}

	cfg := engine.DefaultConfig()
	if size := viper.GetInt("engine.insert_batch_size"); size > 0 {
		cfg.InsertBatchSize = size
	}
	if wait := viper.GetDuration("engine.insert_max_wait"); wait > 0 {
		cfg.InsertMaxWait = wait
	}

	var probe engine.BreakerProbe
	if aiBreaker != nil {
		probe = aiBreaker
	}

	// The bank-feed breaker persists its state in the database and survives
	// process restarts.
	return engine.New(
		store,
		fetcher,
		classifier,
		fallback.NewRuleClassifier(),
		probe,
		report.NewGenerator(store, reportDir),
		breaker.NewDurable(store, bankCfg),
		cfg,
	)
}

func parseDateFlag(value string, fallbackDays int) (time.Time, error) {
	if value == "" {
		return time.Now().AddDate(0, 0, -fallbackDays), nil
	}
	date, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", value)
	}
	return date, nil
}
