package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/model"
)

// StateStore persists breaker records keyed by service name.
type StateStore interface {
	GetBreakerRecord(ctx context.Context, serviceName string) (*model.BreakerRecord, error)
	PutBreakerRecord(ctx context.Context, record *model.BreakerRecord) error
}

// Durable is a circuit breaker whose state is read from and written to
// durable storage around every call, so it survives process restarts and is
// shared across concurrent process instances. Counter mutations are
// last-write-wins; breaker state is advisory, not safety-critical.
type Durable struct {
	store StateStore
	now   func() time.Time
	cfg   Config
}

// NewDurable creates a durable breaker. Defaults are stricter than the
// transient variant's, reflecting its use around a single costly external
// call: failureThreshold 3, successThreshold 1, timeout 10s.
func NewDurable(store StateStore, cfg Config) *Durable {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 60 * time.Second
	}
	return &Durable{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}
}

// Execute runs work under the durable breaker, loading the persisted record
// before the call and storing the updated record after it.
func (d *Durable) Execute(ctx context.Context, work func(ctx context.Context) error) error {
	record, err := d.loadOrInit(ctx)
	if err != nil {
		return fmt.Errorf("failed to load breaker state for %s: %w", d.cfg.ServiceName, err)
	}

	now := d.now()
	switch record.State {
	case model.CircuitOpen:
		if now.Before(record.NextAttemptAt) {
			return &OpenError{Service: d.cfg.ServiceName, RetryAt: record.NextAttemptAt}
		}
		record.State = model.CircuitHalfOpen
		if err := d.store.PutBreakerRecord(ctx, record); err != nil {
			return fmt.Errorf("failed to persist breaker state for %s: %w", d.cfg.ServiceName, err)
		}
	case model.CircuitHalfOpen, model.CircuitClosed:
	}

	workErr := d.invoke(ctx, work)
	if workErr != nil {
		d.recordFailure(ctx, record, workErr)
		return workErr
	}

	d.recordSuccess(ctx, record)
	return nil
}

func (d *Durable) loadOrInit(ctx context.Context) (*model.BreakerRecord, error) {
	record, err := d.store.GetBreakerRecord(ctx, d.cfg.ServiceName)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	record = &model.BreakerRecord{
		ServiceName: d.cfg.ServiceName,
		State:       model.CircuitClosed,
	}
	if err := d.store.PutBreakerRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (d *Durable) invoke(ctx context.Context, work func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- work(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		return &TimeoutError{Service: d.cfg.ServiceName, After: d.cfg.Timeout}
	}
}

func (d *Durable) recordSuccess(ctx context.Context, record *model.BreakerRecord) {
	record.FailureCount = 0
	if record.State == model.CircuitHalfOpen {
		record.SuccessCount++
		if record.SuccessCount >= d.cfg.SuccessThreshold {
			record.State = model.CircuitClosed
			record.SuccessCount = 0
		}
	}
	if err := d.store.PutBreakerRecord(ctx, record); err != nil {
		slog.Warn("failed to persist breaker success",
			"service", d.cfg.ServiceName, "error", err)
	}
}

func (d *Durable) recordFailure(ctx context.Context, record *model.BreakerRecord, cause error) {
	now := d.now()
	record.FailureCount++
	record.SuccessCount = 0
	record.LastFailureAt = &now

	if record.State == model.CircuitHalfOpen || record.FailureCount >= d.cfg.FailureThreshold {
		record.State = model.CircuitOpen
		record.NextAttemptAt = now.Add(d.cfg.ResetTimeout)
		slog.Warn("durable circuit breaker opened",
			"service", d.cfg.ServiceName,
			"failure_count", record.FailureCount,
			"next_attempt_at", record.NextAttemptAt,
			"error", cause)
	}

	if err := d.store.PutBreakerRecord(ctx, record); err != nil {
		slog.Warn("failed to persist breaker failure",
			"service", d.cfg.ServiceName, "error", err)
	}
}
