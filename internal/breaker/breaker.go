// Package breaker implements circuit breakers that guard calls to unreliable
// external dependencies. The transient Breaker holds its state in memory; the
// Durable variant persists state through a StateStore so it survives process
// restarts.
package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jkessler/finleak/internal/model"
)

// OpenError is returned when a call is rejected because the circuit is open.
type OpenError struct {
	RetryAt time.Time
	Service string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for %s until %s", e.Service, e.RetryAt.Format(time.RFC3339))
}

// TimeoutError is returned when the wrapped work exceeds the per-call timeout.
type TimeoutError struct {
	Service string
	After   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s call timed out after %s", e.Service, e.After)
}

// Config holds circuit breaker tuning for one named service.
type Config struct {
	ServiceName      string
	FailureThreshold int
	SuccessThreshold int
	Timeout          time.Duration
	ResetTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 60 * time.Second
	}
	return c
}

// BankFeedConfig returns breaker settings for the bank-data dependency:
// stricter threshold and a longer reset, since bank outages tend to persist.
func BankFeedConfig(service string) Config {
	return Config{
		ServiceName:      service,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     120 * time.Second,
	}
}

// AIConfig returns breaker settings for the AI classification dependency.
func AIConfig(service string) Config {
	return Config{
		ServiceName:      service,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     60 * time.Second,
	}
}

// PaymentConfig returns breaker settings for the payment processor: lenient
// threshold and a long reset.
func PaymentConfig(service string) Config {
	return Config{
		ServiceName:      service,
		FailureThreshold: 8,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		ResetTimeout:     300 * time.Second,
	}
}

// Breaker is the transient, in-memory circuit breaker. State transitions:
// CLOSED -> OPEN after FailureThreshold consecutive failures; OPEN -> HALF_OPEN
// once ResetTimeout has elapsed; HALF_OPEN -> CLOSED after SuccessThreshold
// trial successes, or back to OPEN on a trial failure.
type Breaker struct {
	now              func() time.Time
	lastFailureAt    *time.Time
	nextAttemptAt    time.Time
	state            model.CircuitState
	cfg              Config
	failureCount     int
	successCount     int
	halfOpenInFlight bool
	mu               sync.Mutex
}

// New creates a transient breaker for one named service.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:   cfg.withDefaults(),
		state: model.CircuitClosed,
		now:   time.Now,
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() model.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Record returns a snapshot of the breaker's counters for diagnostics.
func (b *Breaker) Record() model.BreakerRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.BreakerRecord{
		ServiceName:   b.cfg.ServiceName,
		State:         b.state,
		FailureCount:  b.failureCount,
		SuccessCount:  b.successCount,
		LastFailureAt: b.lastFailureAt,
		NextAttemptAt: b.nextAttemptAt,
	}
}

// Execute runs work under the breaker. If the circuit is open and the reset
// timeout has not elapsed, work is never invoked and an *OpenError is
// returned. Every invocation races work against the per-call timeout;
// exceeding it counts as a failure with a *TimeoutError.
func (b *Breaker) Execute(ctx context.Context, work func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := b.invoke(ctx, work)
	if err != nil {
		b.onFailure(err)
		return err
	}

	b.onSuccess()
	return nil
}

// admit decides whether a call may proceed, transitioning OPEN -> HALF_OPEN
// when the reset timeout has elapsed. In HALF_OPEN exactly one trial call is
// in flight at a time.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case model.CircuitOpen:
		if b.now().Before(b.nextAttemptAt) {
			return &OpenError{Service: b.cfg.ServiceName, RetryAt: b.nextAttemptAt}
		}
		b.state = model.CircuitHalfOpen
		b.halfOpenInFlight = true
		slog.Info("circuit breaker half-open, allowing trial call",
			"service", b.cfg.ServiceName)
	case model.CircuitHalfOpen:
		if b.halfOpenInFlight {
			return &OpenError{Service: b.cfg.ServiceName, RetryAt: b.nextAttemptAt}
		}
		b.halfOpenInFlight = true
	case model.CircuitClosed:
	}
	return nil
}

func (b *Breaker) invoke(ctx context.Context, work func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- work(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		return &TimeoutError{Service: b.cfg.ServiceName, After: b.cfg.Timeout}
	}
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0

	if b.state == model.CircuitHalfOpen {
		b.halfOpenInFlight = false
		b.successCount++
		if b.successCount >= b.cfg.SuccessThreshold {
			b.state = model.CircuitClosed
			b.successCount = 0
			slog.Info("circuit breaker closed",
				"service", b.cfg.ServiceName)
		}
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failureCount++
	b.successCount = 0
	b.lastFailureAt = &now

	if b.state == model.CircuitHalfOpen || b.failureCount >= b.cfg.FailureThreshold {
		b.state = model.CircuitOpen
		b.halfOpenInFlight = false
		b.nextAttemptAt = now.Add(b.cfg.ResetTimeout)
		slog.Warn("circuit breaker opened",
			"service", b.cfg.ServiceName,
			"failure_count", b.failureCount,
			"next_attempt_at", b.nextAttemptAt,
			"error", err)
	}
}
