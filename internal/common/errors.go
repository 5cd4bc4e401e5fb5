// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Bank feed errors.
	ErrBankConnection = errors.New("bank connection failed")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrReauthRequired = errors.New("reauthorization required")

	// Pipeline errors.
	ErrNoTransactions = errors.New("no transactions to analyze")

	// Retry errors.
	ErrMaxRetries = errors.New("max retries exceeded")
)

// FailureKind is a closed set of failure categories produced at the point of
// failure. Recovery selection switches on the kind, never on message text.
type FailureKind string

// Failure kinds.
const (
	KindAuthExpired       FailureKind = "auth_expired"
	KindRateLimited       FailureKind = "rate_limited"
	KindDependencyTimeout FailureKind = "dependency_timeout"
	KindParseFailure      FailureKind = "parse_failure"
	KindNoData            FailureKind = "no_data"
	KindUnrecoverable     FailureKind = "unrecoverable"
)

// RecoveryAction is what the surrounding policy should do about a failure.
type RecoveryAction string

// Recovery actions.
const (
	RecoveryReauthenticate     RecoveryAction = "reauthenticate"
	RecoveryRetry              RecoveryAction = "retry"
	RecoveryFallback           RecoveryAction = "fallback"
	RecoveryManualIntervention RecoveryAction = "manual_intervention"
)

// PipelineError tags an underlying failure with its kind and the logical
// service that produced it.
type PipelineError struct {
	Err     error
	Service string
	Kind    FailureKind
}

func (e *PipelineError) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Tagged wraps err with a failure kind and service name.
func Tagged(kind FailureKind, service string, err error) error {
	return &PipelineError{Kind: kind, Service: service, Err: err}
}

// KindOf extracts the failure kind from an error chain, defaulting to
// unrecoverable for anything untagged.
func KindOf(err error) FailureKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindDependencyTimeout
	}
	if errors.Is(err, ErrRateLimit) {
		return KindRateLimited
	}
	if errors.Is(err, ErrReauthRequired) {
		return KindAuthExpired
	}
	if errors.Is(err, ErrNoTransactions) {
		return KindNoData
	}
	return KindUnrecoverable
}

// RecoveryFor maps a failure kind to the action the pipeline should take.
func RecoveryFor(kind FailureKind) RecoveryAction {
	switch kind {
	case KindAuthExpired:
		return RecoveryReauthenticate
	case KindRateLimited, KindDependencyTimeout:
		return RecoveryRetry
	case KindParseFailure:
		return RecoveryFallback
	default:
		return RecoveryManualIntervention
	}
}

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
