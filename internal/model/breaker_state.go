package model

import "time"

// CircuitState is the position of a circuit breaker's state machine.
type CircuitState string

// Circuit breaker states.
const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// BreakerRecord is the persisted form of a circuit breaker's state, keyed by
// logical service name. Records are created lazily on first use of a named
// service and updated on every call outcome; they are never deleted.
type BreakerRecord struct {
	NextAttemptAt time.Time
	LastFailureAt *time.Time
	ServiceName   string
	State         CircuitState
	FailureCount  int
	SuccessCount  int
}
