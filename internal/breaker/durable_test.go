package breaker

import (
	"context"
	"testing"
	"time"

	"github.com/jkessler/finleak/internal/common"
	"github.com/jkessler/finleak/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory StateStore.
type memStore struct {
	records map[string]model.BreakerRecord
	puts    int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]model.BreakerRecord)}
}

func (m *memStore) GetBreakerRecord(_ context.Context, serviceName string) (*model.BreakerRecord, error) {
	record, ok := m.records[serviceName]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := record
	return &copied, nil
}

func (m *memStore) PutBreakerRecord(_ context.Context, record *model.BreakerRecord) error {
	m.puts++
	m.records[record.ServiceName] = *record
	return nil
}

func newTestDurable(store StateStore, cfg Config) (*Durable, *time.Time) {
	d := NewDurable(store, cfg)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	return d, &now
}

func TestDurable_InitializesClosedState(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d, _ := newTestDurable(store, Config{ServiceName: "bank-feed"})

	require.NoError(t, d.Execute(ctx, okWork))

	record, ok := store.records["bank-feed"]
	require.True(t, ok, "first call must persist an initial record")
	assert.Equal(t, model.CircuitClosed, record.State)
	assert.Equal(t, 0, record.FailureCount)
}

func TestDurable_OpensAndPersists(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d, _ := newTestDurable(store, Config{ServiceName: "bank-feed", FailureThreshold: 2, ResetTimeout: time.Minute})

	require.Error(t, d.Execute(ctx, failingWork))
	assert.Equal(t, model.CircuitClosed, store.records["bank-feed"].State)

	require.Error(t, d.Execute(ctx, failingWork))
	record := store.records["bank-feed"]
	assert.Equal(t, model.CircuitOpen, record.State)
	assert.Equal(t, 2, record.FailureCount)
	require.NotNil(t, record.LastFailureAt)
	assert.False(t, record.NextAttemptAt.IsZero())
}

func TestDurable_OpenStateSurvivesNewInstance(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	cfg := Config{ServiceName: "bank-feed", FailureThreshold: 1, ResetTimeout: time.Minute}

	first, _ := newTestDurable(store, cfg)
	require.Error(t, first.Execute(ctx, failingWork))

	// A fresh instance over the same store sees the open circuit.
	second, _ := newTestDurable(store, cfg)
	invoked := false
	err := second.Execute(ctx, func(_ context.Context) error {
		invoked = true
		return nil
	})

	var openErr *OpenError
	require.ErrorAs(t, err, &openErr)
	assert.False(t, invoked)
}

func TestDurable_HalfOpenTransitionIsPersistedBeforeCall(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d, now := newTestDurable(store, Config{ServiceName: "bank-feed", FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, d.Execute(ctx, failingWork))
	*now = now.Add(61 * time.Second)

	var stateDuringCall model.CircuitState
	require.Error(t, d.Execute(ctx, func(_ context.Context) error {
		stateDuringCall = store.records["bank-feed"].State
		return errDependency
	}))

	assert.Equal(t, model.CircuitHalfOpen, stateDuringCall)
	assert.Equal(t, model.CircuitOpen, store.records["bank-feed"].State,
		"trial failure reopens the circuit")
}

func TestDurable_RecoversThroughHalfOpen(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	d, now := newTestDurable(store, Config{ServiceName: "bank-feed", FailureThreshold: 1, SuccessThreshold: 1, ResetTimeout: time.Minute})

	require.Error(t, d.Execute(ctx, failingWork))
	*now = now.Add(61 * time.Second)

	require.NoError(t, d.Execute(ctx, okWork))
	record := store.records["bank-feed"]
	assert.Equal(t, model.CircuitClosed, record.State)
	assert.Equal(t, 0, record.FailureCount)
}

func TestDurable_Defaults(t *testing.T) {
	d := NewDurable(newMemStore(), Config{ServiceName: "bank-feed"})
	assert.Equal(t, 3, d.cfg.FailureThreshold)
	assert.Equal(t, 1, d.cfg.SuccessThreshold)
	assert.Equal(t, 10*time.Second, d.cfg.Timeout)
	assert.Equal(t, 60*time.Second, d.cfg.ResetTimeout)
}
