package batch

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_FlushesWhenFull(t *testing.T) {
	ctx := context.Background()

	var (
		mu      sync.Mutex
		batches [][]int
	)
	p := New(3, time.Hour, func(_ context.Context, items []int) ([]string, error) {
		mu.Lock()
		batches = append(batches, items)
		mu.Unlock()
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = strconv.Itoa(item)
		}
		return out, nil
	})

	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := p.Add(ctx, i)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches, 1, "three adds at size three must flush exactly once")
	assert.Len(t, batches[0], 3)

	// Each waiter got the result for its own item.
	for i := 0; i < 3; i++ {
		assert.Equal(t, strconv.Itoa(i), results[i])
	}
}

func TestProcessor_FlushesOnTimer(t *testing.T) {
	ctx := context.Background()

	flushed := make(chan []int, 1)
	p := New(100, 20*time.Millisecond, func(_ context.Context, items []int) ([]struct{}, error) {
		flushed <- items
		return make([]struct{}, len(items)), nil
	})

	start := time.Now()
	_, err := p.Add(ctx, 42)
	require.NoError(t, err)

	select {
	case items := <-flushed:
		assert.Equal(t, []int{42}, items)
	default:
		t.Fatal("expected a flushed batch")
	}
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestProcessor_ErrorFansOutToAllWaiters(t *testing.T) {
	ctx := context.Background()
	batchErr := errors.New("insert failed")

	p := New(2, time.Hour, func(_ context.Context, items []int) ([]int, error) {
		return nil, batchErr
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = p.Add(ctx, i)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, errs[i], batchErr)
	}
}

func TestProcessor_ResultCountMismatchIsAnError(t *testing.T) {
	ctx := context.Background()

	p := New(1, time.Hour, func(_ context.Context, items []int) ([]int, error) {
		return []int{1, 2, 3}, nil
	})

	_, err := p.Add(ctx, 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 results for 1 items")
}

func TestProcessor_ManualFlush(t *testing.T) {
	ctx := context.Background()

	processed := make(chan int, 10)
	p := New(100, time.Hour, func(_ context.Context, items []int) ([]struct{}, error) {
		for _, item := range items {
			processed <- item
		}
		return make([]struct{}, len(items)), nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Add(ctx, 1)
		assert.NoError(t, err)
	}()

	// Wait for the item to be queued, then force the flush.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.queue) == 1
	}, time.Second, time.Millisecond)

	p.Flush(ctx)
	<-done
	assert.Equal(t, 1, <-processed)
}

func TestProcessor_AddHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := New[int, struct{}](100, time.Hour, func(_ context.Context, items []int) ([]struct{}, error) {
		return make([]struct{}, len(items)), nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := p.Add(ctx, 1)
		done <- err
	}()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.queue) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestProcessor_DefaultBounds(t *testing.T) {
	p := New[int, int](0, 0, func(_ context.Context, items []int) ([]int, error) {
		return items, nil
	})
	assert.Equal(t, 100, p.maxBatchSize)
	assert.Equal(t, 100*time.Millisecond, p.maxWait)
}
