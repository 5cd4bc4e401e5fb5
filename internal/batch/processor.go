// Package batch provides a generic collect-and-flush buffering primitive used
// to reduce the overhead of many small downstream writes.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ProcessFunc handles one flushed batch. Results must correspond
// positionally to the input items.
type ProcessFunc[T, R any] func(ctx context.Context, items []T) ([]R, error)

type result[R any] struct {
	err   error
	value R
}

type pending[T, R any] struct {
	done chan result[R]
	item T
}

// Processor buffers items and flushes them as a group when the queue reaches
// maxBatchSize or maxWait has elapsed since the first unflushed item was
// enqueued, whichever comes first. The flush strategy is supplied by
// composition rather than subclassing.
type Processor[T, R any] struct {
	process      ProcessFunc[T, R]
	timer        *time.Timer
	queue        []pending[T, R]
	maxBatchSize int
	maxWait      time.Duration
	mu           sync.Mutex
}

// New creates a processor with the given flush bounds and batch handler.
func New[T, R any](maxBatchSize int, maxWait time.Duration, process ProcessFunc[T, R]) *Processor[T, R] {
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}
	if maxWait <= 0 {
		maxWait = 100 * time.Millisecond
	}
	return &Processor[T, R]{
		maxBatchSize: maxBatchSize,
		maxWait:      maxWait,
		process:      process,
	}
}

// Add enqueues one item and blocks until its batch has been processed,
// returning the result that corresponds to this item or the batch-wide error.
func (p *Processor[T, R]) Add(ctx context.Context, item T) (R, error) {
	entry := pending[T, R]{item: item, done: make(chan result[R], 1)}

	p.mu.Lock()
	p.queue = append(p.queue, entry)

	var full []pending[T, R]
	switch {
	case len(p.queue) >= p.maxBatchSize:
		full = p.take()
	case len(p.queue) == 1:
		p.timer = time.AfterFunc(p.maxWait, func() {
			p.Flush(context.Background())
		})
	}
	p.mu.Unlock()

	if full != nil {
		p.dispatch(ctx, full)
	}

	select {
	case res := <-entry.done:
		return res.value, res.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Flush atomically takes the current queue contents and processes them.
func (p *Processor[T, R]) Flush(ctx context.Context) {
	p.mu.Lock()
	batch := p.take()
	p.mu.Unlock()

	if len(batch) > 0 {
		p.dispatch(ctx, batch)
	}
}

// take drains the queue and stops the pending wait timer. Callers must hold
// the lock.
func (p *Processor[T, R]) take() []pending[T, R] {
	batch := p.queue
	p.queue = nil
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return batch
}

// dispatch runs the batch handler and fans results back out to the waiters.
func (p *Processor[T, R]) dispatch(ctx context.Context, batch []pending[T, R]) {
	items := make([]T, len(batch))
	for i, entry := range batch {
		items[i] = entry.item
	}

	results, err := p.process(ctx, items)
	if err == nil && len(results) != len(items) {
		err = fmt.Errorf("batch handler returned %d results for %d items", len(results), len(items))
	}

	for i, entry := range batch {
		if err != nil {
			entry.done <- result[R]{err: err}
			continue
		}
		entry.done <- result[R]{value: results[i]}
	}
}
