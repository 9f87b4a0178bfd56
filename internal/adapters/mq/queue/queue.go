// Package queue holds durable writes in memory until a writer drains them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Kind selects which store operation a Write performs.
type Kind int

// Write kinds.
const (
	KindClick Kind = iota + 1
	KindDisqualification
)

// Write is one pending store mutation.
type Write struct {
	Kind             Kind
	Click            model.Click
	Disqualification model.Disqualification
}

// ClickWrite wraps an accepted click.
func ClickWrite(c model.Click) Write {
	return Write{Kind: KindClick, Click: c}
}

// DisqualificationWrite wraps a disqualification.
func DisqualificationWrite(d model.Disqualification) Write {
	return Write{Kind: KindDisqualification, Disqualification: d}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a write. Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, w Write) bool

	// Dequeue returns the channel writes arrive on. It is closed after Close
	// once every queued write has been received.
	Dequeue(ctx context.Context) <-chan Write

	// Len returns the current number of queued writes.
	Len(ctx context.Context) int

	// Close stops accepting writes.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	writes   chan Write
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.writes = make(chan Write, q.capacity)

	metrics.UpdateWriteQueueCapacity(q.capacity)
	metrics.UpdateWriteQueueSize(0)

	return q
}

// Enqueue adds a write without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, w Write) bool { //nolint:gocritic // hugeParam: Write is passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed || ctx.Err() != nil {
		metrics.RecordWriteQueueRejected()
		return false
	}

	select {
	case q.writes <- w:
		metrics.UpdateWriteQueueSize(len(q.writes))
		return true
	default:
		metrics.RecordWriteQueueRejected()
		return false
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Write {
	return q.writes
}

// Len returns the current number of queued writes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.writes)
	metrics.UpdateWriteQueueSize(size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	close(q.writes)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
