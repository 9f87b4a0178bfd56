// Package writer drains the durable write queue into the aggregation store.
package writer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/clickrace/internal/adapters/mq/queue"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/logger"
	"github.com/okian/clickrace/pkg/metrics"
)

// Default writer configuration constants.
const (
	defaultWriterCount  = 2
	writeTimeout        = 5 * time.Second
	poolShutdownTimeout = 30 * time.Second
)

// Store is the slice of the aggregation store the writers need.
type Store interface {
	RecordClick(ctx context.Context, c model.Click) error
	RecordDisqualification(ctx context.Context, d model.Disqualification) (bool, error)
}

// Queue defines how writers receive pending writes.
type Queue interface {
	Enqueue(ctx context.Context, w queue.Write) bool
	Dequeue(ctx context.Context) <-chan queue.Write
	Close() error
}

// Writer applies writes from a channel until it closes or shutdown is signalled.
type Writer struct {
	store  Store
	name   string
	logger logger.Logger

	done chan struct{}
}

// NewWriter creates a writer.
func NewWriter(store Store, opts ...Option) *Writer {
	w := &Writer{
		store:  store,
		name:   "writer",
		logger: logger.Get().Named("writer"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run applies writes until writes is closed or stop fires.
func (w *Writer) Run(ctx context.Context, writes <-chan queue.Write, stop <-chan struct{}) {
	defer close(w.done)

	for {
		select {
		case <-stop:
			return
		case item, ok := <-writes:
			if !ok {
				return
			}
			metrics.UpdateWriteQueueSize(len(writes))
			if err := w.Apply(ctx, item); err != nil {
				w.logger.Error(ctx, "durable write failed", logger.Error(err))
			}
		}
	}
}

// Apply performs one write against the store. A cancelled ctx does not abort
// the write; it gets its own timeout so drained writes still land at shutdown.
func (w *Writer) Apply(ctx context.Context, item queue.Write) error { //nolint:gocritic // hugeParam: Write is passed by value for channel semantics
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	switch item.Kind {
	case queue.KindClick:
		if err := w.store.RecordClick(wctx, item.Click); err != nil {
			return fmt.Errorf("click %s/%s: %w", item.Click.SessionID, item.Click.UserID, err)
		}
	case queue.KindDisqualification:
		d := item.Disqualification
		inserted, err := w.store.RecordDisqualification(wctx, d)
		if err != nil {
			return fmt.Errorf("disqualification %s/%s: %w", d.SessionID, d.UserID, err)
		}
		if !inserted {
			w.logger.Debug(ctx, "disqualification already recorded by another worker",
				logger.String("session", d.SessionID), logger.String("user", d.UserID))
		}
	default:
		return fmt.Errorf("unknown write kind %d", item.Kind)
	}
	return nil
}

// Pool runs several writers over one queue and falls back to inline writes
// when the queue cannot take more.
type Pool struct {
	writers []*Writer
	queue   Queue
	store   Store

	stop     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewPool creates a writer pool.
func NewPool(writerCount int, q Queue, store Store) *Pool {
	if writerCount < 1 {
		writerCount = defaultWriterCount
	}

	p := &Pool{
		writers: make([]*Writer, writerCount),
		queue:   q,
		store:   store,
		stop:    make(chan struct{}),
		logger:  logger.Get().Named("writer-pool"),
	}
	for i := 0; i < writerCount; i++ {
		p.writers[i] = NewWriter(store, WithName("writer-"+strconv.Itoa(i)))
	}
	return p
}

// Start starts all writers.
func (p *Pool) Start(ctx context.Context) {
	writes := p.queue.Dequeue(ctx)
	for _, w := range p.writers {
		go w.Run(ctx, writes, p.stop)
	}
}

// Submit hands a write to the pool. If the queue refuses it, the write is
// applied on the caller's goroutine instead.
func (p *Pool) Submit(ctx context.Context, item queue.Write) { //nolint:gocritic // hugeParam: Write is passed by value for channel semantics
	if p.queue.Enqueue(ctx, item) {
		return
	}
	metrics.RecordInlineWrite()
	if err := p.writers[0].Apply(ctx, item); err != nil {
		p.logger.Error(ctx, "inline durable write failed", logger.Error(err))
	}
}

// Shutdown closes the queue and waits for the writers to drain it. Writers
// still busy when ctx expires are stopped and the rest of the queue is dropped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.writers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.stopOnce.Do(func() { close(p.stop) })
			p.logger.Warn(ctx, "writer shutdown timed out", logger.Int("writer", i))
			return fmt.Errorf("writer shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}
