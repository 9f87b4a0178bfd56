package writer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/clickrace/internal/adapters/mq/queue"
	"github.com/okian/clickrace/internal/adapters/mq/writer"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type memStore struct {
	mu     sync.Mutex
	clicks []model.Click
	dq     map[string]model.Disqualification
	fail   error
	delay  time.Duration
}

func newMemStore() *memStore {
	return &memStore{dq: map[string]model.Disqualification{}}
}

func (m *memStore) RecordClick(_ context.Context, c model.Click) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.clicks = append(m.clicks, c)
	return nil
}

func (m *memStore) RecordDisqualification(_ context.Context, d model.Disqualification) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := d.SessionID + "/" + d.UserID
	if _, ok := m.dq[key]; ok {
		return false, nil
	}
	m.dq[key] = d
	return true, nil
}

func (m *memStore) clickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks)
}

func TestWriterApply(t *testing.T) {
	Convey("Given a writer over an in-memory store", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		store := newMemStore()
		w := writer.NewWriter(store, writer.WithName("writer-test"))

		Convey("When applying each write kind", func() {
			So(w.Apply(ctx, queue.ClickWrite(model.Click{SessionID: "S1", UserID: "alice"})), ShouldBeNil)
			dq := model.Disqualification{SessionID: "S1", UserID: "bob", Reason: model.ReasonRateExceeded}
			So(w.Apply(ctx, queue.DisqualificationWrite(dq)), ShouldBeNil)
			So(w.Apply(ctx, queue.DisqualificationWrite(dq)), ShouldBeNil)

			Convey("Then the store sees one click and one disqualification", func() {
				So(store.clickCount(), ShouldEqual, 1)
				So(len(store.dq), ShouldEqual, 1)
			})
		})

		Convey("When the store fails", func() {
			store.fail = errors.New("disk full")
			err := w.Apply(ctx, queue.ClickWrite(model.Click{SessionID: "S1", UserID: "alice"}))

			Convey("Then the error is wrapped with the click identity", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "S1/alice")
				So(errors.Is(err, store.fail), ShouldBeTrue)
			})
		})

		Convey("When the write kind is unknown", func() {
			So(w.Apply(ctx, queue.Write{}), ShouldNotBeNil)
		})

		Convey("When the caller context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			Convey("Then the write still lands", func() {
				So(w.Apply(cctx, queue.ClickWrite(model.Click{UserID: "late"})), ShouldBeNil)
				So(store.clickCount(), ShouldEqual, 1)
			})
		})
	})
}

func TestPool(t *testing.T) {
	Convey("Given a started pool", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		store := newMemStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		p := writer.NewPool(3, q, store)
		p.Start(ctx)

		Convey("When many writes are submitted and the pool shuts down", func() {
			for i := 0; i < 250; i++ {
				p.Submit(ctx, queue.ClickWrite(model.Click{SessionID: "S1", UserID: "alice", Timestamp: int64(i)}))
			}
			So(p.Shutdown(ctx), ShouldBeNil)

			Convey("Then every write reached the store, queued or inline", func() {
				So(store.clickCount(), ShouldEqual, 250)
			})
		})
	})

	Convey("Given a pool whose queue is already closed", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		store := newMemStore()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		p := writer.NewPool(1, q, store)
		_ = q.Close()

		Convey("When a write is submitted", func() {
			p.Submit(ctx, queue.ClickWrite(model.Click{UserID: "alice"}))

			Convey("Then it is written inline", func() {
				So(store.clickCount(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a pool whose writers are stuck", t, func() {
		So(logger.Init(), ShouldBeNil)
		store := newMemStore()
		store.delay = 200 * time.Millisecond
		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		p := writer.NewPool(1, q, store)
		p.Start(context.Background())
		for i := 0; i < 5; i++ {
			p.Submit(context.Background(), queue.ClickWrite(model.Click{UserID: "slow"}))
		}

		Convey("When shutdown has little time", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			err := p.Shutdown(ctx)

			Convey("Then it reports the timeout", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			})
		})
	})
}
