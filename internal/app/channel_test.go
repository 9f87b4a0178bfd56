package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/clickrace/internal/adapters/ipc"
	"github.com/okian/clickrace/internal/adapters/tcp/ingress"
	"github.com/okian/clickrace/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRuntimeHeartbeats(t *testing.T) {
	Convey("Given a runtime reporting over a pipe", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
		rt, _, _ := newRuntime(t, clock, &fakeRuntimeStore{})
		pr, pw := io.Pipe()
		dec := ipc.NewDecoder(pr)
		done := make(chan error, 1)
		go func() { done <- rt.RunHeartbeats(ctx, ipc.NewEncoder(pw)) }()
		Reset(func() {
			cancel()
			_ = pr.Close()
		})

		Convey("Then a heartbeat is sent at once and then on every tick", func() {
			first, err := dec.Receive()
			So(err, ShouldBeNil)
			So(first.Type, ShouldEqual, ipc.TypeHeartbeat)
			So(first.WorkerID, ShouldEqual, 2)
			So(first.PID, ShouldEqual, 4242)
			So(first.Timestamp, ShouldEqual, int64(1_000_000))
			So(first.Stats.Connections, ShouldEqual, 3)

			So(clock.BlockUntilContext(ctx, 1), ShouldBeNil)
			clock.Advance(time.Second)
			second, err := dec.Receive()
			So(err, ShouldBeNil)
			So(second.Timestamp, ShouldEqual, int64(1_001_000))
		})

		Convey("When the supervisor end goes away", func() {
			_, _ = dec.Receive()
			_ = pr.Close()
			So(clock.BlockUntilContext(ctx, 1), ShouldBeNil)
			clock.Advance(time.Second)

			Convey("Then the loop stops with an error", func() {
				So(<-done, ShouldNotBeNil)
			})
		})
	})
}

func TestRuntimeControl(t *testing.T) {
	Convey("Given a runtime serving the control channel", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClockAt(time.UnixMilli(2_000_000))
		store := &fakeRuntimeStore{users: map[string]model.User{"alice": {UserID: "alice"}, "bob": {UserID: "bob"}}}
		rt, g, _ := newRuntime(t, clock, store)

		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		toWorker := ipc.NewEncoder(inW)
		fromWorker := ipc.NewDecoder(outR)
		done := make(chan error, 1)
		go func() { done <- rt.ServeControl(ctx, ipc.NewDecoder(inR), ipc.NewEncoder(outW)) }()
		Reset(func() {
			_ = inW.Close()
			_ = outR.Close()
		})

		now := clock.Now().UnixMilli()

		Convey("When the supervisor starts and ends a round", func() {
			So(toWorker.Send(ipc.EventStart("S1", now, now)), ShouldBeNil)
			// The pipe is unbuffered, so the start is applied once the next send returns.
			So(toWorker.Send(ipc.Message{Type: "NOPE"}), ShouldBeNil)
			So(g.Window().SessionID, ShouldEqual, "S1")

			for i := int64(0); i < 3; i++ {
				So(rt.HandleClick(ctx, ingress.Click{UserID: "alice", Timestamp: now + i*300}).Accepted, ShouldBeTrue)
			}
			So(rt.HandleClick(ctx, ingress.Click{UserID: "bob", Timestamp: now}).Accepted, ShouldBeTrue)
			So(toWorker.Send(ipc.EventEnd("S1", now+5000)), ShouldBeNil)

			Convey("Then the worker answers with its local winner", func() {
				msg, err := fromWorker.Receive()
				So(err, ShouldBeNil)
				So(msg.Type, ShouldEqual, ipc.TypeLocalWinner)
				So(msg.SessionID, ShouldEqual, "S1")
				So(msg.WorkerID, ShouldEqual, 2)
				So(msg.Winner.UserID, ShouldEqual, "alice")
				So(msg.Winner.ClickCount, ShouldEqual, 3)
			})

			Convey("Then closing the channel ends the loop cleanly", func() {
				_, _ = fromWorker.Receive()
				_ = inW.Close()
				So(<-done, ShouldBeNil)
			})
		})
	})
}
