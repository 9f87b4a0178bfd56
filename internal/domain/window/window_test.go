package window_test

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/clickrace/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEventWindow(t *testing.T) {
	Convey("Given a window with a one minute round", t, func() {
		clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
		w := window.New(window.WithClock(clock), window.WithDuration(time.Minute))

		Convey("Then it is idle before any start", func() {
			So(w.IsActive(1_000_000), ShouldBeFalse)
			So(w.Snapshot().Status, ShouldEqual, window.StatusIdle)
		})

		Convey("When the round starts", func() {
			w.Start("S1")

			Convey("Then clicks inside the bounds are active", func() {
				So(w.SessionID(), ShouldEqual, "S1")
				So(w.IsActive(1_000_000), ShouldBeTrue)
				So(w.IsActive(1_060_000), ShouldBeTrue)
				So(w.Snapshot().EndsAt, ShouldEqual, 1_060_000)
				So(w.Snapshot().Status, ShouldEqual, window.StatusActive)
			})

			Convey("Then clicks outside the bounds are not", func() {
				So(w.IsActive(999_999), ShouldBeFalse)
				So(w.IsActive(1_060_001), ShouldBeFalse)
			})

			Convey("And time passes the end", func() {
				clock.Advance(61 * time.Second)
				So(w.Snapshot().Status, ShouldEqual, window.StatusEnded)
			})

			Convey("And the round is ended explicitly", func() {
				w.End()
				So(w.IsActive(1_000_500), ShouldBeFalse)
				So(w.Snapshot().Status, ShouldEqual, window.StatusEnded)
			})

			Convey("And a new round starts afterwards", func() {
				w.End()
				clock.Advance(2 * time.Minute)
				w.Start("S2")
				So(w.SessionID(), ShouldEqual, "S2")
				So(w.IsActive(clock.Now().UnixMilli()), ShouldBeTrue)
			})
		})
	})

	Convey("Given a window without a fixed duration", t, func() {
		clock := clockwork.NewFakeClockAt(time.UnixMilli(5_000))
		w := window.New(window.WithClock(clock), window.WithDuration(0))

		Convey("When a round is adopted from an earlier start", func() {
			w.StartAt("S1", 1_000)

			Convey("Then it stays open until ended", func() {
				So(w.IsActive(10_000_000), ShouldBeTrue)
				So(w.Snapshot().EndsAt, ShouldEqual, 0)
				w.End()
				So(w.IsActive(10_000_000), ShouldBeFalse)
			})
		})
	})
}
