package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/clickrace/internal/adapters/repository"
	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/domain/auth"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type recordingBroadcaster struct {
	mu     sync.Mutex
	starts []string
	ends   []string
	err    error
}

func (b *recordingBroadcaster) BroadcastStart(_ context.Context, s model.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts = append(b.starts, s.ID)
	return b.err
}

func (b *recordingBroadcaster) BroadcastEnd(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ends = append(b.ends, id)
	return b.err
}

func newController(t *testing.T, clock clockwork.Clock) (*service.Controller, *repository.SQLStore, *recordingBroadcaster) {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("logger: %v", err)
	}
	store, err := repository.Open(repository.DriverSQLite, filepath.Join(t.TempDir(), "clickrace.db"), repository.WithClock(clock))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	bc := &recordingBroadcaster{}
	ctl := service.NewController(store, bc,
		service.WithClock(clock),
		service.WithSettleDelay(0),
		service.WithLeaderboardLimits(10, 50),
		service.WithTokens(auth.NewMemoryTokens(auth.WithClock(clock))),
	)
	return ctl, store, bc
}

func TestControllerRounds(t *testing.T) {
	Convey("Given a controller over a fresh store", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
		ctl, store, bc := newController(t, clock)

		Convey("When a round starts without an id", func() {
			s, err := ctl.StartEvent(ctx, "")

			Convey("Then an id is generated, persisted and broadcast", func() {
				So(err, ShouldBeNil)
				So(s.ID, ShouldNotBeEmpty)
				So(s.Status, ShouldEqual, model.SessionActive)
				So(bc.starts, ShouldResemble, []string{s.ID})
				active, err := store.ActiveSession(ctx)
				So(err, ShouldBeNil)
				So(active.ID, ShouldEqual, s.ID)
			})
		})

		Convey("When a new round starts while another is open", func() {
			_, err := ctl.StartEvent(ctx, "S1")
			So(err, ShouldBeNil)
			clock.Advance(time.Second)
			_, err = ctl.StartEvent(ctx, "S2")
			So(err, ShouldBeNil)

			Convey("Then the earlier round is ended first", func() {
				s1, err := store.GetSession(ctx, "S1")
				So(err, ShouldBeNil)
				So(s1.Status, ShouldEqual, model.SessionEnded)
				So(bc.ends, ShouldResemble, []string{"S1"})
				So(bc.starts, ShouldResemble, []string{"S1", "S2"})
			})
		})

		Convey("When no round is open", func() {
			ended, winner, err := ctl.EndEvent(ctx)

			Convey("Then ending succeeds with no winner and nothing is broadcast", func() {
				So(err, ShouldBeNil)
				So(ended.ID, ShouldBeEmpty)
				So(winner, ShouldBeNil)
				So(bc.ends, ShouldBeEmpty)
			})
		})

		Convey("When a round with clicks from several workers ends", func() {
			_, err := store.CreateUser(ctx, "alice", "pw", "0xA")
			So(err, ShouldBeNil)
			_, err = store.CreateUser(ctx, "bob", "pw", "0xB")
			So(err, ShouldBeNil)
			_, err = store.CreateUser(ctx, "carol", "pw", "0xC")
			So(err, ShouldBeNil)

			s, err := ctl.StartEvent(ctx, "S1")
			So(err, ShouldBeNil)
			ts := s.StartedAt
			for _, c := range []model.Click{
				{SessionID: "S1", UserID: "alice", WorkerID: 0, Timestamp: ts + 1},
				{SessionID: "S1", UserID: "alice", WorkerID: 1, Timestamp: ts + 2},
				{SessionID: "S1", UserID: "bob", WorkerID: 0, Timestamp: ts + 3},
				{SessionID: "S1", UserID: "carol", WorkerID: 2, Timestamp: ts + 4},
				{SessionID: "S1", UserID: "carol", WorkerID: 2, Timestamp: ts + 5},
				{SessionID: "S1", UserID: "carol", WorkerID: 1, Timestamp: ts + 6},
			} {
				So(store.RecordClick(ctx, c), ShouldBeNil)
			}
			first, err := store.RecordDisqualification(ctx, model.Disqualification{
				SessionID: "S1", UserID: "carol", Reason: model.ReasonRateExceeded, WorkerID: 1, DisqualifiedAt: ts + 7,
			})
			So(err, ShouldBeNil)
			So(first, ShouldBeTrue)

			ended, winner, err := ctl.EndEvent(ctx)

			Convey("Then the winner excludes the disqualified user and is recorded", func() {
				So(err, ShouldBeNil)
				So(ended.Status, ShouldEqual, model.SessionEnded)
				So(bc.ends, ShouldResemble, []string{"S1"})
				So(winner, ShouldNotBeNil)
				So(winner.UserID, ShouldEqual, "alice")
				So(winner.Address, ShouldEqual, "0xA")
				So(winner.ClickCount, ShouldEqual, 2)

				winners, err := ctl.Winners(ctx, 0)
				So(err, ShouldBeNil)
				So(winners, ShouldHaveLength, 1)
				So(winners[0].SessionID, ShouldEqual, "S1")
			})

			Convey("Then the leaderboard still answers for the ended round", func() {
				board, err := ctl.Leaderboard(ctx, "", 0)
				So(err, ShouldBeNil)
				So(board.SessionID, ShouldEqual, "S1")
				So(board.Entries, ShouldHaveLength, 2)
				So(board.Entries[0].UserID, ShouldEqual, "alice")
				So(board.Entries[1].UserID, ShouldEqual, "bob")
			})

			Convey("Then player status and stats reflect the fleet", func() {
				st, err := ctl.EventStatus(ctx, "S1", "carol")
				So(err, ShouldBeNil)
				So(st.Player.ClickCount, ShouldEqual, 3)
				So(st.Player.Disqualified, ShouldBeTrue)

				stats, err := ctl.Stats(ctx, "")
				So(err, ShouldBeNil)
				So(stats.TotalClicks, ShouldEqual, 6)
				So(stats.Disqualified, ShouldEqual, 1)
				So(stats.Workers, ShouldEqual, 3)
			})
		})

		Convey("When a round ends with no eligible clicks", func() {
			_, err := ctl.StartEvent(ctx, "S1")
			So(err, ShouldBeNil)
			_, winner, err := ctl.EndEvent(ctx)

			Convey("Then there is no winner", func() {
				So(err, ShouldBeNil)
				So(winner, ShouldBeNil)
			})
		})

		Convey("When the broadcaster fails", func() {
			bc.err = errors.New("pipe closed")
			s, err := ctl.StartEvent(ctx, "S1")

			Convey("Then the round is still recorded for workers to adopt", func() {
				So(err, ShouldBeNil)
				So(s.ID, ShouldEqual, "S1")
			})
		})
	})
}

func TestControllerLeaderboardLimits(t *testing.T) {
	Convey("Given a controller with a max limit of 50", t, func() {
		ctx := context.Background()
		ctl, _, _ := newController(t, clockwork.NewFakeClock())

		Convey("Then an empty store yields an empty board", func() {
			board, err := ctl.Leaderboard(ctx, "", 0)
			So(err, ShouldBeNil)
			So(board.Entries, ShouldBeEmpty)
			So(board.Entries, ShouldNotBeNil)
		})

		Convey("Then limits outside the range are refused", func() {
			_, err := ctl.Leaderboard(ctx, "S1", 51)
			So(errors.Is(err, service.ErrLimitExceeded), ShouldBeTrue)
			_, err = ctl.Leaderboard(ctx, "S1", -1)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
			So(ctl.MaxLimit(), ShouldEqual, 50)
		})
	})
}

func TestControllerUsers(t *testing.T) {
	Convey("Given a controller", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		ctl, _, _ := newController(t, clock)

		Convey("When a user signs up with missing fields", func() {
			_, err := ctl.Signup(ctx, "alice", "", "0xA")

			Convey("Then it is refused", func() {
				So(errors.Is(err, service.ErrMissingFields), ShouldBeTrue)
			})
		})

		Convey("When a user signs up and signs in", func() {
			u, err := ctl.Signup(ctx, "alice", "secret", "0xA")
			So(err, ShouldBeNil)
			So(u.Address, ShouldEqual, "0xA")

			token, err := ctl.Signin(ctx, "alice", "secret")
			So(err, ShouldBeNil)

			Convey("Then the token resolves to the profile", func() {
				p, err := ctl.Profile(ctx, token)
				So(err, ShouldBeNil)
				So(p.UserID, ShouldEqual, "alice")
			})

			Convey("Then a second signup and a wrong password fail", func() {
				_, err := ctl.Signup(ctx, "alice", "other", "0xB")
				So(errors.Is(err, repository.ErrUserExists), ShouldBeTrue)
				_, err = ctl.Signin(ctx, "alice", "wrong")
				So(errors.Is(err, repository.ErrInvalidCredentials), ShouldBeTrue)
			})

			Convey("Then an unknown token is refused", func() {
				_, err := ctl.Profile(ctx, "nope")
				So(errors.Is(err, auth.ErrInvalidToken), ShouldBeTrue)
			})
		})
	})
}
