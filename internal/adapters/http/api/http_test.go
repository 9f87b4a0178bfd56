package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/okian/clickrace/internal/adapters/http/api"
	"github.com/okian/clickrace/internal/adapters/repository"
	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/domain/auth"
	"github.com/okian/clickrace/internal/domain/model"
	"github.com/okian/clickrace/internal/domain/types"
	"github.com/okian/clickrace/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies implements api.Dependencies.
type mockDependencies struct {
	mu sync.Mutex

	started    []string
	endErr     error
	noRound    bool
	winner     *model.Winner
	board      service.Board
	boardErr   error
	boardCalls int
	lastLimit  int
	lastSess   string
	status     service.EventStatus
	statusErr  error
	winners    []model.Winner
	users      map[string]string
	tokens     map[string]string
	workers    []model.Worker
	stats      repository.Stats
}

func newMock() *mockDependencies {
	return &mockDependencies{users: map[string]string{}, tokens: map[string]string{}}
}

func (m *mockDependencies) StartEvent(_ context.Context, id string) (model.Session, error) {
	if id == "" {
		id = "generated"
	}
	m.started = append(m.started, id)
	return model.Session{ID: id, StartedAt: 1000, Status: model.SessionActive}, nil
}

func (m *mockDependencies) EndEvent(context.Context) (model.Session, *model.Winner, error) {
	if m.endErr != nil {
		return model.Session{}, nil, m.endErr
	}
	if m.noRound {
		return model.Session{}, nil, nil
	}
	return model.Session{ID: "S1", Status: model.SessionEnded}, m.winner, nil
}

func (m *mockDependencies) EventStatus(context.Context, string, string) (service.EventStatus, error) {
	return m.status, m.statusErr
}

func (m *mockDependencies) Winners(context.Context, int) ([]model.Winner, error) {
	return m.winners, nil
}

func (m *mockDependencies) Leaderboard(_ context.Context, sessionID string, limit int) (service.Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boardCalls++
	m.lastLimit = limit
	m.lastSess = sessionID
	if limit > 100 {
		return service.Board{}, service.ErrLimitExceeded
	}
	return m.board, m.boardErr
}

func (m *mockDependencies) Signup(_ context.Context, userID, password, address string) (model.User, error) {
	if userID == "" || password == "" || address == "" {
		return model.User{}, service.ErrMissingFields
	}
	if _, ok := m.users[userID]; ok {
		return model.User{}, repository.ErrUserExists
	}
	m.users[userID] = password
	return model.User{UserID: userID, Address: address}, nil
}

func (m *mockDependencies) Signin(_ context.Context, userID, password string) (string, error) {
	if m.users[userID] != password || password == "" {
		return "", repository.ErrInvalidCredentials
	}
	m.tokens["tok-"+userID] = userID
	return "tok-" + userID, nil
}

func (m *mockDependencies) Profile(_ context.Context, token string) (model.User, error) {
	userID, ok := m.tokens[token]
	if !ok {
		return model.User{}, auth.ErrInvalidToken
	}
	return model.User{UserID: userID, Address: "0xA"}, nil
}

func (m *mockDependencies) Workers(context.Context) ([]model.Worker, error) {
	return m.workers, nil
}

func (m *mockDependencies) Stats(context.Context, string) (repository.Stats, error) {
	return m.stats, nil
}

func newRouter(t *testing.T, deps *mockDependencies, opts ...api.Option) http.Handler {
	t.Helper()
	if err := logger.Init(); err != nil {
		t.Fatalf("logger: %v", err)
	}
	return api.NewServer(deps, opts...).Router(context.Background())
}

func do(h http.Handler, method, target, body string, headers ...string) (*httptest.ResponseRecorder, map[string]any) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestEventRoutes(t *testing.T) {
	Convey("Given the control API", t, func() {
		deps := newMock()
		h := newRouter(t, deps)

		Convey("When a round starts with and without an id", func() {
			w1, body1 := do(h, http.MethodPost, "/event/start", `{"sessionId":"S1"}`)
			w2, body2 := do(h, http.MethodPost, "/event/start", "")

			Convey("Then both succeed", func() {
				So(w1.Code, ShouldEqual, http.StatusOK)
				So(body1["success"], ShouldEqual, true)
				So(body1["sessionId"], ShouldEqual, "S1")
				So(w2.Code, ShouldEqual, http.StatusOK)
				So(body2["sessionId"], ShouldEqual, "generated")
				So(deps.started, ShouldResemble, []string{"S1", "generated"})
			})
		})

		Convey("When the start body is not JSON", func() {
			w, body := do(h, http.MethodPost, "/event/start", `{nope`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(body["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When a round ends with a winner", func() {
			deps.winner = &model.Winner{UserID: "alice", Address: "0xA", ClickCount: 42}
			w, body := do(h, http.MethodPost, "/event/end", "")

			Convey("Then the winner is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["success"], ShouldEqual, true)
				So(body["winner"], ShouldResemble, map[string]any{"userId": "alice", "address": "0xA", "clickCount": float64(42)})
			})
		})

		Convey("When a round ends without a winner", func() {
			_, body := do(h, http.MethodPost, "/event/end", "")

			Convey("Then winner is null", func() {
				So(body, ShouldContainKey, "winner")
				So(body["winner"], ShouldBeNil)
			})
		})

		Convey("When no round is open to end", func() {
			deps.noRound = true
			w, body := do(h, http.MethodPost, "/event/end", "")

			Convey("Then it succeeds with a null winner", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["success"], ShouldEqual, true)
				So(body, ShouldContainKey, "winner")
				So(body["winner"], ShouldBeNil)
				So(body, ShouldNotContainKey, "sessionId")
			})
		})

		Convey("When ending fails in the store", func() {
			deps.endErr = errors.New("disk full")
			w, body := do(h, http.MethodPost, "/event/end", "")

			Convey("Then it is an internal error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(body, ShouldContainKey, "code")
			})
		})

		Convey("When the status of an unknown round is asked", func() {
			deps.statusErr = repository.ErrNotFound
			w, _ := do(h, http.MethodGet, "/event/status?session=nope", "")

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a player's status is asked", func() {
			deps.status = service.EventStatus{
				Session: &model.Session{ID: "S1", Status: model.SessionActive},
				Player:  &service.PlayerStatus{UserID: "alice", ClickCount: 3, Disqualified: true},
			}
			_, body := do(h, http.MethodGet, "/event/status?session=S1&user=alice", "")

			Convey("Then session and player are flattened into the body", func() {
				So(body["success"], ShouldEqual, true)
				So(body["player"].(map[string]any)["disqualified"], ShouldEqual, true)
				So(body["session"].(map[string]any)["id"], ShouldEqual, "S1")
			})
		})

		Convey("When winners are listed", func() {
			deps.winners = []model.Winner{{ID: 1, SessionID: "S1", UserID: "alice", ClickCount: 9}}
			_, body := do(h, http.MethodGet, "/winners", "")

			Convey("Then they are wrapped with success", func() {
				So(body["success"], ShouldEqual, true)
				So(body["winners"], ShouldHaveLength, 1)
			})
		})
	})
}

func TestLeaderboardRoutes(t *testing.T) {
	Convey("Given a leaderboard", t, func() {
		deps := newMock()
		deps.board = service.Board{SessionID: "S1", Entries: []types.Entry{{UserID: "alice", ClickCount: 5}, {UserID: "bob", ClickCount: 2}}}
		h := newRouter(t, deps)

		Convey("When it is read with a session and limit", func() {
			w, body := do(h, http.MethodGet, "/event/leaderboard?session=S1&limit=2", "")

			Convey("Then the entries are returned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastSess, ShouldEqual, "S1")
				So(deps.lastLimit, ShouldEqual, 2)
				board := body["leaderboard"].([]any)
				So(board, ShouldHaveLength, 2)
				So(board[0], ShouldResemble, map[string]any{"userId": "alice", "clickCount": float64(5)})
			})
		})

		Convey("When the store has nothing", func() {
			deps.board = service.Board{}
			_, body := do(h, http.MethodGet, "/event/leaderboard", "")

			Convey("Then an empty array is returned", func() {
				So(body["leaderboard"], ShouldResemble, []any{})
				So(deps.lastLimit, ShouldEqual, 0)
			})
		})

		Convey("When the limit is invalid or too large", func() {
			bad, badBody := do(h, http.MethodGet, "/event/leaderboard?limit=abc", "")
			zero, _ := do(h, http.MethodGet, "/event/leaderboard?limit=0", "")
			big, bigBody := do(h, http.MethodGet, "/event/leaderboard?limit=101", "")

			Convey("Then each is a bad request", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(badBody["code"], ShouldEqual, "bad_request")
				So(zero.Code, ShouldEqual, http.StatusBadRequest)
				So(big.Code, ShouldEqual, http.StatusBadRequest)
				So(bigBody["code"], ShouldEqual, "limit_exceeded")
			})
		})
	})
}

func TestUserRoutes(t *testing.T) {
	Convey("Given the account routes", t, func() {
		deps := newMock()
		h := newRouter(t, deps)

		Convey("When a user signs up, signs in and reads the profile", func() {
			w, body := do(h, http.MethodPost, "/signup", `{"userId":"alice","password":"pw","address":"0xA"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(body, ShouldResemble, map[string]any{"userId": "alice", "address": "0xA"})

			w, body = do(h, http.MethodPost, "/signin", `{"userId":"alice","password":"pw"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			token := body["token"].(string)

			Convey("Then the bearer token resolves the profile", func() {
				w, body := do(h, http.MethodGet, "/profile", "", "Authorization", "Bearer "+token)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(body["user"].(map[string]any)["userId"], ShouldEqual, "alice")
			})

			Convey("Then a duplicate signup conflicts", func() {
				w, body := do(h, http.MethodPost, "/signup", `{"userId":"alice","password":"x","address":"0xB"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(body["code"], ShouldEqual, "user_exists")
			})

			Convey("Then a wrong password is unauthorized", func() {
				w, _ := do(h, http.MethodPost, "/signin", `{"userId":"alice","password":"bad"}`)
				So(w.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})

		Convey("When fields are missing", func() {
			w, body := do(h, http.MethodPost, "/signup", `{"userId":"alice"}`)

			Convey("Then it is a bad request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(body["message"], ShouldContainSubstring, "missing fields")
			})
		})

		Convey("When the profile is read without a valid token", func() {
			none, _ := do(h, http.MethodGet, "/profile", "")
			basic, _ := do(h, http.MethodGet, "/profile", "", "Authorization", "Basic abc")
			unknown, _ := do(h, http.MethodGet, "/profile", "", "Authorization", "Bearer nope")

			Convey("Then each is unauthorized", func() {
				So(none.Code, ShouldEqual, http.StatusUnauthorized)
				So(basic.Code, ShouldEqual, http.StatusUnauthorized)
				So(unknown.Code, ShouldEqual, http.StatusUnauthorized)
			})
		})
	})
}

func TestFleetRoutes(t *testing.T) {
	Convey("Given fleet state", t, func() {
		deps := newMock()
		deps.workers = []model.Worker{{WorkerID: 0, PID: 11, Status: model.WorkerActive}}
		deps.stats = repository.Stats{SessionID: "S1", TotalClicks: 7, Workers: 2}
		h := newRouter(t, deps)

		Convey("Then workers and stats are served", func() {
			_, workers := do(h, http.MethodGet, "/workers", "")
			So(workers["workers"], ShouldHaveLength, 1)

			_, stats := do(h, http.MethodGet, "/stats", "")
			So(stats["stats"].(map[string]any)["totalClicks"], ShouldEqual, float64(7))
			So(stats["stats"].(map[string]any)["contributingWorkers"], ShouldEqual, float64(2))
		})

		Convey("Then metrics are exposed on /healthz", func() {
			_, _ = do(h, http.MethodGet, "/workers", "")
			w, _ := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "clickrace_http_requests_total")
		})

		Convey("Then CORS preflight is answered", func() {
			req := httptest.NewRequest(http.MethodOptions, "/event/start", http.NoBody)
			req.Header.Set("Origin", "http://example.com")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "Content-Type")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			So(w.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
			So(w.Header().Get("Access-Control-Allow-Methods"), ShouldContainSubstring, http.MethodPost)
		})
	})
}

func TestLeaderboardStream(t *testing.T) {
	Convey("Given a server streaming the leaderboard", t, func() {
		deps := newMock()
		deps.board = service.Board{SessionID: "S1", Entries: []types.Entry{{UserID: "alice", ClickCount: 1}}}
		srv := httptest.NewServer(newRouter(t, deps, api.WithStreamInterval(20*time.Millisecond)))
		Reset(srv.Close)

		Convey("When a client connects", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/event/leaderboard/stream?session=S1"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

			Convey("Then snapshots keep arriving", func() {
				for i := 0; i < 2; i++ {
					var snap map[string]any
					So(conn.ReadJSON(&snap), ShouldBeNil)
					So(snap["sessionId"], ShouldEqual, "S1")
					So(snap["leaderboard"], ShouldHaveLength, 1)
				}
			})
		})

		Convey("When the limit is invalid", func() {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/event/leaderboard/stream?limit=x"
			_, resp, err := websocket.DefaultDialer.Dial(url, nil)

			Convey("Then the upgrade is refused with a bad request", func() {
				So(err, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}
