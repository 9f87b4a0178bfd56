// Package api serves the control API: round control, leaderboards, users
// and fleet status.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"

	"github.com/okian/clickrace/internal/adapters/http/swagger"
	"github.com/okian/clickrace/pkg/logger"
)

// Dependencies required by HTTP handlers. The control service implements it.
type Dependencies interface {
	EventDependencies
	LeaderboardDependencies
	UserDependencies
	FleetDependencies
}

// Server wires HTTP routes for the control API.
type Server struct {
	healthHandler      *HealthHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	streamHandler      *StreamHandler
	usersHandler       *UsersHandler
	fleetHandler       *FleetHandler

	streamInterval time.Duration
	clock          clockwork.Clock
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		streamInterval: defaultStreamInterval,
		clock:          clockwork.NewRealClock(),
		logger:         logger.Get().Named("api"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.eventsHandler = NewEventsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.streamHandler = NewStreamHandler(deps, s.streamInterval, s.clock, s.logger)
	s.usersHandler = NewUsersHandler(deps)
	s.fleetHandler = NewFleetHandler(deps)
	return s
}

// Router builds the routing tree.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))

	r.Post("/signup", MetricsMiddleware(s.usersHandler.HandleSignup, "signup"))
	r.Post("/signin", MetricsMiddleware(s.usersHandler.HandleSignin, "signin"))
	r.Get("/profile", MetricsMiddleware(s.usersHandler.HandleProfile, "profile"))

	r.Route("/event", func(r chi.Router) {
		r.Post("/start", MetricsMiddleware(s.eventsHandler.HandleStart, "event_start"))
		r.Post("/end", MetricsMiddleware(s.eventsHandler.HandleEnd, "event_end"))
		r.Get("/status", MetricsMiddleware(s.eventsHandler.HandleStatus, "event_status"))
		r.Get("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
		// Upgraded connections bypass the metrics wrapper, which cannot hijack.
		r.Get("/leaderboard/stream", s.streamHandler.HandleStream)
	})

	r.Get("/winners", MetricsMiddleware(s.eventsHandler.HandleWinners, "winners"))
	r.Get("/workers", MetricsMiddleware(s.fleetHandler.HandleWorkers, "workers"))
	r.Get("/stats", MetricsMiddleware(s.fleetHandler.HandleStats, "stats"))

	swagger.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil && status < http.StatusInternalServerError {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes the response for err and logs server-side failures.
func fail(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.Error(err))
	}
	writeError(w, status, code, err)
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched
// when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && optional {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: invalid %s", ErrBadRequest, key)
	}
	return n, nil
}
