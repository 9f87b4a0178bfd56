package api

import (
	"context"
	"net/http"

	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/domain/model"
)

// EventDependencies defines the round control operations.
type EventDependencies interface {
	StartEvent(ctx context.Context, id string) (model.Session, error)
	EndEvent(ctx context.Context) (model.Session, *model.Winner, error)
	EventStatus(ctx context.Context, sessionID, userID string) (service.EventStatus, error)
	Winners(ctx context.Context, limit int) ([]model.Winner, error)
}

// EventsHandler handles round control requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

type startRequest struct {
	SessionID string `json:"sessionId"`
}

type startResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
}

type winnerView struct {
	UserID     string `json:"userId"`
	Address    string `json:"address"`
	ClickCount int    `json:"clickCount"`
}

type endResponse struct {
	Success   bool        `json:"success"`
	SessionID string      `json:"sessionId,omitempty"`
	Winner    *winnerView `json:"winner"`
}

type statusResponse struct {
	Success bool `json:"success"`
	service.EventStatus
}

type winnersResponse struct {
	Success bool           `json:"success"`
	Winners []model.Winner `json:"winners"`
}

// HandleStart handles POST /event/start. The body is optional.
func (h *EventsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_start"
	var req startRequest
	if err := decodeBody(r, &req, true); err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	s, err := h.deps.StartEvent(r.Context(), req.SessionID)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, startResponse{Success: true, SessionID: s.ID, StartedAt: s.StartedAt})
}

// HandleEnd handles POST /event/end.
func (h *EventsHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_end"
	s, winner, err := h.deps.EndEvent(r.Context())
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	resp := endResponse{Success: true, SessionID: s.ID}
	if winner != nil {
		resp.Winner = &winnerView{UserID: winner.UserID, Address: winner.Address, ClickCount: winner.ClickCount}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStatus handles GET /event/status?session=ID&user=ID.
func (h *EventsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.event_status"
	q := r.URL.Query()
	st, err := h.deps.EventStatus(r.Context(), q.Get("session"), q.Get("user"))
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Success: true, EventStatus: st})
}

// HandleWinners handles GET /winners?limit=N.
func (h *EventsHandler) HandleWinners(w http.ResponseWriter, r *http.Request) {
	const op = "api.winners"
	limit, err := queryInt(r, "limit")
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	winners, err := h.deps.Winners(r.Context(), limit)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, winnersResponse{Success: true, Winners: winners})
}
