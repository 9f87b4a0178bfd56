package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/clickrace/internal/domain/model"
)

// UserDependencies defines account operations.
type UserDependencies interface {
	Signup(ctx context.Context, userID, password, address string) (model.User, error)
	Signin(ctx context.Context, userID, password string) (string, error)
	Profile(ctx context.Context, token string) (model.User, error)
}

// UsersHandler handles signup, signin and profile requests.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

type credentials struct {
	UserID   string `json:"userId"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

type signupResponse struct {
	UserID  string `json:"userId"`
	Address string `json:"address"`
}

type signinResponse struct {
	Token string `json:"token"`
}

type profileResponse struct {
	User model.User `json:"user"`
}

// HandleSignup handles POST /signup.
func (h *UsersHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	const op = "api.signup"
	var req credentials
	if err := decodeBody(r, &req, false); err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	u, err := h.deps.Signup(r.Context(), req.UserID, req.Password, req.Address)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, signupResponse{UserID: u.UserID, Address: u.Address})
}

// HandleSignin handles POST /signin.
func (h *UsersHandler) HandleSignin(w http.ResponseWriter, r *http.Request) {
	const op = "api.signin"
	var req credentials
	if err := decodeBody(r, &req, false); err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	token, err := h.deps.Signin(r.Context(), req.UserID, req.Password)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, signinResponse{Token: token})
}

// HandleProfile handles GET /profile with a bearer token.
func (h *UsersHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	const op = "api.profile"
	token, ok := bearerToken(r)
	if !ok {
		fail(r.Context(), w, wrap(op, ErrUnauthorized))
		return
	}
	u, err := h.deps.Profile(r.Context(), token)
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{User: u})
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}
