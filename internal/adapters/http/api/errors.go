package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/clickrace/internal/adapters/repository"
	service "github.com/okian/clickrace/internal/app"
	"github.com/okian/clickrace/internal/domain/auth"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing bearer token")
)

// wrap tags err with the operation that failed.
func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// statusFor maps domain errors onto HTTP status codes and error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrMissingFields),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrLimitExceeded):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "invalid_token"
	case errors.Is(err, repository.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, repository.ErrUserExists):
		return http.StatusConflict, "user_exists"
	case errors.Is(err, repository.ErrNoActiveSession):
		return http.StatusConflict, "no_active_session"
	case errors.Is(err, repository.ErrSessionEnded):
		return http.StatusConflict, "session_ended"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
