package api

import (
	"context"
	"net/http"

	"github.com/okian/clickrace/internal/adapters/repository"
	"github.com/okian/clickrace/internal/domain/model"
)

// FleetDependencies defines the fleet and round statistics reads.
type FleetDependencies interface {
	Workers(ctx context.Context) ([]model.Worker, error)
	Stats(ctx context.Context, sessionID string) (repository.Stats, error)
}

// FleetHandler handles worker and stats requests.
type FleetHandler struct {
	deps FleetDependencies
}

// NewFleetHandler creates a new fleet handler.
func NewFleetHandler(deps FleetDependencies) *FleetHandler {
	return &FleetHandler{deps: deps}
}

type workersResponse struct {
	Success bool           `json:"success"`
	Workers []model.Worker `json:"workers"`
}

type statsResponse struct {
	Success bool             `json:"success"`
	Stats   repository.Stats `json:"stats"`
}

// HandleWorkers handles GET /workers.
func (h *FleetHandler) HandleWorkers(w http.ResponseWriter, r *http.Request) {
	const op = "api.workers"
	workers, err := h.deps.Workers(r.Context())
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	if workers == nil {
		workers = []model.Worker{}
	}
	writeJSON(w, http.StatusOK, workersResponse{Success: true, Workers: workers})
}

// HandleStats handles GET /stats?session=ID.
func (h *FleetHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.stats"
	stats, err := h.deps.Stats(r.Context(), r.URL.Query().Get("session"))
	if err != nil {
		fail(r.Context(), w, wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}
