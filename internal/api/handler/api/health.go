package api

import (
	"net/http"
	"time"

	"github.com/newthinker/backgrid/internal/api/response"
)

// Phase is the service's execution model: 1 means jobs run synchronously.
const Phase = 1

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Phase     int       `json:"phase"`
	Version   string    `json:"version,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthHandler reports liveness.
type HealthHandler struct {
	version string
}

// NewHealthHandler creates a health handler reporting version.
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, HealthStatus{
		Status:    "ok",
		Phase:     Phase,
		Version:   h.version,
		Timestamp: time.Now().UTC(),
	})
}
