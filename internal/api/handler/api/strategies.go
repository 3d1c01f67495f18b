package api

import (
	"net/http"

	"github.com/newthinker/backgrid/internal/api/response"
)

// StrategiesHandler lists the registered strategies.
type StrategiesHandler struct {
	svc Service
}

func NewStrategiesHandler(svc Service) *StrategiesHandler {
	return &StrategiesHandler{svc: svc}
}

func (h *StrategiesHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.svc.Strategies()
	response.List(w, infos, len(infos))
}
