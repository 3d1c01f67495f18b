package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/newthinker/backgrid/internal/api/job"
	"github.com/newthinker/backgrid/internal/api/response"
	"github.com/newthinker/backgrid/internal/core"
	"github.com/newthinker/backgrid/internal/logger"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// JobsHandler handles backtest job requests.
type JobsHandler struct {
	svc Service
	log *zap.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(svc Service, log *zap.Logger) *JobsHandler {
	return &JobsHandler{svc: svc, log: logger.Component(log, "jobs")}
}

// Create runs a backtest synchronously and returns the completed job.
func (h *JobsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest,
			core.WrapError(core.ErrInvalidRequest, fmt.Errorf("decoding body: %w", err)))
		return
	}

	j, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		status := response.StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error("backtest job failed", zap.String("symbol", req.Symbol), zap.Error(err))
		}
		response.Error(w, status, err)
		return
	}

	response.JSON(w, http.StatusOK, j)
}

// Get returns a stored job by the {id} path value.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	j, err := h.svc.Job(r.Context(), id)
	if err != nil {
		if response.StatusFor(err) == http.StatusNotFound {
			h.log.Warn("job not found", zap.String("job_id", id))
		}
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, j)
}

// List returns stored jobs newest first, honouring ?limit=.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			response.Error(w, http.StatusBadRequest,
				core.Errorf(core.ErrInvalidRequest, "limit must be a positive integer, got %q", raw))
			return
		}
		limit = min(n, maxListLimit)
	}

	jobs, err := h.svc.Jobs(r.Context(), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if jobs == nil {
		jobs = []job.Job{}
	}
	response.List(w, jobs, len(jobs))
}
