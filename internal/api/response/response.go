package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/newthinker/backgrid/internal/core"
)

// Meta contains response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	Count     *int      `json:"count,omitempty"`
}

// SuccessResponse is the standard success response format.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

func write(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// JSON writes a success response with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	})
}

// List writes a 200 response carrying count in meta.
func List(w http.ResponseWriter, data any, count int) {
	write(w, http.StatusOK, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC(), Count: &count},
	})
}

// Error writes an error response.
func Error(w http.ResponseWriter, status int, err error) {
	detail := ErrorDetail{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		detail.Code = coreErr.Code
		detail.Message = coreErr.Message
		if coreErr.Cause != nil {
			detail.Cause = coreErr.Cause.Error()
		}
	}

	write(w, status, ErrorResponse{Error: detail})
}

// StatusFor maps an error to its HTTP status. Client mistakes, bad
// strategy parameters and market data problems are 400.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidParameter),
		errors.Is(err, core.ErrUnknownStrategy),
		errors.Is(err, core.ErrDataFetch),
		errors.Is(err, core.ErrNoData):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err with the status StatusFor picks.
func Fail(w http.ResponseWriter, err error) {
	Error(w, StatusFor(err), err)
}
