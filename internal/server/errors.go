package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Veraticus/nuam/internal/common"
	"github.com/Veraticus/nuam/internal/records"
	"github.com/Veraticus/nuam/internal/storage"
)

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	var invalid *records.InvalidError
	switch {
	case errors.As(err, &invalid),
		errors.Is(err, common.ErrSchemaInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrUnsupportedFormat),
		errors.Is(err, common.ErrUnreadableFile),
		errors.Is(err, common.ErrInvalidInput),
		errors.Is(err, storage.ErrInvalidDateRange):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateEntry):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: common.UserMessage(err)}

	var invalid *records.InvalidError
	if errors.As(err, &invalid) {
		body.Error = "invalid record"
		body.Details = invalid.Messages
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err, "path", r.URL.Path, "request_id", RequestID(r.Context()))
		body.Error = "internal error"
	}

	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
