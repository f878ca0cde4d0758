package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/josephgoksu/deepagent/internal/apperr"
)

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, errCode, message string, details any) {
	writeJSON(w, code, APIErrorBody{Error: APIError{Code: errCode, Message: message, Details: details}})
}

// writeError maps an application error onto a status and the error envelope.
// Storage and unknown errors are logged and reported without their cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, details := classify(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()), "error", err)
		msg = "internal server error"
	}
	writeErr(w, status, code, msg, details)
}

func classify(err error) (int, string, any) {
	var (
		verr *apperr.ValidationError
		cerr *apperr.ConflictError
		nerr *apperr.NotFoundError
	)
	switch {
	case apperr.IsRepository(err):
		return http.StatusInternalServerError, "internal_error", nil
	case errors.As(err, &verr):
		if verr.Field != "" {
			return http.StatusBadRequest, "invalid_request", map[string]string{"field": verr.Field}
		}
		return http.StatusBadRequest, "invalid_request", nil
	case apperr.IsInvalidState(err):
		return http.StatusConflict, "invalid_state", nil
	case errors.As(err, &cerr):
		return http.StatusConflict, "conflict", map[string]string{"resource": cerr.Resource, "key": cerr.Key}
	case errors.As(err, &nerr):
		return http.StatusNotFound, "not_found", map[string]string{"resource": nerr.Resource, "id": nerr.ID}
	default:
		return http.StatusInternalServerError, "internal_error", nil
	}
}
