package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"workspace-portal/internal/auth"
	"workspace-portal/internal/biz"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a workspace operation error to a response. A
// session that ended during the call answers 401 pointing at the login page.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if auth.IsSessionError(err) {
		auth.WriteUnauthorized(w, "session expired")
		return
	}

	switch {
	case errors.Is(err, biz.ErrInvalidWorkspaceType),
		errors.Is(err, biz.ErrInvalidLimits),
		errors.Is(err, biz.ErrMissingAccountID),
		errors.Is(err, biz.ErrMissingWorkspaceID):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	case errors.Is(err, biz.ErrNotEntitled):
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
		return
	}

	var apiErr *auth.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		logger.Warn("workspace API call failed", "status", apiErr.StatusCode, "error", err)
		writeJSON(w, status, ErrorResponse{Error: "upstream_error", Message: apiErr.Status})
		return
	}

	logger.Error("workspace API call failed", "error", err)
	writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_unavailable", Message: "workspace API unavailable"})
}
