package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"workspace-portal/internal/auth"

	"github.com/gorilla/mux"
)

// WorkspaceHandler proxies the workspace API for the logged-in browser.
type WorkspaceHandler struct {
	service  WorkspaceService
	arborist *auth.ArboristClient
	logger   *slog.Logger
}

// NewWorkspaceHandler creates a WorkspaceHandler.
func NewWorkspaceHandler(service WorkspaceService, arborist *auth.ArboristClient, logger *slog.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceHandler{service: service, arborist: arborist, logger: logger}
}

// RegisterRoutes registers the user routes on r and the admin routes on
// admin. Both routers are expected to require authentication already.
func (h *WorkspaceHandler) RegisterRoutes(r, admin *mux.Router) {
	r.HandleFunc("/workspaces", h.list).Methods(http.MethodGet)
	r.HandleFunc("/workspaces", h.request).Methods(http.MethodPost)
	r.HandleFunc("/workspaces/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/workspaces/{id}/limits", h.setLimits).Methods(http.MethodPut)

	admin.HandleFunc("/workspaces", h.listAll).Methods(http.MethodGet)
	admin.HandleFunc("/workspaces/{id}/provision", h.provision).Methods(http.MethodPost)
}

func (h *WorkspaceHandler) list(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	workspaces, err := h.service.List(r.Context(), s)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (h *WorkspaceHandler) listAll(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	workspaces, err := h.service.ListAll(r.Context(), s)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, workspaces)
}

func (h *WorkspaceHandler) get(w http.ResponseWriter, r *http.Request) {
	s := auth.MustGetSessionFromContext(r.Context())
	ws, err := h.service.Get(r.Context(), s, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

// request submits a new workspace request. Entitlement depends on the
// requested workspace type, so roles are evaluated here rather than by a
// route gate.
func (h *WorkspaceHandler) request(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "invalid request body: " + err.Error()})
		return
	}

	s := auth.MustGetSessionFromContext(r.Context())
	roles := h.arborist.Roles(r.Context(), s)
	if _, ok := s.Store.Get(auth.KeyAccessToken); !ok {
		auth.WriteUnauthorized(w, "session expired")
		return
	}

	resp, err := h.service.Request(r.Context(), s, roles, req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *WorkspaceHandler) setLimits(w http.ResponseWriter, r *http.Request) {
	var req LimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "invalid request body: " + err.Error()})
		return
	}

	s := auth.MustGetSessionFromContext(r.Context())
	ws, err := h.service.SetLimits(r.Context(), s, mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *WorkspaceHandler) provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: "invalid request body: " + err.Error()})
		return
	}

	s := auth.MustGetSessionFromContext(r.Context())
	if err := h.service.Provision(r.Context(), s, mux.Vars(r)["id"], &req); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "success"})
}
