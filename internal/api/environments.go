package api

import (
	"net/http"
	"strings"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	envs, err := s.store.ListEnvironments(r.Context(), pid)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envs)
}

func (s *Server) handleCreateEnvironment(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req createEnvironmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Key) == "" {
		BadRequestError(w, r, ErrCodeMissingField, "key is required")
		return
	}

	env := &model.Environment{
		ID:        newID(),
		ProjectID: pid,
		Key:       req.Key,
		Name:      req.Name,
		SortOrder: req.SortOrder,
	}
	if err := s.store.CreateEnvironment(r.Context(), env); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "created", "environment", env.ID).
			WithAfterState(map[string]any{"key": env.Key, "name": env.Name}).
			Build())
	}

	writeJSON(w, http.StatusCreated, env)
}
