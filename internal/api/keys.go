package api

import (
	"net/http"

	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListSDKKeys(w http.ResponseWriter, r *http.Request) {
	// Keys are scoped by environment, not project; the project route
	// fans this out across every environment in the project.
	pid := chi.URLParam(r, "pid")
	envs, err := s.store.ListEnvironments(r.Context(), pid)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	var creds []model.SDKCredential
	for _, env := range envs {
		list, err := s.store.ListSDKCredentials(r.Context(), env.ID)
		if err != nil {
			writeStoreError(w, r, err)
			return
		}
		creds = append(creds, list...)
	}
	writeJSON(w, http.StatusOK, creds)
}

func (s *Server) handleCreateSDKKey(w http.ResponseWriter, r *http.Request) {
	var req createSDKKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EnvironmentID == "" {
		BadRequestError(w, r, ErrCodeMissingField, "environment_id is required")
		return
	}
	switch req.Type {
	case model.CredentialServer, model.CredentialClient:
	default:
		BadRequestError(w, r, ErrCodeValidation, "type must be server or client")
		return
	}

	raw, hash, err := auth.GenerateSDKCredential(req.Type)
	if err != nil {
		InternalError(w, r, "failed to generate sdk credential")
		return
	}

	cred := &model.SDKCredential{
		ID:            newID(),
		EnvironmentID: req.EnvironmentID,
		Type:          req.Type,
		Name:          req.Name,
		KeyHash:       hash,
		KeyPrefix:     raw[:12],
	}
	if err := s.store.CreateSDKCredential(r.Context(), cred); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "created", "sdk_key", cred.ID).
			WithEnvironment(cred.EnvironmentID).
			WithAfterState(map[string]any{"type": cred.Type, "name": cred.Name}).
			Build())
	}

	writeJSON(w, http.StatusCreated, sdkCredentialWithSecret{SDKCredential: *cred, Secret: raw})
}

func (s *Server) handleRevokeSDKKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.RevokeSDKCredential(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "revoked", "sdk_key", id).Build())
	}

	w.WriteHeader(http.StatusNoContent)
}
