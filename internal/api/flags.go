package api

import (
	"net/http"

	"github.com/flagwell/flagwell/internal/audit"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/validation"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	flags, err := s.store.ListFlags(r.Context(), pid)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flags)
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	key := chi.URLParam(r, "key")
	flag, err := s.store.GetFlagByKey(r.Context(), pid, key)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s *Server) handleCreateFlag(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req createFlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result := validation.ValidateKey("key", req.Key)
	result.Merge(validation.ValidateDescription(req.Description))
	result.Merge(validation.ValidateFlagType(req.FlagType))
	for i := range req.Variants {
		if req.Variants[i].ID == "" {
			req.Variants[i].ID = newID()
		}
	}
	result.Merge(validation.ValidateVariants(req.Variants, req.FlagType))
	if !result.Valid {
		ValidationError(w, r, "invalid flag", result.Errors)
		return
	}

	flag := &model.Flag{
		ID:          newID(),
		ProjectID:   pid,
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
		FlagType:    req.FlagType,
		Tags:        req.Tags,
		Variants:    req.Variants,
	}
	if err := s.store.CreateFlag(r.Context(), flag); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, audit.ActionCreated, audit.ResourceTypeFlag, flag.ID).
			WithAfterState(flagToAuditMap(flag)).
			Build())
	}

	writeJSON(w, http.StatusCreated, flag)
}

func (s *Server) handleUpdateFlag(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	key := chi.URLParam(r, "key")

	flag, err := s.store.GetFlagByKey(r.Context(), pid, key)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	before := flagToAuditMap(flag)

	var req updateFlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Name != "" {
		flag.Name = req.Name
	}
	if req.Description != "" {
		flag.Description = req.Description
	}
	if req.Tags != nil {
		flag.Tags = req.Tags
	}
	if req.Archived != nil {
		flag.Archived = *req.Archived
	}
	if req.Variants != nil {
		result := validation.ValidateVariants(req.Variants, flag.FlagType)
		if !result.Valid {
			ValidationError(w, r, "invalid variants", result.Errors)
			return
		}
		flag.Variants = req.Variants
	}

	if err := s.store.UpdateFlag(r.Context(), flag); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if req.EnvironmentID != "" {
		if !s.applyFlagEnvironment(w, r, flag, req) {
			return
		}
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, audit.ActionUpdated, audit.ResourceTypeFlag, flag.ID).
			WithBeforeState(before).
			WithAfterState(flagToAuditMap(flag)).
			Build())
	}

	s.invalidateAndBump(r.Context(), pid)
	writeJSON(w, http.StatusOK, flag)
}

// applyFlagEnvironment merges the per-environment fields of req (toggle
// state, default variant, rules, overrides) into flag's environment row.
// Writes an error response and returns false on validation failure.
func (s *Server) applyFlagEnvironment(w http.ResponseWriter, r *http.Request, flag *model.Flag, req updateFlagRequest) bool {
	fe, err := s.store.GetFlagEnvironment(r.Context(), flag.ID, req.EnvironmentID)
	if err != nil {
		fe = &model.FlagEnvironment{FlagID: flag.ID, EnvironmentID: req.EnvironmentID}
	}

	if req.Enabled != nil {
		fe.Enabled = *req.Enabled
	}
	if req.DefaultVariantID != "" {
		fe.DefaultVariantID = req.DefaultVariantID
	}
	if req.Rules != nil {
		fe.Rules = req.Rules
	}
	if req.Overrides != nil {
		fe.Overrides = req.Overrides
	}

	variantIDs := make(map[string]bool, len(flag.Variants))
	for _, v := range flag.Variants {
		variantIDs[v.ID] = true
	}
	segments, err := s.store.ListSegments(r.Context(), flag.ProjectID)
	if err != nil {
		InternalError(w, r, "failed to load segments for validation")
		return false
	}
	segmentIDs := make(map[string]bool, len(segments))
	for _, seg := range segments {
		segmentIDs[seg.ID] = true
	}

	result := validation.NewValidationResult()
	if fe.DefaultVariantID != "" {
		result.Merge(validation.ValidateDefaultVariant(fe.DefaultVariantID, flag.Variants))
	}
	for _, rule := range fe.Rules {
		result.Merge(validation.ValidateRule(rule, variantIDs, segmentIDs))
	}
	if !result.Valid {
		ValidationError(w, r, "invalid flag environment state", result.Errors)
		return false
	}

	if err := s.store.UpsertFlagEnvironment(r.Context(), fe); err != nil {
		writeStoreError(w, r, err)
		return false
	}
	return true
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	key := chi.URLParam(r, "key")

	if err := s.store.DeleteFlag(r.Context(), pid, key); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, audit.ActionDeleted, audit.ResourceTypeFlag, key).Build())
	}

	s.invalidateAndBump(r.Context(), pid)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFlag(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	key := chi.URLParam(r, "key")

	var req toggleFlagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EnvironmentID == "" {
		BadRequestError(w, r, ErrCodeMissingField, "environment_id is required")
		return
	}

	flag, err := s.store.GetFlagByKey(r.Context(), pid, key)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if err := s.store.SetFlagEnabled(r.Context(), flag.ID, req.EnvironmentID, req.Enabled); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, audit.ActionUpdated, audit.ResourceTypeFlag, flag.ID).
			WithEnvironment(req.EnvironmentID).
			WithChanges(map[string]any{"enabled": req.Enabled}).
			Build())
	}

	s.invalidateAndBump(r.Context(), pid)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": req.Enabled})
}
