package api

import (
	"net/http"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/validation"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListSegments(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	segs, err := s.store.ListSegments(r.Context(), pid)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, segs)
}

func (s *Server) handleCreateSegment(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req createSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	seg := model.Segment{
		ID:          newID(),
		ProjectID:   pid,
		Key:         req.Key,
		Name:        req.Name,
		MatchType:   req.MatchType,
		Constraints: req.Constraints,
	}

	result := validation.ValidateSegment(seg)
	if !result.Valid {
		ValidationError(w, r, "invalid segment", result.Errors)
		return
	}

	if err := s.store.CreateSegment(r.Context(), &seg); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "created", "segment", seg.ID).
			WithAfterState(map[string]any{"key": seg.Key, "match_type": seg.MatchType}).
			Build())
	}

	writeJSON(w, http.StatusCreated, seg)
}

func (s *Server) handleDeleteSegment(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	id := chi.URLParam(r, "id")

	// Deleting a segment cascades to every RuleSegment referencing it — the
	// store adapter owns the cascade; here we only bump the project's
	// environments so evaluators stop matching against the removed segment.
	if err := s.store.DeleteSegment(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "deleted", "segment", id).Build())
	}

	s.invalidateAndBump(r.Context(), pid)
	w.WriteHeader(http.StatusNoContent)
}
