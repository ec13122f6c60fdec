package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/flagwell/flagwell/internal/audit"
	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
	"github.com/google/uuid"
)

// auditEvent starts an EventBuilder for a mutation against (resourceType,
// resourceID), tagged with action. Handlers chain WithBeforeState/
// WithAfterState/WithEnvironment/Failure as needed before calling Build().
func auditEvent(r *http.Request, action, resourceType, resourceID string) *audit.EventBuilder {
	return audit.NewEventBuilder(r).ForResource(resourceType, resourceID).WithAction(action)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes r's body into v, writing a 400 response on failure.
// Returns false when decoding failed and the handler should return early.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequestError(w, r, ErrCodeInvalidJSON, "request body is not valid JSON")
		return false
	}
	return true
}

// newID generates a fresh entity identifier. A thin wrapper so every
// handler constructs ids the same way.
func newID() string { return uuid.New().String() }

// storeErrorStatus maps a store error to the HTTP status it should
// surface as.
func storeErrorStatus(err error) (int, ErrorCode, string) {
	switch err {
	case store.ErrNotFound:
		return http.StatusNotFound, ErrCodeNotFound, "resource not found"
	case store.ErrConflict:
		return http.StatusConflict, ErrCodeValidation, "resource already exists"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "internal error"
	}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := storeErrorStatus(err)
	errResp := NewErrorResponse(status, code, msg)
	writeErrorResponse(w, r, status, errResp)
}

// requirePrincipal fetches the authenticated principal; absent only if the
// auth middleware was bypassed, which never happens on a wired route.
func requirePrincipal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}

// environmentForSDK resolves the (project_id, environment_id) pair an SDK
// principal is scoped to. auth.Principal carries only EnvironmentID; the
// owning project is resolved from the store since SDK credentials are
// minted per-environment, not per-project.
func environmentForSDK(ctx context.Context, st store.Store, p auth.Principal) (projectID, environmentID string, err error) {
	env, err := st.GetEnvironment(ctx, p.EnvironmentID)
	if err != nil {
		return "", "", err
	}
	return env.ProjectID, env.ID, nil
}

// invalidateAndBump runs the write-path fan-out required
// after any mutation to a flag's evaluation surface: invalidate the cache
// and bump the config version for every environment of projectID, then
// publish a change event on the cross-process topic for each.
func (s *Server) invalidateAndBump(ctx context.Context, projectID string) {
	envs, err := s.store.ListEnvironments(ctx, projectID)
	if err != nil {
		return
	}
	for _, env := range envs {
		if s.cache != nil {
			s.cache.Invalidate(ctx, env.ID)
		}
		version, err := s.store.IncrementConfigVersion(ctx, env.ID)
		if err != nil {
			continue
		}
		event := changebus.ChangeEvent{EnvironmentID: env.ID, Version: version}
		s.bus.Publish(event)
		if s.publisher != nil {
			s.publisher.Publish(event)
		}
	}
}

// flagToAuditMap converts a model.Flag into a redaction-friendly map for
// the audit log's before/after state.
func flagToAuditMap(f *model.Flag) map[string]any {
	if f == nil {
		return nil
	}
	return map[string]any{
		"key":       f.Key,
		"name":      f.Name,
		"flag_type": f.FlagType,
		"archived":  f.Archived,
		"variants":  f.Variants,
	}
}
