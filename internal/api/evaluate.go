package api

import (
	"context"
	"net/http"

	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/engine"
	"github.com/flagwell/flagwell/internal/snapshot"
)

// loadConfig resolves the snapshot for an SDK principal's scoped
// environment, preferring the advisory cache and falling back to a fresh
// build on a miss.
func (s *Server) loadConfig(ctx context.Context, p auth.Principal) (*snapshot.Config, error) {
	projectID, environmentID, err := environmentForSDK(ctx, s.store, p)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cfg, ok := s.cache.Get(ctx, environmentID); ok {
			return cfg, nil
		}
	}

	cfg, err := snapshot.Build(ctx, s.store, projectID, environmentID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(ctx, cfg)
	}
	return cfg, nil
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(r)

	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FlagKey == "" {
		BadRequestError(w, r, ErrCodeMissingField, "flag_key is required")
		return
	}

	cfg, err := s.loadConfig(r.Context(), p)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	result := engine.Evaluate(cfg, req.FlagKey, toEngineContext(req.Context), req.DefaultValue)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvaluateBatch(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(r)

	var req evaluateBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cfg, err := s.loadConfig(r.Context(), p)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	results := make([]engine.Result, 0, len(req.Flags))
	for _, item := range req.Flags {
		ctx := req.Context
		if item.Context != nil {
			ctx = *item.Context
		}
		results = append(results, engine.Evaluate(cfg, item.FlagKey, toEngineContext(ctx), item.DefaultValue))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleFlagsConfig(w http.ResponseWriter, r *http.Request) {
	p := requirePrincipal(r)

	cfg, err := s.loadConfig(r.Context(), p)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = writeConfigJSON(w, cfg)
}

func writeConfigJSON(w http.ResponseWriter, cfg *snapshot.Config) error {
	payload, err := cfg.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func toEngineContext(c evaluateContext) engine.Context {
	return engine.Context{TargetingKey: c.TargetingKey, Attributes: c.Attributes}
}
