package api

import (
	"net/http"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/webhook"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")
	hooks, err := s.store.ListActiveWebhooks(r.Context(), pid)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hooks)
}

func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	pid := chi.URLParam(r, "pid")

	var req createWebhookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		BadRequestError(w, r, ErrCodeMissingField, "url is required")
		return
	}

	maxRetries := req.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	timeout := req.TimeoutSeconds
	if timeout <= 0 {
		timeout = 5
	}

	secret, err := webhook.GenerateSecret()
	if err != nil {
		InternalError(w, r, "failed to generate webhook secret")
		return
	}

	hook := &model.Webhook{
		ID:             newID(),
		ProjectID:      pid,
		URL:            req.URL,
		Secret:         secret,
		Environments:   req.Environments,
		MaxRetries:     maxRetries,
		TimeoutSeconds: timeout,
		Active:         true,
	}
	if err := s.store.CreateWebhook(r.Context(), hook); err != nil {
		writeStoreError(w, r, err)
		return
	}

	if s.audit != nil {
		s.audit.Log(auditEvent(r, "created", "webhook", hook.ID).
			WithAfterState(map[string]any{"url": hook.URL}).
			Build())
	}

	writeJSON(w, http.StatusCreated, webhookWithSecret{Webhook: *hook, Secret: secret})
}
