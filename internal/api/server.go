// Package api provides the HTTP handlers and router for flagwell's
// management, evaluation, and streaming surfaces.
package api

import (
	"net/http"
	"time"

	"github.com/flagwell/flagwell/internal/audit"
	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/cache"
	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/store"
	"github.com/flagwell/flagwell/internal/stream"
	"github.com/flagwell/flagwell/internal/telemetry"
	"github.com/flagwell/flagwell/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Server holds every dependency the HTTP surface needs: the durable store,
// the advisory cache, the in-process change broadcaster and its
// cross-process publisher, the auth dispatcher, the audit log, the
// webhook dispatcher, and the SSE stream server.
type Server struct {
	store     store.Store
	cache     *cache.Cache
	bus       *changebus.Bus
	publisher *changebus.Publisher
	verifier  *auth.Verifier
	audit     *audit.Service
	webhooks  *webhook.Dispatcher
	stream    *stream.Server
}

// NewServer wires a Server from its dependencies. cache, publisher, audit,
// and webhooks may be nil in a reduced deployment (e.g. tests using
// internal/store/memory); every nil dependency is treated as absent rather
// than required.
func NewServer(s store.Store, ch *cache.Cache, bus *changebus.Bus, pub *changebus.Publisher, verifier *auth.Verifier, auditSvc *audit.Service, webhooks *webhook.Dispatcher) *Server {
	return &Server{
		store:     s,
		cache:     ch,
		bus:       bus,
		publisher: pub,
		verifier:  verifier,
		audit:     auditSvc,
		webhooks:  webhooks,
		stream:    stream.NewServer(s, ch, bus),
	}
}

// Router builds the chi router for the full HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(telemetry.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/api/v1/setup", s.handleSetup)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(5 * time.Second))
			r.Use(httprate.LimitByIP(300, time.Minute))
			r.Use(s.verifier.Middleware)

			r.Get("/projects", s.handleListProjects)
			r.Get("/projects/{pid}", s.handleGetProject)

			r.Route("/projects/{pid}/flags", func(r chi.Router) {
				r.Get("/", s.handleListFlags)
				r.Post("/", s.handleCreateFlag)
				r.Get("/{key}", s.handleGetFlag)
				r.Put("/{key}", s.handleUpdateFlag)
				r.Delete("/{key}", s.handleDeleteFlag)
				r.Patch("/{key}/toggle", s.handleToggleFlag)
			})

			r.Route("/projects/{pid}/segments", func(r chi.Router) {
				r.Get("/", s.handleListSegments)
				r.Post("/", s.handleCreateSegment)
				r.Delete("/{id}", s.handleDeleteSegment)
			})

			r.Route("/projects/{pid}/environments", func(r chi.Router) {
				r.Get("/", s.handleListEnvironments)
				r.Post("/", s.handleCreateEnvironment)
			})

			r.Route("/projects/{pid}/sdk-keys", func(r chi.Router) {
				r.Get("/", s.handleListSDKKeys)
				r.Post("/", s.handleCreateSDKKey)
				r.Post("/{id}/revoke", s.handleRevokeSDKKey)
			})

			r.Route("/projects/{pid}/webhooks", func(r chi.Router) {
				r.Get("/", s.handleListWebhooks)
				r.Post("/", s.handleCreateWebhook)
			})

			r.Get("/projects/{pid}/audit-log", s.handleAuditLog)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(1200, time.Minute))
			r.Use(s.verifier.Middleware)
			r.Use(auth.RequireSDK)

			r.Post("/evaluate", s.handleEvaluate)
			r.Post("/evaluate/batch", s.handleEvaluateBatch)
			r.Get("/flags-config", s.handleFlagsConfig)

			r.Group(func(r chi.Router) {
				r.Use(middleware.NoCache)
				r.Get("/stream", s.handleStream)
			})
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.ListProjects(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
