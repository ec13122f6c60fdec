// Package main provides the flagwell feature flag service HTTP server.
//
// Application Startup Flow:
//
//  1. Load configuration from environment variables (config.Load)
//  2. Initialize Prometheus metrics registry (telemetry.Init)
//  3. Create the durable store - Postgres or in-memory (store.NewStore)
//  4. Connect the Redis snapshot cache (cache.New)
//  5. Resolve the identity provider's JWKS and start its periodic refresh (auth.NewJWKSCache)
//  6. Build the in-process change bus and bridge it to the cross-process NATS topic (changebus)
//  7. Start the audit service and webhook dispatcher, both backed by the durable store
//  8. Start the API server on HTTPAddr (evaluation, management, and SSE streaming)
//  9. Start the metrics/pprof server on MetricsAddr (for observability)
//  10. Wait for SIGINT/SIGTERM, then shut down both servers, drain the webhook queue, and signal the audit worker to drain its queue
//
// The server runs two HTTP servers concurrently:
//   - API Server (HTTPAddr): client-facing REST API and SSE streaming
//   - Metrics Server (MetricsAddr): Prometheus metrics and pprof profiling (internal use)
//
// Graceful Shutdown:
//   Both servers shut down gracefully with a 5-second timeout to allow in-flight
//   requests to complete. The webhook dispatcher's Close waits until its queue is
//   drained; the audit service's Close signals its worker to write the queued events
//   and returns without waiting for it.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	_ "net/http/pprof" // <-- registers /debug/pprof/* on DefaultServeMux
	"os/signal"
	"syscall"
	"time"

	"github.com/flagwell/flagwell/internal/api"
	"github.com/flagwell/flagwell/internal/audit"
	"github.com/flagwell/flagwell/internal/auth"
	"github.com/flagwell/flagwell/internal/cache"
	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/config"
	"github.com/flagwell/flagwell/internal/store"
	"github.com/flagwell/flagwell/internal/telemetry"
	"github.com/flagwell/flagwell/internal/webhook"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	telemetry.Init()

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to initialize store (type=%s): %v", cfg.StoreType, err)
	}
	defer st.Close()

	snapshotCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect snapshot cache: %v", err)
	}
	defer snapshotCache.Close()

	jwks, err := auth.NewJWKSCache(ctx, cfg.JWKSURL())
	if err != nil {
		log.Fatalf("failed to resolve JWKS from %s: %v", cfg.JWKSURL(), err)
	}
	go jwks.Run(ctx)
	verifier := auth.NewVerifier(st, jwks, cfg.IDPDomain)

	bus := changebus.NewBus()
	defer bus.Close()
	go changebus.Bridge(ctx, cfg.NATSURL, bus)

	publisher, err := changebus.NewPublisher(cfg.NATSURL)
	if err != nil {
		log.Fatalf("failed to connect change publisher: %v", err)
	}
	defer publisher.Close()

	auditSvc := audit.NewService(audit.NewStoreSink(st), audit.SystemClock{}, audit.UUIDGenerator{}, audit.NewDefaultRedactor(), 1000)
	defer auditSvc.Close()

	webhooks := webhook.NewDispatcher(st)
	webhooks.Start()
	go webhooks.Run(ctx, bus)
	defer webhooks.Close()

	log.Printf("[server] startup complete: store=%s env=%s", cfg.StoreType, cfg.AppEnv)

	// ---- API server ----
	apiSrv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      api.NewServer(st, snapshotCache, bus, publisher, verifier, auditSvc, webhooks).Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0, // keep SSE connections alive
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("[server] http server listening on %s", cfg.HTTPAddr())
		if err := apiSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server: %v", err)
		}
	}()

	// ---- Metrics + pprof server ----
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	// forward /debug/pprof/* to DefaultServeMux where pprof registered
	mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)

	metricsSrv := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Printf("[server] metrics/pprof server listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server: %v", err)
		}
	}()

	// ---- Graceful shutdown for both servers ----
	<-ctx.Done()

	log.Println("[server] shutdown signal received, stopping servers...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] error during API server shutdown: %v", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[server] error during metrics server shutdown: %v", err)
	}

	log.Println("[server] servers stopped successfully")
}
