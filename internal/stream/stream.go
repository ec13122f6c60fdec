// Package stream implements the SSE long-lived subscription surface. Each
// connected SDK holds one broadcaster receiver; on connect it gets the
// current snapshot immediately, then a fresh one on every relevant change
// event, with a 15s keepalive so intermediary proxies do not idle the
// connection closed.
package stream

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/flagwell/flagwell/internal/cache"
	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/snapshot"
	"github.com/flagwell/flagwell/internal/store"
	"github.com/flagwell/flagwell/internal/telemetry"
)

// Keepalive is the interval at which a comment is emitted to keep the
// connection alive through idle-closing proxies.
const Keepalive = 15 * time.Second

// Server serves one SSE connection per call to ServeHTTP.
type Server struct {
	Store   store.Store
	Cache   *cache.Cache
	Bus     *changebus.Bus
	BuildFn func(ctx context.Context, st store.Store, projectID, environmentID string) (*snapshot.Config, error)
}

// NewServer constructs a Server wired to the given dependencies.
func NewServer(st store.Store, ch *cache.Cache, bus *changebus.Bus) *Server {
	return &Server{Store: st, Cache: ch, Bus: bus, BuildFn: snapshot.Build}
}

// ServeHTTP implements the SSE subscription lifecycle: push the current
// snapshot immediately, then a fresh one on every relevant change event,
// with periodic keepalives. The caller's principal (resolved by the auth
// dispatcher upstream) determines projectID/environmentID; this handler
// assumes they are already authenticated and scoped by the time it runs.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request, projectID, environmentID string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ch, cancel := s.Bus.Subscribe()
	defer cancel()

	telemetry.SSEClients.Inc()
	defer telemetry.SSEClients.Dec()

	ctx := r.Context()

	if err := s.pushSnapshot(ctx, w, flusher, projectID, environmentID); err != nil {
		log.Printf("[stream] initial build failed for environment_id=%s: %v", environmentID, err)
		writeEvent(w, flusher, "error", []byte(err.Error()))
	}

	ticker := time.NewTicker(Keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			writeComment(w, flusher, "keepalive")
		case delivery, open := <-ch:
			if !open {
				return // broadcaster closed: terminate cleanly
			}
			if !delivery.Lag && delivery.Event.EnvironmentID != environmentID {
				continue // mismatched events are silently ignored
			}
			if err := s.pushSnapshot(ctx, w, flusher, projectID, environmentID); err != nil {
				log.Printf("[stream] rebuild failed for environment_id=%s: %v", environmentID, err)
				// Logged and swallowed: the stream stays open, the next
				// change event retries.
			}
		}
	}
}

func (s *Server) pushSnapshot(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, projectID, environmentID string) error {
	var cfg *snapshot.Config
	if s.Cache != nil {
		if cached, ok := s.Cache.Get(ctx, environmentID); ok {
			cfg = cached
		}
	}
	if cfg == nil {
		built, err := s.BuildFn(ctx, s.Store, projectID, environmentID)
		if err != nil {
			return err
		}
		cfg = built
		if s.Cache != nil {
			s.Cache.Put(ctx, cfg)
		}
	}

	payload, err := cfg.MarshalJSON()
	if err != nil {
		return err
	}
	writeEvent(w, flusher, "config", payload)
	return nil
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event string, data []byte) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func writeComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
	flusher.Flush()
}
