package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/flagwell/flagwell/internal/changebus"
	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
	"github.com/google/uuid"
)

const (
	// queueSize is the buffer size for the event queue
	queueSize = 1000

	// maxResponseBodySize limits how much of the response body we store (1KB)
	maxResponseBodySize = 1024
)

// Dispatcher subscribes to the change bus and delivers a signed
// notification to every active webhook registered for the environment's
// project. The only fact a subscriber is told is "environment X is now at
// version Y" — callers that need the new config fetch it via
// /api/v1/flags-config or the SSE stream.
type Dispatcher struct {
	store  store.Store
	client *http.Client
	queue  chan Event
	done   chan struct{}
	closed int32 // atomic flag to prevent double-close
}

// NewDispatcher creates a new webhook dispatcher backed by the durable store.
func NewDispatcher(s store.Store) *Dispatcher {
	return &Dispatcher{
		store: s,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		queue: make(chan Event, queueSize),
		done:  make(chan struct{}),
	}
}

// Start begins processing events from the queue.
func (d *Dispatcher) Start() {
	go d.worker()
}

// Run subscribes to bus and dispatches a webhook Event for every
// ChangeEvent delivered, until ctx is cancelled. Lag deliveries are
// dropped: a webhook notifies "something changed", and a coalesced refresh
// after a lag is indistinguishable from the real thing to any consumer
// that then reads back current state.
func (d *Dispatcher) Run(ctx context.Context, bus *changebus.Bus) {
	ch, cancel := bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-ch:
			if !ok {
				return
			}
			if delivery.Lag {
				continue
			}
			d.DispatchChangeEvent(ctx, delivery.Event)
		}
	}
}

// DispatchChangeEvent resolves the environment's owning project and queues
// a config.changed event for delivery.
func (d *Dispatcher) DispatchChangeEvent(ctx context.Context, ev changebus.ChangeEvent) {
	env, err := d.store.GetEnvironment(ctx, ev.EnvironmentID)
	if err != nil {
		log.Printf("[webhook] cannot resolve environment_id=%s for change event: %v", ev.EnvironmentID, err)
		return
	}
	d.Dispatch(Event{
		Type:          EventConfigChanged,
		Timestamp:     time.Now(),
		ProjectID:     env.ProjectID,
		EnvironmentID: ev.EnvironmentID,
		Version:       ev.Version,
	})
}

// Close gracefully shuts down the webhook dispatcher.
// It closes the event queue and waits for all pending deliveries to complete.
// After Close is called, no new events should be dispatched.
//
// Close is safe to call multiple times - subsequent calls are no-ops.
func (d *Dispatcher) Close() error {
	if !atomic.CompareAndSwapInt32(&d.closed, 0, 1) {
		return nil // Already closed
	}
	close(d.queue)
	<-d.done
	return nil
}

// Dispatch queues an event for webhook delivery.
// This is non-blocking and will not slow down the caller.
func (d *Dispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
		log.Printf("[webhook] event queued: type=%s project=%s env=%s version=%d queue_size=%d",
			event.Type, event.ProjectID, event.EnvironmentID, event.Version, len(d.queue))
	default:
		log.Printf("[webhook] CRITICAL: queue full (size=%d), dropping event: type=%s project=%s env=%s",
			queueSize, event.Type, event.ProjectID, event.EnvironmentID)
	}
}

// worker processes events from the queue.
func (d *Dispatcher) worker() {
	defer close(d.done)

	for event := range d.queue {
		webhooks, err := d.store.ListActiveWebhooks(context.Background(), event.ProjectID)
		if err != nil {
			log.Printf("[webhook] failed to list webhooks for project=%s: %v", event.ProjectID, err)
			continue
		}

		for _, hook := range webhooks {
			if !matches(hook, event) {
				continue
			}
			d.deliverWithRetry(context.Background(), hook, event)
		}
	}
}

// matches reports whether hook should receive event, applying the optional
// environment allow-list (an empty list means "every environment").
func matches(hook model.Webhook, event Event) bool {
	if len(hook.Environments) == 0 {
		return true
	}
	for _, env := range hook.Environments {
		if env == event.EnvironmentID {
			return true
		}
	}
	return false
}

// deliverWithRetry attempts to deliver an event to a webhook with retry logic.
func (d *Dispatcher) deliverWithRetry(ctx context.Context, hook model.Webhook, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[webhook] failed to marshal event payload: webhook_id=%s event_type=%s error=%v",
			hook.ID, event.Type, err)
		d.logDelivery(ctx, hook.ID, event.Type, 0, err.Error(), 0, false, 0)
		return
	}

	signature := ComputeHMAC(payload, hook.Secret)
	deliveryID := uuid.New().String()

	maxRetries := hook.MaxRetries
	timeout := time.Duration(hook.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		start := time.Now()

		req, err := http.NewRequest(http.MethodPost, hook.URL, bytes.NewReader(payload))
		if err != nil {
			log.Printf("[webhook] failed to create request: webhook_id=%s url=%s error=%v", hook.ID, hook.URL, err)
			d.logDelivery(ctx, hook.ID, event.Type, 0, err.Error(), 0, false, attempt)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Flagwell-Signature", signature)
		req.Header.Set("X-Flagwell-Event", event.Type)
		req.Header.Set("X-Flagwell-Delivery", deliveryID)

		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		resp, err := d.client.Do(req.WithContext(reqCtx))
		duration := time.Since(start)

		var statusCode int
		var errorMsg string
		if err != nil {
			errorMsg = err.Error()
		} else {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
			resp.Body.Close()
			statusCode = resp.StatusCode
		}
		cancel()

		success := err == nil && statusCode >= 200 && statusCode < 300
		d.logDelivery(ctx, hook.ID, event.Type, statusCode, errorMsg, int(duration.Milliseconds()), success, attempt)

		if success {
			if terr := d.store.TouchWebhookLastTriggered(ctx, hook.ID); terr != nil {
				log.Printf("[webhook] failed to touch last_triggered: webhook_id=%s error=%v", hook.ID, terr)
			}
			return
		}

		if attempt < maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			log.Printf("[webhook] delivery failed: webhook_id=%s status=%d error=%q attempt=%d/%d retry_in=%s",
				hook.ID, statusCode, errorMsg, attempt+1, maxRetries+1, backoff)
			time.Sleep(backoff)
		} else {
			log.Printf("[webhook] delivery failed permanently: webhook_id=%s status=%d error=%q attempts=%d",
				hook.ID, statusCode, errorMsg, attempt+1)
		}
	}
}

// logDelivery records a webhook delivery attempt via the store. Logging is
// best-effort and never blocks or fails the delivery loop.
func (d *Dispatcher) logDelivery(ctx context.Context, webhookID, eventType string, statusCode int, errorMsg string, durationMs int, success bool, retryCount int) {
	rec := model.WebhookDelivery{
		ID:           uuid.New().String(),
		WebhookID:    webhookID,
		EventType:    eventType,
		StatusCode:   statusCode,
		Success:      success,
		ErrorMessage: errorMsg,
		DurationMs:   durationMs,
		RetryCount:   retryCount,
		OccurredAt:   time.Now(),
	}
	if err := d.store.RecordWebhookDelivery(ctx, rec); err != nil {
		log.Printf("[webhook] failed to record delivery: webhook_id=%s error=%v", webhookID, err)
	}
}
