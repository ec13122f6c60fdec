// Package webhook provides event dispatching and delivery for webhooks.
//
// Webhook Dispatch Flow:
//  1. internal/changebus delivers a ChangeEvent to the Dispatcher.
//  2. Event is queued in a buffered channel (non-blocking, async)
//  3. Background worker processes events from queue
//  4. For each event, worker finds matching webhooks (filters by project + environment)
//  5. Worker attempts delivery to each matching webhook with retry logic
//  6. Delivery attempts are logged via the store adapter (webhook_deliveries)
//  7. Successful deliveries update webhook's last_triggered timestamp
//
// Retry Logic:
//   - Exponential backoff: 1s, 2s, 4s, 8s, etc.
//   - Max retries configured per webhook (default 3)
//   - Permanent failures are logged but don't block processing
//
// Thread Safety:
//   - Dispatcher uses a goroutine worker to process events asynchronously
//   - Dispatch() is non-blocking and safe to call from any goroutine
//   - Queue has fixed size (1000); if full, events are dropped with a warning
package webhook

import "time"

// EventConfigChanged is the sole event type dispatched: a config mutation
// landed for one environment and its version advanced. The underlying
// ChangeEvent carries no resource diff — only {environment_id, version} —
// so there is exactly one event shape to notify subscribers about.
const EventConfigChanged = "config.changed"

// Event represents a webhook event that will be sent to subscribed webhooks.
type Event struct {
	Type          string    `json:"event"`
	Timestamp     time.Time `json:"timestamp"`
	ProjectID     string    `json:"project_id"`
	EnvironmentID string    `json:"environment_id"`
	Version       int64     `json:"version"`
}
