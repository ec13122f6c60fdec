// Package changebus implements the two-level change-propagation fan-out: a
// cross-process NATS topic named "config_changes", bridged into a bounded
// in-process broadcaster that every local stream subscriber reads from. A
// slow subscriber receives an explicit lag indication rather than blocking
// the publisher.
package changebus

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Topic is the cross-process pub/sub subject name.
const Topic = "config_changes"

// subscriberBuffer is the bounded capacity of each subscriber's channel.
const subscriberBuffer = 256

// ChangeEvent is published whenever a mutation affects an environment's
// evaluation surface.
type ChangeEvent struct {
	EnvironmentID string `json:"environment_id"`
	Version       int64  `json:"version"`
}

// Delivery is what a subscriber receives: either a concrete ChangeEvent, or
// (if Lag is true) an indication that this subscriber fell behind the ring
// and must treat it as a full refresh regardless of environment.
type Delivery struct {
	Event ChangeEvent
	Lag   bool
}

// Bus is the in-process broadcaster. It is safe for concurrent use.
type Bus struct {
	mu   sync.Mutex
	subs map[chan Delivery]struct{}
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Delivery]struct{})}
}

// Subscribe registers a new receiver. Callers must call the returned
// cancel function when done to release the channel.
func (b *Bus) Subscribe() (<-chan Delivery, func()) {
	ch := make(chan Delivery, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans event out to every current subscriber. A subscriber whose
// buffer is full receives a lag indication instead of blocking the
// publisher: its oldest pending delivery is dropped to make room for the
// lag marker. A dropped event is still recoverable because a lag delivery
// tells the subscriber to rebuild unconditionally.
func (b *Bus) Publish(event ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- Delivery{Event: event}:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- Delivery{Lag: true}:
			default:
			}
		}
	}
}

// Close releases every subscriber channel. Used at process shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}

// Bridge subscribes to the cross-process NATS topic and republishes every
// message onto bus, until ctx is cancelled. On any NATS error it sleeps 5s
// and reconnects; subscribers never see the bridge restart — they simply
// miss events during the gap, which is tolerable because every change also
// invalidates the cache and bumps the version.
func Bridge(ctx context.Context, natsURL string, bus *Bus) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := runBridge(ctx, natsURL, bus); err != nil {
			log.Printf("[changebus] bridge error, reconnecting in 5s: %v", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func runBridge(ctx context.Context, natsURL string, bus *Bus) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return err
	}
	defer nc.Close()

	sub, err := nc.Subscribe(Topic, func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("[changebus] malformed message on %s: %v", Topic, err)
			return
		}
		bus.Publish(event)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

// Publisher publishes a ChangeEvent onto the cross-process topic. Used by
// the mutation handler path after incrementing a config version.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher connects to NATS for publishing only.
func NewPublisher(natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Publisher{nc: nc}, nil
}

// Publish sends event on the cross-process topic. Errors are logged and
// swallowed — publication is best-effort.
func (p *Publisher) Publish(event ChangeEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[changebus] marshal failed for environment_id=%s: %v", event.EnvironmentID, err)
		return
	}
	if err := p.nc.Publish(Topic, data); err != nil {
		log.Printf("[changebus] publish failed for environment_id=%s: %v", event.EnvironmentID, err)
	}
}

// Close drains and closes the underlying NATS connection.
func (p *Publisher) Close() { p.nc.Close() }
