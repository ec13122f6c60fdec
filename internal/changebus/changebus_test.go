package changebus_test

import (
	"testing"
	"time"

	"github.com/flagwell/flagwell/internal/changebus"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := changebus.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	bus.Publish(changebus.ChangeEvent{EnvironmentID: "env-1", Version: 2})

	select {
	case d := <-ch:
		if d.Lag {
			t.Fatal("unexpected lag indication")
		}
		if d.Event.EnvironmentID != "env-1" || d.Event.Version != 2 {
			t.Fatalf("unexpected event: %+v", d.Event)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

func TestSlowSubscriberGetsLagIndication(t *testing.T) {
	bus := changebus.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	// Fill the subscriber's buffer, then publish once more to force a lag
	// marker instead of a blocked publisher.
	for i := 0; i < 300; i++ {
		bus.Publish(changebus.ChangeEvent{EnvironmentID: "env-1", Version: int64(i)})
	}

	sawLag := false
	for i := 0; i < 300; i++ {
		select {
		case d := <-ch:
			if d.Lag {
				sawLag = true
			}
		default:
		}
	}
	if !sawLag {
		t.Fatal("expected at least one lag indication for an overflowing subscriber")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := changebus.NewBus()
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}
