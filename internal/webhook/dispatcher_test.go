package webhook

import (
	"encoding/json"
	"testing"

	"github.com/flagwell/flagwell/internal/model"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name  string
		hook  model.Webhook
		event Event
		want  bool
	}{
		{
			name:  "no environment filter matches all",
			hook:  model.Webhook{Environments: nil},
			event: Event{EnvironmentID: "env-1"},
			want:  true,
		},
		{
			name:  "matches environment filter",
			hook:  model.Webhook{Environments: []string{"env-1", "env-2"}},
			event: Event{EnvironmentID: "env-1"},
			want:  true,
		},
		{
			name:  "does not match environment filter",
			hook:  model.Webhook{Environments: []string{"env-2"}},
			event: Event{EnvironmentID: "env-1"},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matches(tt.hook, tt.event); got != tt.want {
				t.Errorf("matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventJSONMarshaling(t *testing.T) {
	event := Event{
		Type:          EventConfigChanged,
		ProjectID:     "proj-1",
		EnvironmentID: "env-1",
		Version:       42,
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Type != event.Type || decoded.EnvironmentID != event.EnvironmentID || decoded.Version != event.Version {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, event)
	}
}
