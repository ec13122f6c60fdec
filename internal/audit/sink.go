package audit

import (
	"context"

	"github.com/flagwell/flagwell/internal/model"
	"github.com/flagwell/flagwell/internal/store"
)

// StoreSink persists audit events through the durable store adapter.
// model.AuditEntry's shape is intentionally minimal, so richer AuditEvent
// fields (before/after state, computed changes) are captured here for
// structured logging but are not threaded through to the persisted row.
type StoreSink struct {
	store store.Store
}

// NewStoreSink builds a sink backed by s.
func NewStoreSink(s store.Store) *StoreSink {
	return &StoreSink{store: s}
}

// Write persists event as a model.AuditEntry.
func (s *StoreSink) Write(ctx context.Context, event AuditEvent) error {
	entry := model.AuditEntry{
		ActorID:      actorID(event.Actor),
		ActorKind:    event.Actor.Kind,
		Action:       event.Action,
		ResourceType: event.ResourceType,
		ResourceID:   event.ResourceID,
		Status:       event.Status,
		IPAddress:    event.Source.IPAddress,
		OccurredAt:   event.OccurredAt,
	}
	if event.ProjectID != nil {
		entry.ProjectID = *event.ProjectID
	}
	return s.store.AppendAudit(ctx, entry)
}

func actorID(a Actor) string {
	if a.ID != nil {
		return *a.ID
	}
	return ""
}
