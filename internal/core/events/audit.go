package events

import (
	"context"
	"log/slog"
)

// RegisterAuditSubscriber logs every access-control mutation as a structured
// audit record. The audit trail goes through the logger rather than a table
// so log shipping picks it up alongside request logs.
func RegisterAuditSubscriber(bus *EventBus, logger *slog.Logger) {
	handler := func(ctx context.Context, event Event) error {
		logger.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"payload", event.Payload())
		return nil
	}

	for _, eventType := range AuditEventTypes {
		bus.Subscribe(eventType, handler)
	}
}
