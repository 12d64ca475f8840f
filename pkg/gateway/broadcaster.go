package gateway

import (
	"time"

	"github.com/rs/zerolog"
)

// EventBroadcaster fans server-initiated events out to every authenticated
// client.
type EventBroadcaster struct {
	clients *ClientRegistry
	logger  zerolog.Logger
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster(clients *ClientRegistry, logger zerolog.Logger) *EventBroadcaster {
	return &EventBroadcaster{
		clients: clients,
		logger:  logger,
	}
}

// Broadcast sends an event to all authenticated clients. A client whose
// write fails is skipped; its read loop notices the broken connection.
func (b *EventBroadcaster) Broadcast(event string, data interface{}) {
	msg := EventMessage{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}

	clients := b.clients.GetAuthenticatedClients()
	if len(clients) == 0 {
		return
	}

	failures := 0
	for _, client := range clients {
		if err := client.writeJSON(msg); err != nil {
			failures++
		}
	}

	if failures > 0 {
		b.logger.Warn().
			Str("event", event).
			Int("failures", failures).
			Int("clients", len(clients)).
			Msg("Broadcast partially failed")
	}
}
