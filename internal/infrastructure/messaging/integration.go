package messaging

import (
	"strings"
	"time"

	"github.com/agrovia/agrovia-api/internal/domain/event"
)

// IntegrationEvent is the stable, externally-consumed translation of a domain
// event, decoupled from the internal shape.
type IntegrationEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	AggregateID string    `json:"aggregate_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Version     int       `json:"version"`
	Payload     any       `json:"payload"`
}

// NewIntegrationEvent wraps a domain event in the external envelope. The full
// event (including its envelope fields) rides along as payload so consumers
// never depend on internal struct names.
func NewIntegrationEvent(ev event.DomainEvent) IntegrationEvent {
	return IntegrationEvent{
		EventID:     ev.EventID(),
		EventType:   RoutingKey(ev.EventName()),
		AggregateID: ev.AggregateID(),
		OccurredAt:  ev.OccurredAt(),
		Version:     ev.EventVersion(),
		Payload:     ev,
	}
}

// RoutingKey derives the broker routing key from an event type name: strip a
// DomainEvent/IntegrationEvent suffix, lowercase, prefix with the aggregate
// namespace. UserLoggedIn -> auth.userloggedin.
func RoutingKey(eventName string) string {
	name := strings.TrimSuffix(eventName, "DomainEvent")
	name = strings.TrimSuffix(name, "IntegrationEvent")
	return "auth." + strings.ToLower(name)
}
