package messaging

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/agrovia/agrovia-api/internal/domain/event"
)

// Handler reacts to a domain event synchronously in-process (Channel A).
// Handlers run in registration order before the broker publish.
type Handler interface {
	Handle(ctx context.Context, ev event.DomainEvent) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ev event.DomainEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev event.DomainEvent) error { return f(ctx, ev) }

// BrokerPublisher is Channel B: an asynchronous network publish keyed by
// routing key. Satisfied by helpers.RabbitPublisher.
type BrokerPublisher interface {
	PublishTopicJSON(ctx context.Context, routingKey string, body any) error
}

// Dispatcher delivers every domain event to both channels: in-process
// handlers first, then the broker. Delivery is at-most-once; there is no
// outbox, retry or acknowledgment tracking. A broker failure propagates to
// the caller even though the state change has already been committed.
type Dispatcher struct {
	handlers map[string][]Handler
	broker   BrokerPublisher
	logger   *logrus.Logger
}

func NewDispatcher(broker BrokerPublisher, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]Handler),
		broker:   broker,
		logger:   logger,
	}
}

// Subscribe registers an in-process handler for the named event.
func (d *Dispatcher) Subscribe(eventName string, h Handler) {
	d.handlers[eventName] = append(d.handlers[eventName], h)
}

// Publish dispatches a single event: Channel A handlers in registration
// order, then Channel B. No parallel fan-out, no batching. Errors from either
// channel propagate.
func (d *Dispatcher) Publish(ctx context.Context, ev event.DomainEvent) error {
	for _, h := range d.handlers[ev.EventName()] {
		if err := h.Handle(ctx, ev); err != nil {
			return err
		}
	}
	if d.broker == nil {
		return nil
	}
	ie := NewIntegrationEvent(ev)
	if err := d.broker.PublishTopicJSON(ctx, ie.EventType, ie); err != nil {
		if d.logger != nil {
			d.logger.WithError(err).WithField("event", ev.EventName()).Error("broker publish failed")
		}
		return err
	}
	return nil
}

// PublishAll dispatches events in emission order, stopping at the first
// failure. Events after the failing one are lost (documented at-most-once
// trade-off).
func (d *Dispatcher) PublishAll(ctx context.Context, evs []event.DomainEvent) error {
	for _, ev := range evs {
		if err := d.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
