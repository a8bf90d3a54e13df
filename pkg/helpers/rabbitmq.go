package helpers

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitPublisher wraps an AMQP channel for publishing messages, either to a
// durable queue on the default exchange or to a durable topic exchange with a
// routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	Queue    string
	Exchange string
}

// NewRabbitPublisher connects and declares a durable queue on the default
// exchange. Used for the email job pipeline.
func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	_, err = ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, Queue: queue}, nil
}

// NewRabbitTopicPublisher connects and declares a durable topic exchange.
// Used for integration-event fan-out keyed by routing key.
func NewRabbitTopicPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, ch, err := dial(url)
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, Exchange: exchange}, nil
}

func dial(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func (p *RabbitPublisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// PublishJSON publishes a JSON-encoded message to the default queue.
func (p *RabbitPublisher) PublishJSON(ctx context.Context, body any) error {
	return p.publish(ctx, "", p.Queue, body)
}

// PublishTopicJSON publishes a JSON-encoded message to the topic exchange
// under the given routing key.
func (p *RabbitPublisher) PublishTopicJSON(ctx context.Context, routingKey string, body any) error {
	return p.publish(ctx, p.Exchange, routingKey, body)
}

func (p *RabbitPublisher) publish(ctx context.Context, exchange, routingKey string, body any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         b,
		},
	)
}
