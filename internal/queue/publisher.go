package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends OrderConfirmedEvent messages to RabbitMQ.  Each call
// dials the broker, declares the queue and publishes one persistent
// message; orders are rare enough that a pooled connection is not needed.
type Publisher struct {
	url string
	log logrus.FieldLogger
}

func NewPublisher(url string, log logrus.FieldLogger) *Publisher {
	return &Publisher{url: url, log: log.WithField("component", "order-publisher")}
}

// PublishOrderConfirmed publishes ev.  Errors are logged and returned so the
// caller can decide to ignore them.
func (p *Publisher) PublishOrderConfirmed(ctx context.Context, ev OrderConfirmedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Warn("dial failed")
		return fmt.Errorf("queue: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Warn("channel open failed")
		return fmt.Errorf("queue: channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		OrderConfirmedQueue, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		p.log.WithError(err).Warn("queue declare failed")
		return fmt.Errorf("queue: declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("queue: marshal: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                  // default exchange
		OrderConfirmedQueue, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		pub,
	); err != nil {
		p.log.WithError(err).Warn("publish failed")
		return fmt.Errorf("queue: publish: %w", err)
	}
	p.log.WithField("order_id", ev.OrderID).Debug("order event published")
	return nil
}

// NopPublisher drops every event.  It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderConfirmed(context.Context, OrderConfirmedEvent) error { return nil }
