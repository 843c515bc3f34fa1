package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Consumer reads the order.confirmed queue and appends one line per order to
// <Dir>/orders.log.
type Consumer struct {
	URL string
	Dir string
	Log logrus.FieldLogger
}

// Run consumes until ctx is cancelled or the broker closes the delivery
// channel.  Messages that cannot be handled are rejected without requeue so
// a poison message cannot spin the loop.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log.WithField("component", "order-consumer")
	conn, err := amqp.Dial(c.URL)
	if err != nil {
		return fmt.Errorf("queue: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("queue: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("set QoS failed")
	}
	if _, err := ch.QueueDeclare(OrderConfirmedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue: declare: %w", err)
	}
	msgs, err := ch.ConsumeWithContext(ctx, OrderConfirmedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue: consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("queue: deliveries channel closed")
			}
			if err := c.handleMessage(d.Body); err != nil {
				log.WithError(err).Warn("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleMessage(body []byte) error {
	var ev OrderConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.OrderID == "" {
		return errors.New("order event without order_id")
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.Dir, "orders.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	items := make([]string, 0, len(ev.Lines))
	for _, l := range ev.Lines {
		items = append(items, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
	}
	line := fmt.Sprintf("[%s] Order confirmed | order_id=%s | user_id=%d | email=%q | address=%q | total=%s | items=[%s]\n",
		ev.ConfirmedAt, ev.OrderID, ev.UserID, ev.Email, ev.Address, ev.Total.StringFixed(0), strings.Join(items, ","))
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
