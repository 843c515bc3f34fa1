// Package queue carries order events over RabbitMQ: the payloads, the
// publisher used by checkout and the consumer that keeps the order log.
package queue

import "github.com/shopspring/decimal"

// OrderConfirmedQueue is the durable queue confirmed orders are sent to.
const OrderConfirmedQueue = "order.confirmed"

// OrderConfirmedEvent is published after a checkout commits.  It carries
// enough information for downstream consumers to log or notify without
// querying the store, which no longer holds the cart lines.
type OrderConfirmedEvent struct {
	OrderID     string          `json:"order_id"`
	UserID      uint64          `json:"user_id"`
	Email       string          `json:"email"`
	Address     string          `json:"address"`
	Lines       []OrderLine     `json:"lines"`
	Total       decimal.Decimal `json:"total"`
	ConfirmedAt string          `json:"confirmed_at"`
}

// OrderLine is one product of a confirmed order.
type OrderLine struct {
	ProductID uint64          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}
