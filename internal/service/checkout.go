package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/metrics"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/queue"
	"github.com/iliyamo/huertohogar/internal/repository"
)

// OrderPublisher announces confirmed orders.
type OrderPublisher interface {
	PublishOrderConfirmed(ctx context.Context, ev queue.OrderConfirmedEvent) error
}

// ShippingContext is what the checkout screen shows before confirmation.
// Ready is true when the cart has items and the user has an address.
type ShippingContext struct {
	User  model.User       `json:"user"`
	Items []model.CartItem `json:"items"`
	Total decimal.Decimal  `json:"total"`
	Ready bool             `json:"ready"`
}

// OrderReceipt describes a confirmed order.  Orders are not stored; the
// receipt and the published event are the only record of it.
type OrderReceipt struct {
	OrderID     string           `json:"order_id"`
	UserID      uint64           `json:"user_id"`
	Address     string           `json:"address"`
	Items       []model.CartItem `json:"items"`
	Total       decimal.Decimal  `json:"total"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}

// CheckoutService turns a cart into an order.
type CheckoutService struct {
	db        *sql.DB
	users     *repository.UserRepo
	carts     *repository.CartRepo
	publisher OrderPublisher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewCheckoutService(db *sql.DB, users *repository.UserRepo, carts *repository.CartRepo, publisher OrderPublisher, log logrus.FieldLogger) *CheckoutService {
	if publisher == nil {
		publisher = queue.NopPublisher{}
	}
	return &CheckoutService{
		db:        db,
		users:     users,
		carts:     carts,
		publisher: publisher,
		log:       log.WithField("component", "checkout"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LoadShippingContext returns the user with their cart.
func (s *CheckoutService) LoadShippingContext(ctx context.Context, userID uint64) (ShippingContext, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ShippingContext{}, err
	}
	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return ShippingContext{}, fmt.Errorf("list cart: %w", err)
	}
	return ShippingContext{
		User:  u,
		Items: items,
		Total: model.CartTotal(items),
		Ready: len(items) > 0 && !blank(u.Address),
	}, nil
}

// ConfirmOrder places the order: the lines are read and deleted in one
// transaction.  Storage failures return ErrOrderProcessing and leave the
// cart as it was.  Publishing the order event happens after commit and its
// failure does not undo the order.
func (s *CheckoutService) ConfirmOrder(ctx context.Context, userID uint64) (OrderReceipt, error) {
	receipt, email, err := s.confirm(ctx, userID)
	metrics.RecordOrder(err)
	if err != nil {
		return OrderReceipt{}, err
	}
	s.carts.NotifyChanged(userID)
	s.log.WithFields(logrus.Fields{"order_id": receipt.OrderID, "user_id": userID, "total": receipt.Total.String()}).
		Info("order confirmed")

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.PublishOrderConfirmed(pubCtx, orderEvent(receipt, email)); err != nil {
		s.log.WithError(err).WithField("order_id", receipt.OrderID).Warn("order event not published")
	}
	return receipt, nil
}

func (s *CheckoutService) confirm(ctx context.Context, userID uint64) (OrderReceipt, string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return OrderReceipt{}, "", ErrUserNotFound
	}
	if err != nil {
		return OrderReceipt{}, "", fmt.Errorf("%w: %w", ErrOrderProcessing, err)
	}
	if blank(u.Address) {
		return OrderReceipt{}, "", &ValidationError{Fields: map[string]string{FieldAddress: "La dirección no puede estar vacía"}}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return OrderReceipt{}, "", fmt.Errorf("%w: %w", ErrOrderProcessing, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	items, err := s.carts.ListItemsTx(ctx, tx, userID)
	if err != nil {
		return OrderReceipt{}, "", fmt.Errorf("%w: %w", ErrOrderProcessing, err)
	}
	if len(items) == 0 {
		return OrderReceipt{}, "", ErrEmptyCart
	}
	if _, err := s.carts.ClearTx(ctx, tx, userID); err != nil {
		return OrderReceipt{}, "", fmt.Errorf("%w: %w", ErrOrderProcessing, err)
	}
	if err := tx.Commit(); err != nil {
		return OrderReceipt{}, "", fmt.Errorf("%w: %w", ErrOrderProcessing, err)
	}
	committed = true

	return OrderReceipt{
		OrderID:     uuid.NewString(),
		UserID:      userID,
		Address:     u.Address,
		Items:       items,
		Total:       model.CartTotal(items),
		ConfirmedAt: s.now(),
	}, u.Email, nil
}

func orderEvent(r OrderReceipt, email string) queue.OrderConfirmedEvent {
	lines := make([]queue.OrderLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, queue.OrderLine{
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Product.Price,
			Subtotal:  it.Subtotal(),
		})
	}
	return queue.OrderConfirmedEvent{
		OrderID:     r.OrderID,
		UserID:      r.UserID,
		Email:       email,
		Address:     r.Address,
		Lines:       lines,
		Total:       r.Total,
		ConfirmedAt: r.ConfirmedAt.Format(time.RFC3339),
	}
}
