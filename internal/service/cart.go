package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/metrics"
	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/observe"
	"github.com/iliyamo/huertohogar/internal/repository"
	"github.com/iliyamo/huertohogar/internal/session"
)

// CartView is the cart of the session user joined with the products, in
// product name order.  UserID is zero and Items is empty when nobody is
// logged in.
type CartView struct {
	UserID uint64           `json:"user_id"`
	Items  []model.CartItem `json:"items"`
	Total  decimal.Decimal  `json:"total"`
}

func newCartView(userID uint64, items []model.CartItem) CartView {
	if items == nil {
		items = []model.CartItem{}
	}
	return CartView{UserID: userID, Items: items, Total: model.CartTotal(items)}
}

// CartService edits the cart of whoever is logged in.  Every mutator is a
// no-op when nobody is.
//
// The ...For variants serve requests that were authenticated as a given
// user: they fail with ErrSessionEnded once that user is no longer the
// session user, and otherwise only ever touch that user's lines, even if
// the session changes while the call runs.
type CartService struct {
	carts   *repository.CartRepo
	hub     *observe.Hub
	session *session.Manager
	log     logrus.FieldLogger
}

func NewCartService(carts *repository.CartRepo, hub *observe.Hub, sm *session.Manager, log logrus.FieldLogger) *CartService {
	return &CartService{carts: carts, hub: hub, session: sm, log: log.WithField("component", "cart")}
}

// bound checks that userID is still the session user.
func (s *CartService) bound(userID uint64) error {
	if id, ok := s.session.CurrentUser(); !ok || id != userID {
		return ErrSessionEnded
	}
	return nil
}

// Current returns a snapshot of the session user's cart.
func (s *CartService) Current(ctx context.Context) (CartView, error) {
	userID, ok := s.session.CurrentUser()
	if !ok {
		return newCartView(0, nil), nil
	}
	return s.snapshot(ctx, userID)
}

// CurrentFor returns userID's cart while userID is the session user.
func (s *CartService) CurrentFor(ctx context.Context, userID uint64) (CartView, error) {
	if err := s.bound(userID); err != nil {
		return CartView{}, err
	}
	return s.snapshot(ctx, userID)
}

func (s *CartService) snapshot(ctx context.Context, userID uint64) (CartView, error) {
	items, err := s.carts.ListItems(ctx, userID)
	if err != nil {
		return CartView{}, fmt.Errorf("list cart: %w", err)
	}
	return newCartView(userID, items), nil
}

// AddToCart adds one unit of productID.  It fails with ErrProductNotFound
// for a product that does not exist and with a ValidationError on
// "quantity" when the line is already full.
func (s *CartService) AddToCart(ctx context.Context, productID uint64) error {
	userID, ok := s.session.CurrentUser()
	if !ok {
		return nil
	}
	return s.addToCart(ctx, userID, productID)
}

// AddToCartFor is AddToCart for a request authenticated as userID.
func (s *CartService) AddToCartFor(ctx context.Context, userID, productID uint64) error {
	if err := s.bound(userID); err != nil {
		return err
	}
	return s.addToCart(ctx, userID, productID)
}

func (s *CartService) addToCart(ctx context.Context, userID, productID uint64) error {
	err := s.carts.Increment(ctx, userID, productID)
	metrics.RecordCartMutation("add", err)
	if errors.Is(err, repository.ErrQuantityLimit) {
		return quantityLimitError()
	}
	if err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	return nil
}

// UpdateQuantity changes the quantity of an existing line by delta.  The
// line is deleted when the result is not positive; a missing line is left
// alone.  A result above model.MaxLineQuantity is refused with a
// ValidationError on "quantity".
func (s *CartService) UpdateQuantity(ctx context.Context, productID uint64, delta int) error {
	userID, ok := s.session.CurrentUser()
	if !ok {
		return nil
	}
	return s.updateQuantity(ctx, userID, productID, delta)
}

// UpdateQuantityFor is UpdateQuantity for a request authenticated as userID.
func (s *CartService) UpdateQuantityFor(ctx context.Context, userID, productID uint64, delta int) error {
	if err := s.bound(userID); err != nil {
		return err
	}
	return s.updateQuantity(ctx, userID, productID, delta)
}

func (s *CartService) updateQuantity(ctx context.Context, userID, productID uint64, delta int) error {
	switch {
	case delta == 0:
		return nil
	case delta > model.MaxLineQuantity:
		return quantityLimitError()
	case delta < -model.MaxLineQuantity:
		// no line holds more, so this removes it like any larger decrement
		delta = -model.MaxLineQuantity
	}
	_, _, err := s.carts.AddDelta(ctx, userID, productID, delta)
	metrics.RecordCartMutation("update", err)
	if errors.Is(err, repository.ErrQuantityLimit) {
		return quantityLimitError()
	}
	if err != nil {
		return fmt.Errorf("update quantity: %w", err)
	}
	return nil
}

// RemoveFromCart deletes the line for productID.
func (s *CartService) RemoveFromCart(ctx context.Context, productID uint64) error {
	userID, ok := s.session.CurrentUser()
	if !ok {
		return nil
	}
	return s.removeFromCart(ctx, userID, productID)
}

// RemoveFromCartFor is RemoveFromCart for a request authenticated as userID.
func (s *CartService) RemoveFromCartFor(ctx context.Context, userID, productID uint64) error {
	if err := s.bound(userID); err != nil {
		return err
	}
	return s.removeFromCart(ctx, userID, productID)
}

func (s *CartService) removeFromCart(ctx context.Context, userID, productID uint64) error {
	err := s.carts.Remove(ctx, userID, productID)
	metrics.RecordCartMutation("remove", err)
	if err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	return nil
}

func quantityLimitError() error {
	return &ValidationError{Fields: map[string]string{
		FieldQuantity: fmt.Sprintf("Máximo %d unidades por producto", model.MaxLineQuantity),
	}}
}

// Watch streams the cart of the session user until ctx is done, then closes
// the channel.  A new view is sent after every committed change to that
// user's lines or to the products, and whenever the session user changes.
// The channel holds only the newest view: a slow reader skips intermediate
// ones.
func (s *CartService) Watch(ctx context.Context) <-chan CartView {
	out := make(chan CartView, 1)
	go s.watch(ctx, out)
	return out
}

func (s *CartService) watch(ctx context.Context, out chan CartView) {
	states := s.session.Subscribe()
	var (
		changes *observe.Subscription
		notify  <-chan struct{}
		userID  uint64
		authed  bool
		bound   bool
	)
	defer func() {
		if changes != nil {
			changes.Close()
		}
		states.Close()
		close(out)
	}()

	emit := func() {
		view := newCartView(0, nil)
		if authed {
			v, err := s.snapshot(ctx, userID)
			if err != nil {
				if ctx.Err() == nil {
					s.log.WithError(err).WithField("user_id", userID).Warn("cart view not refreshed")
				}
				return
			}
			view = v
		}
		select {
		case out <- view:
		default:
			select {
			case <-out:
			default:
			}
			out <- view
		}
	}

	// rebind follows st and reports whether the watched user changed.
	rebind := func(st model.AuthState) bool {
		id, isAuthed := st.Authenticated()
		if bound && isAuthed == authed && id == userID {
			return false
		}
		// detach from the old user's cart before attaching to the new one
		if changes != nil {
			changes.Close()
			changes, notify = nil, nil
		}
		userID, authed, bound = id, isAuthed, true
		if authed {
			changes = s.hub.Subscribe(observe.CartTopic(userID), observe.ProductsTopic)
			notify = changes.C
		}
		emit()
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states.C:
			if !ok {
				return
			}
			rebind(st)
		case _, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			// a pending session change replaces the refresh of the old cart
			select {
			case st, ok := <-states.C:
				if !ok {
					return
				}
				if !rebind(st) {
					emit()
				}
			default:
				emit()
			}
		}
	}
}
