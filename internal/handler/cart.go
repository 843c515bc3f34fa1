package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/utils"
)

// CartHandler serves the session user's cart.  Every call names the user
// JWTAuth verified, so a request never reaches another user's cart if the
// session changes while it runs.
type CartHandler struct {
	Cart *service.CartService
	Log  logrus.FieldLogger
	// KeepAlive is the interval between SSE comments on an idle stream.
	KeepAlive time.Duration
}

func NewCartHandler(cart *service.CartService, log logrus.FieldLogger) *CartHandler {
	return &CartHandler{Cart: cart, Log: log.WithField("component", "cart-handler"), KeepAlive: 25 * time.Second}
}

type cartResp struct {
	service.CartView
	TotalDisplay string `json:"total_display"`
}

func toCartResp(v service.CartView) cartResp {
	return cartResp{CartView: v, TotalDisplay: utils.FormatCLP(v.Total)}
}

type quantityReq struct {
	Delta int `json:"delta"`
}

// Get returns the current cart.
func (h *CartHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	v, err := h.Cart.CurrentFor(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toCartResp(v))
}

// Add puts one more unit of the product in the cart and returns the cart.
func (h *CartHandler) Add(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pid, ok := parseID(c, "productId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Cart.AddToCartFor(ctx, uid, pid); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.Get(c)
}

// Update changes a line's quantity by the body's delta.
func (h *CartHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pid, ok := parseID(c, "productId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var req quantityReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Cart.UpdateQuantityFor(ctx, uid, pid, req.Delta); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.Get(c)
}

// Remove deletes a line.
func (h *CartHandler) Remove(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	pid, ok := parseID(c, "productId")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Cart.RemoveFromCartFor(ctx, uid, pid); err != nil {
		return writeError(c, h.Log, err)
	}
	return h.Get(c)
}

// Stream sends the cart as server-sent events: one "cart" event now and one
// after every change, until the client disconnects or the session user
// changes.
func (h *CartHandler) Stream(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	keepAlive := time.NewTicker(h.KeepAlive)
	defer keepAlive.Stop()

	views := h.Cart.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-keepAlive.C:
			if _, err := fmt.Fprint(res, ": keep-alive\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if v.UserID != uid {
				// the stream belongs to the token's user; stop once the
				// session has moved on
				_, _ = fmt.Fprint(res, "event: session\ndata: {\"status\":\"ended\"}\n\n")
				res.Flush()
				return nil
			}
			body, err := json.Marshal(toCartResp(v))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(res, "event: cart\ndata: %s\n\n", body); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
