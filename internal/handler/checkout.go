package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/utils"
)

// CheckoutHandler exposes the checkout screen and order confirmation.
type CheckoutHandler struct {
	Checkout *service.CheckoutService
	Log      logrus.FieldLogger
}

func NewCheckoutHandler(checkout *service.CheckoutService, log logrus.FieldLogger) *CheckoutHandler {
	return &CheckoutHandler{Checkout: checkout, Log: log.WithField("component", "checkout-handler")}
}

type shippingResp struct {
	service.ShippingContext
	TotalDisplay string `json:"total_display"`
}

type receiptResp struct {
	service.OrderReceipt
	TotalDisplay string `json:"total_display"`
}

// Get returns the user, the cart and whether the order can be placed.
func (h *CheckoutHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	sc, err := h.Checkout.LoadShippingContext(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, shippingResp{ShippingContext: sc, TotalDisplay: utils.FormatCLP(sc.Total)})
}

// Confirm places the order and returns the receipt.
func (h *CheckoutHandler) Confirm(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	r, err := h.Checkout.ConfirmOrder(ctx, uid)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, receiptResp{OrderReceipt: r, TotalDisplay: utils.FormatCLP(r.Total)})
}
