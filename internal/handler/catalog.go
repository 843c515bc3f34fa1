package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/service"
	"github.com/iliyamo/huertohogar/internal/utils"
)

// CatalogHandler exposes the product catalog.  None of its routes require
// authentication.
type CatalogHandler struct {
	Catalog *service.CatalogService
	Log     logrus.FieldLogger
}

func NewCatalogHandler(catalog *service.CatalogService, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{Catalog: catalog, Log: log.WithField("component", "catalog-handler")}
}

// productResp adds the display price to a product.
type productResp struct {
	model.Product
	PriceDisplay string `json:"price_display"`
}

func toProductResp(p model.Product) productResp {
	return productResp{Product: p, PriceDisplay: utils.FormatCLP(p.Price)}
}

// List returns the catalog ordered by name; ?category= filters it.
func (h *CatalogHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	products, err := h.Catalog.List(ctx, c.QueryParam("category"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns one product.
func (h *CatalogHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toProductResp(p))
}

// Categories lists the distinct categories.
func (h *CatalogHandler) Categories(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	cats, err := h.Catalog.Categories(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cats)
}
