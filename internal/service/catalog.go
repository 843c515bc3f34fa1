package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/huertohogar/internal/model"
	"github.com/iliyamo/huertohogar/internal/repository"
)

// DefaultCatalog is inserted on first start.
func DefaultCatalog() []model.Product {
	return []model.Product{
		{Name: "Manzanas Fuji", Description: "Manzanas rojas y dulces.", Price: decimal.NewFromInt(1500), Category: "Fruta", ImageRef: "url_manzana"},
		{Name: "Lechuga Costina", Description: "Fresca y crujiente.", Price: decimal.NewFromInt(800), Category: "Verdura", ImageRef: "url_lechuga"},
		{Name: "Huevos de Campo", Description: "Docena de huevos de gallina feliz.", Price: decimal.NewFromInt(3500), Category: "Despensa", ImageRef: "url_huevos"},
		{Name: "Miel de Quillay", Description: "Miel pura de 500g.", Price: decimal.NewFromInt(4500), Category: "Despensa", ImageRef: "url_miel"},
	}
}

// CatalogService is the read side of the product table.
type CatalogService struct {
	products *repository.ProductRepo
	log      logrus.FieldLogger
}

func NewCatalogService(products *repository.ProductRepo, log logrus.FieldLogger) *CatalogService {
	return &CatalogService{products: products, log: log.WithField("component", "catalog")}
}

// Seed inserts products when the catalog is empty.  Running it again is a
// no-op.
func (s *CatalogService) Seed(ctx context.Context, products []model.Product) error {
	n, err := s.products.SeedIfEmpty(ctx, products)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	if n > 0 {
		s.log.WithField("count", n).Info("catalog seeded")
	}
	return nil
}

// List returns the catalog ordered by name, optionally restricted to one
// category.
func (s *CatalogService) List(ctx context.Context, category string) ([]model.Product, error) {
	if c := strings.TrimSpace(category); c != "" {
		return s.products.ListByCategory(ctx, c)
	}
	return s.products.List(ctx)
}

// Get returns one product or ErrProductNotFound.
func (s *CatalogService) Get(ctx context.Context, id uint64) (model.Product, error) {
	return s.products.GetByID(ctx, id)
}

// Categories returns the distinct categories in alphabetical order.
func (s *CatalogService) Categories(ctx context.Context) ([]string, error) {
	return s.products.Categories(ctx)
}
